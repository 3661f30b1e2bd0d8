package translit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/savelyev/translit/backend/internal/ocr"
	"github.com/savelyev/translit/backend/internal/script"
	chatservice "github.com/savelyev/translit/backend/internal/service/chat"
	translitservice "github.com/savelyev/translit/backend/internal/service/translit"
	"github.com/savelyev/translit/backend/pkg/utils"
)

const maxUploadBytes = 10 << 20 // 10 MiB per uploaded file

// Handler exposes the transliteration REST surface: text or image in,
// transliteration plus detection metadata out.
type Handler struct {
	translitSvc *translitservice.Service
	chatSvc     *chatservice.Service
	extractor   *ocr.Extractor
}

// NewHandler creates the handler. extractor may be nil when OCR is disabled;
// image uploads then fail with a client error instead of a crash.
func NewHandler(translitSvc *translitservice.Service, chatSvc *chatservice.Service, extractor *ocr.Extractor) *Handler {
	return &Handler{
		translitSvc: translitSvc,
		chatSvc:     chatSvc,
		extractor:   extractor,
	}
}

// RegisterRoutes mounts the transliteration endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/transliterate", h.handleTransliterate)
	r.Post("/translate", h.handleTranslate)
	r.Post("/detect-language", h.handleDetectLanguage)
	r.Post("/confirm-language", h.handleConfirmLanguage)
}

// transliterateResponse is the unified reply for text and image requests.
// Detection fields describe the source script regardless of how it was
// established; detection_status records which party established it.
type transliterateResponse struct {
	OriginalText    string  `json:"original_text"`
	DetectedScript  string  `json:"detected_script"`
	ISOCode         string  `json:"iso_code"`
	Confidence      float64 `json:"confidence"`
	DetectionStatus string  `json:"detection_status"`
	SourceScript    string  `json:"source_script"`
	TargetScript    string  `json:"target_script"`
	Transliteration string  `json:"transliteration"`
	Explanation     string  `json:"explanation"`
	SessionID       string  `json:"session_id"`
}

func (h *Handler) handleTransliterate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	input, err := h.resolveInput(ctx, r)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	targetScript := r.FormValue("target_script")
	if targetScript == "" {
		utils.RespondError(w, http.StatusBadRequest, "target_script is required")
		return
	}

	sourceScript := r.FormValue("source_script")
	skipDetection, _ := strconv.ParseBool(r.FormValue("skip_detection"))

	detectionStatus := "user-provided"
	detected := input.detection
	if sourceScript == "" {
		if skipDetection {
			utils.RespondError(w, http.StatusBadRequest, "source_script is required when skip_detection is set")
			return
		}
		if detected.Code == "" {
			detected = script.Detect(input.text)
		}
		if detected.Code == "" {
			utils.RespondError(w, http.StatusBadRequest, "could not detect the source script; provide source_script explicitly")
			return
		}
		sourceScript = detected.Code
		detectionStatus = "auto-detected"
	}

	result, err := h.translitSvc.Transliterate(ctx, input.text, sourceScript, targetScript, r.FormValue("context"))
	if err != nil {
		h.respondTranslitError(w, err)
		return
	}

	sess := h.chatSvc.CreateSession(ctx, map[string]any{
		"transliteration": result.ContextValue(),
	})

	resp := transliterateResponse{
		OriginalText:    result.OriginalText,
		DetectionStatus: detectionStatus,
		SourceScript:    result.SourceScript,
		TargetScript:    result.TargetScript,
		Transliteration: result.Transliteration,
		Explanation:     result.Explanation,
		SessionID:       sess.ID,
	}
	if detectionStatus == "auto-detected" {
		resp.DetectedScript = detected.Script
		resp.ISOCode = detected.Code
		resp.Confidence = detected.Confidence
	} else {
		resp.DetectedScript = script.Name(result.SourceScript)
		resp.ISOCode = result.SourceScript
		resp.Confidence = 1.0
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

type translateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
	Context    string `json:"context,omitempty"`
}

type translateResponse struct {
	translitservice.TranslationResult
	SessionID string `json:"session_id"`
}

func (h *Handler) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Text == "" || req.TargetLang == "" {
		utils.RespondError(w, http.StatusBadRequest, "text and target_lang are required")
		return
	}
	if req.SourceLang == "" {
		req.SourceLang = "auto"
	}

	result, err := h.translitSvc.Translate(r.Context(), req.Text, req.SourceLang, req.TargetLang, req.Context)
	if err != nil {
		h.respondTranslitError(w, err)
		return
	}

	sess := h.chatSvc.CreateSession(r.Context(), map[string]any{
		"translation": result.ContextValue(),
	})
	utils.RespondJSON(w, http.StatusOK, translateResponse{TranslationResult: result, SessionID: sess.ID})
}

type detectResponse struct {
	script.Detection
	Text             string        `json:"text,omitempty"`
	AvailableScripts []script.Info `json:"available_scripts"`
}

func (h *Handler) handleDetectLanguage(w http.ResponseWriter, r *http.Request) {
	input, err := h.resolveInput(r.Context(), r)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	detection := input.detection
	if detection.Code == "" && detection.Script == "" {
		detection = script.Detect(input.text)
	}

	resp := detectResponse{
		Detection:        detection,
		AvailableScripts: script.Supported(),
	}
	if input.fromImage {
		resp.Text = input.text
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

type confirmRequest struct {
	DetectedLanguage  string `json:"detected_language"`
	UserConfirmed     bool   `json:"user_confirmed"`
	CorrectedLanguage string `json:"corrected_language,omitempty"`
}

type confirmResponse struct {
	ConfirmedSourceScript string `json:"confirmed_source_script"`
	Message               string `json:"message"`
}

// handleConfirmLanguage records the user's verdict on an earlier detection.
// Malformed corrections are a client error; this endpoint never fails
// server-side.
func (h *Handler) handleConfirmLanguage(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.UserConfirmed {
		code, err := script.NormalizeCode(req.DetectedLanguage)
		if err != nil {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		utils.RespondJSON(w, http.StatusOK, confirmResponse{
			ConfirmedSourceScript: code,
			Message:               "Detection confirmed. Using " + script.Name(code) + " as the source script.",
		})
		return
	}

	if req.CorrectedLanguage == "" {
		utils.RespondError(w, http.StatusBadRequest, "corrected_language is required when the detection is rejected")
		return
	}
	code, err := script.NormalizeCode(req.CorrectedLanguage)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, confirmResponse{
		ConfirmedSourceScript: code,
		Message:               "Correction accepted. Using " + script.Name(code) + " as the source script.",
	})
}

// resolvedInput is the text to operate on, plus detection metadata when the
// text came out of an OCR pass.
type resolvedInput struct {
	text      string
	fromImage bool
	detection script.Detection
}

// resolveInput pulls the working text from either the text form field or an
// uploaded file (image or PDF). Exactly one of the two must be present.
func (h *Handler) resolveInput(ctx context.Context, r *http.Request) (resolvedInput, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return resolvedInput{}, errors.New("could not parse multipart form")
		}
	}

	if text := strings.TrimSpace(r.FormValue("text")); text != "" {
		return resolvedInput{text: text}, nil
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		return resolvedInput{}, errors.New("either text or file must be provided")
	}
	defer file.Close()

	if h.extractor == nil {
		return resolvedInput{}, errors.New("file input is not available: OCR is disabled")
	}

	imageData, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return resolvedInput{}, errors.New("could not read the uploaded file")
	}

	var extraction ocr.Extraction
	if ocr.IsPDF(imageData) {
		extraction, err = h.extractor.ExtractPDF(ctx, imageData)
	} else {
		extraction, err = h.extractor.Extract(ctx, imageData)
	}
	if err != nil {
		log.Printf("[translit] ocr extraction failed: %v", err)
		return resolvedInput{}, errors.New("could not extract text from the file")
	}
	if strings.TrimSpace(extraction.Text) == "" {
		return resolvedInput{}, errors.New("no text found in the file")
	}

	return resolvedInput{
		text:      strings.TrimSpace(extraction.Text),
		fromImage: true,
		detection: script.Detection{
			Script:      extraction.Script,
			Code:        extraction.Code,
			Confidence:  extraction.Confidence,
			OCRLanguage: script.OCRLanguage(extraction.Code),
		},
	}, nil
}

func (h *Handler) respondTranslitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, translitservice.ErrNoBackend):
		utils.RespondError(w, http.StatusServiceUnavailable, "No language model backend is configured")
	case errors.Is(err, script.ErrUnknownScript):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, "Transliteration failed")
	}
}
