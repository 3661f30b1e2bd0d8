package script

// Info describes one supported script for API consumers.
type Info struct {
	Code        string `json:"iso_code"`
	Name        string `json:"name"`
	OCRLanguage string `json:"ocr_language"`
}

// Supported lists every script the detector knows about, in table order.
func Supported() []Info {
	infos := make([]Info, 0, len(table))
	for _, e := range table {
		infos = append(infos, Info{Code: e.code, Name: e.name, OCRLanguage: e.ocrLang})
	}
	return infos
}

// Lookup finds a supported script by its ISO 15924 code.
func Lookup(code string) (Info, bool) {
	for _, e := range table {
		if e.code == code {
			return Info{Code: e.code, Name: e.name, OCRLanguage: e.ocrLang}, true
		}
	}
	return Info{}, false
}
