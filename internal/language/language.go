package language

import (
	"fmt"
	"strings"
)

// Hint is a transcription language. The zero value asks the engine to detect
// the spoken language on its own.
type Hint struct {
	code string
}

// Auto is the auto-detect hint.
var Auto = Hint{}

type Option struct {
	Code  string
	Label string
}

var supported = []Option{
	{Code: "", Label: "Auto-detect"},
	{Code: "ja", Label: "Japanese"},
	{Code: "en", Label: "English"},
	{Code: "zh", Label: "Chinese"},
	{Code: "ko", Label: "Korean"},
	{Code: "es", Label: "Spanish"},
	{Code: "fr", Label: "French"},
	{Code: "de", Label: "German"},
}

var aliases = map[string]string{
	"auto":        "",
	"auto-detect": "",
	"autodetect":  "",
	"detect":      "",
	"自動検出":        "",

	"japanese": "ja",
	"日本語":      "ja",
	"english":  "en",
	"英語":       "en",
	"chinese":  "zh",
	"中国語":      "zh",
	"korean":   "ko",
	"韓国語":      "ko",
	"spanish":  "es",
	"スペイン語":    "es",
	"french":   "fr",
	"フランス語":    "fr",
	"german":   "de",
	"ドイツ語":     "de",
}

// Parse turns user input into a Hint. It accepts language codes, English and
// Japanese language names, and "auto" (or an empty string) for auto-detect.
func Parse(input string) (Hint, error) {
	value := strings.ToLower(strings.TrimSpace(input))
	if value == "" {
		return Auto, nil
	}

	if code, ok := aliases[value]; ok {
		return Hint{code: code}, nil
	}

	if looksLikeCode(value) {
		return Hint{code: value}, nil
	}

	return Auto, fmt.Errorf("unknown language %q (use a language code such as en or ja, or auto)", input)
}

// MustParse is Parse for compile-time constants.
func MustParse(input string) Hint {
	hint, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return hint
}

// Code returns the language code, or "" for auto-detect.
func (h Hint) Code() string {
	return h.code
}

func (h Hint) IsAuto() bool {
	return h.code == ""
}

func (h Hint) String() string {
	if h.IsAuto() {
		return "auto"
	}
	return h.code
}

// Supported returns the languages offered to users, auto-detect first.
func Supported() []Option {
	out := make([]Option, len(supported))
	copy(out, supported)
	return out
}

func looksLikeCode(value string) bool {
	if len(value) < 2 || len(value) > 3 {
		return false
	}
	for _, r := range value {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
