package translate

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// BaseLanguage is the language source strings are written in.
const BaseLanguage = "en"

// ErrUnsupportedLanguage is returned for language codes outside the
// configured set.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// DefaultLanguages are the UI languages offered to farmers.
var DefaultLanguages = []string{"en", "hi", "bn", "ta", "te", "mr", "gu", "kn", "ml", "pa"}

// Languages normalizes BCP 47 tags ("hi-IN", "PA") to supported base codes.
type Languages struct {
	supported map[string]bool
	codes     []string
}

func NewLanguages(codes []string) (*Languages, error) {
	if len(codes) == 0 {
		codes = DefaultLanguages
	}
	l := &Languages{supported: make(map[string]bool, len(codes))}
	for _, c := range codes {
		base, err := baseOf(c)
		if err != nil {
			return nil, err
		}
		if !l.supported[base] {
			l.supported[base] = true
			l.codes = append(l.codes, base)
		}
	}
	return l, nil
}

// Normalize returns the supported base code for tag.
func (l *Languages) Normalize(tag string) (string, error) {
	base, err := baseOf(tag)
	if err != nil {
		return "", err
	}
	if !l.supported[base] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, tag)
	}
	return base, nil
}

// Codes lists the supported codes in configuration order.
func (l *Languages) Codes() []string {
	return append([]string(nil), l.codes...)
}

func baseOf(tag string) (string, error) {
	t, err := language.Parse(strings.TrimSpace(tag))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, tag)
	}
	base, _ := t.Base()
	return base.String(), nil
}
