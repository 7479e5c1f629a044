package translate

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	l, err := NewLanguages(nil)
	if err != nil {
		t.Fatalf("NewLanguages() error = %v", err)
	}

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"hi", "hi", false},
		{"HI", "hi", false},
		{"hi-IN", "hi", false},
		{" pa ", "pa", false},
		{"en-GB", "en", false},
		{"fr", "", true},
		{"not a tag", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := l.Normalize(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedLanguage) {
					t.Errorf("Normalize(%q) error = %v, want ErrUnsupportedLanguage", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("Normalize(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestCodes(t *testing.T) {
	l, err := NewLanguages([]string{"en", "hi-IN", "hi", "ta"})
	if err != nil {
		t.Fatalf("NewLanguages() error = %v", err)
	}
	if got := l.Codes(); len(got) != 3 || got[1] != "hi" {
		t.Errorf("Codes() = %v, want [en hi ta]", got)
	}
}
