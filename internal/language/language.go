// Package language defines the finite set of languages the interpreter accepts.
package language

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedLanguage is returned when a code is outside the enumerated sets.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Source is a speech-recognition locale (language + region), e.g. "en-US".
type Source string

// Target is a translation output language, e.g. "id".
type Target string

const (
	SourceEnglish    Source = "en-US"
	SourceIndonesian Source = "id-ID"
	SourceSpanish    Source = "es-ES"
	SourceFrench     Source = "fr-FR"
	SourceGerman     Source = "de-DE"
)

const (
	TargetEnglish    Target = "en"
	TargetIndonesian Target = "id"
	TargetSpanish    Target = "es"
	TargetFrench     Target = "fr"
	TargetGerman     Target = "de"
)

// Option describes one selectable language.
type Option struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Flag string `json:"flag"`
}

var sources = []Option{
	{Code: string(SourceEnglish), Name: "English", Flag: "🇺🇸"},
	{Code: string(SourceIndonesian), Name: "Indonesian", Flag: "🇮🇩"},
	{Code: string(SourceSpanish), Name: "Spanish", Flag: "🇪🇸"},
	{Code: string(SourceFrench), Name: "French", Flag: "🇫🇷"},
	{Code: string(SourceGerman), Name: "German", Flag: "🇩🇪"},
}

var targets = []Option{
	{Code: string(TargetEnglish), Name: "English", Flag: "🇺🇸"},
	{Code: string(TargetIndonesian), Name: "Indonesian", Flag: "🇮🇩"},
	{Code: string(TargetSpanish), Name: "Spanish", Flag: "🇪🇸"},
	{Code: string(TargetFrench), Name: "French", Flag: "🇫🇷"},
	{Code: string(TargetGerman), Name: "German", Flag: "🇩🇪"},
}

// Sources returns the selectable speech locales in display order.
func Sources() []Option {
	return append([]Option(nil), sources...)
}

// Targets returns the selectable translation languages in display order.
func Targets() []Option {
	return append([]Option(nil), targets...)
}

// ParseSource validates a speech locale code.
func ParseSource(code string) (Source, error) {
	code = strings.TrimSpace(code)
	for _, opt := range sources {
		if strings.EqualFold(opt.Code, code) {
			return Source(opt.Code), nil
		}
	}
	return "", fmt.Errorf("%w: source %q", ErrUnsupportedLanguage, code)
}

// ParseTarget validates a translation language code.
func ParseTarget(code string) (Target, error) {
	code = strings.TrimSpace(code)
	for _, opt := range targets {
		if strings.EqualFold(opt.Code, code) {
			return Target(opt.Code), nil
		}
	}
	return "", fmt.Errorf("%w: target %q", ErrUnsupportedLanguage, code)
}

// Name returns the English name of the locale's language.
func (s Source) Name() string {
	for _, opt := range sources {
		if opt.Code == string(s) {
			return opt.Name
		}
	}
	return ""
}

// Base returns the language subtag, e.g. "en" for "en-US".
func (s Source) Base() string {
	base, _, _ := strings.Cut(string(s), "-")
	return strings.ToLower(base)
}

// Name returns the English name of the target language.
func (t Target) Name() string {
	for _, opt := range targets {
		if opt.Code == string(t) {
			return opt.Name
		}
	}
	return ""
}

// Pair is the language pair a translation runs under.
type Pair struct {
	Source Source `json:"source"`
	Target Target `json:"target"`
}

// ParsePair validates both codes.
func ParsePair(source, target string) (Pair, error) {
	s, err := ParseSource(source)
	if err != nil {
		return Pair{}, err
	}
	t, err := ParseTarget(target)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Source: s, Target: t}, nil
}

// Validate reports ErrUnsupportedLanguage if either side is not enumerated.
func (p Pair) Validate() error {
	if p.Source.Name() == "" {
		return fmt.Errorf("%w: source %q", ErrUnsupportedLanguage, p.Source)
	}
	if p.Target.Name() == "" {
		return fmt.Errorf("%w: target %q", ErrUnsupportedLanguage, p.Target)
	}
	return nil
}

func (p Pair) String() string {
	return fmt.Sprintf("%s → %s", p.Source, p.Target)
}
