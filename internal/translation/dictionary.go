package translation

import (
	"context"
	"strings"
	"time"

	"github.com/lexiqai/interpreter-gateway/internal/language"
)

// DictionaryConfig configures the dictionary backend.
type DictionaryConfig struct {
	// ProcessingDelay simulates backend latency.
	ProcessingDelay time.Duration
	// Entries maps target language, then lowercased source text, to a translation.
	Entries map[language.Target]map[string]string
}

// DefaultDictionaryConfig returns a small clinical phrasebook.
func DefaultDictionaryConfig() *DictionaryConfig {
	return &DictionaryConfig{
		ProcessingDelay: 50 * time.Millisecond,
		Entries: map[language.Target]map[string]string{
			language.TargetIndonesian: {
				"fever and cough":                "demam dan batuk",
				"where does it hurt":             "di mana yang sakit",
				"how long have you been sick":    "sudah berapa lama anda sakit",
				"take this medicine twice a day": "minum obat ini dua kali sehari",
				"thank you":                      "terima kasih",
			},
			language.TargetEnglish: {
				"demam dan batuk":   "fever and cough",
				"saya sakit kepala": "I have a headache",
				"terima kasih":      "thank you",
				"fiebre y tos":      "fever and cough",
				"fièvre et toux":    "fever and cough",
			},
			language.TargetSpanish: {
				"fever and cough": "fiebre y tos",
				"thank you":       "gracias",
			},
			language.TargetFrench: {
				"fever and cough": "fièvre et toux",
				"thank you":       "merci",
			},
			language.TargetGerman: {
				"fever and cough": "Fieber und Husten",
				"thank you":       "danke",
			},
		},
	}
}

// Dictionary is an offline Backend that answers from a fixed phrasebook.
// Unknown phrases come back prefixed with the target code, e.g. "[id] hello".
type Dictionary struct {
	config *DictionaryConfig
}

// NewDictionary creates a dictionary backend; nil config uses the defaults.
func NewDictionary(config *DictionaryConfig) *Dictionary {
	if config == nil {
		config = DefaultDictionaryConfig()
	}
	return &Dictionary{config: config}
}

// Translate implements Backend.
func (d *Dictionary) Translate(ctx context.Context, req Request) (string, error) {
	if err := req.Languages.Validate(); err != nil {
		return "", &Error{Kind: KindRejected, Status: 400, Message: "Unsupported language", Err: err}
	}

	if d.config.ProcessingDelay > 0 {
		timer := time.NewTimer(d.config.ProcessingDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", unreachable(ctx.Err())
		}
	}

	key := strings.ToLower(strings.TrimSpace(req.Text))
	key = strings.TrimRight(key, ".!?")
	if translated, ok := d.config.Entries[req.Languages.Target][key]; ok {
		return translated, nil
	}
	return "[" + string(req.Languages.Target) + "] " + strings.TrimSpace(req.Text), nil
}
