package stt

import (
	"strings"

	"github.com/lexiqai/interpreter-gateway/internal/capture"
)

// transcript accumulates Deepgram's segment-wise results into the
// cumulative hypothesis a capture session expects. Finalized segments are
// kept; the interim segment is replaced on every update.
type transcript struct {
	finals  []string
	interim string
}

// apply records one result and reports whether the hypothesis changed.
func (t *transcript) apply(text string, final bool) bool {
	text = strings.TrimSpace(text)
	if final {
		changed := text != "" || t.interim != ""
		if text != "" {
			t.finals = append(t.finals, text)
		}
		t.interim = ""
		return changed
	}
	if text == t.interim {
		return false
	}
	t.interim = text
	return true
}

// results renders the hypothesis. Segments after the first carry a leading
// space so that joining them yields readable text.
func (t *transcript) results() []capture.Result {
	out := make([]capture.Result, 0, len(t.finals)+1)
	for _, seg := range t.finals {
		out = append(out, capture.Result{Transcript: t.sep(len(out)) + seg, Final: true})
	}
	if t.interim != "" {
		out = append(out, capture.Result{Transcript: t.sep(len(out)) + t.interim})
	}
	return out
}

func (t *transcript) sep(i int) string {
	if i == 0 {
		return ""
	}
	return " "
}

// dropInterim forgets the unfinished segment, e.g. across a reconnect.
func (t *transcript) dropInterim() {
	t.interim = ""
}

func (t *transcript) reset() {
	t.finals = nil
	t.interim = ""
}
