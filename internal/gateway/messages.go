package gateway

import (
	"github.com/lexiqai/interpreter-gateway/internal/capture"
	"github.com/lexiqai/interpreter-gateway/internal/conversation"
	"github.com/lexiqai/interpreter-gateway/internal/language"
	"github.com/lexiqai/interpreter-gateway/internal/pipeline"
)

// Client message types
const (
	MessageHello            = "hello"
	MessageLanguages        = "languages"
	MessagePress            = "press"
	MessageRelease          = "release"
	MessageLeave            = "leave"
	MessageTranscript       = "transcript"
	MessageRecognitionError = "recognition_error"
	MessageSpeak            = "speak"
	MessageClear            = "clear"
	MessageDismissError     = "dismiss_error"
)

// Server message types
const (
	MessageState = "state"
)

// ClientMessage is a text frame sent by the browser.
type ClientMessage struct {
	Type string `json:"type"`

	// hello: client capabilities and optional initial language pair
	SpeechRecognition *bool `json:"speechRecognition,omitempty"`
	SpeechSynthesis   *bool `json:"speechSynthesis,omitempty"`

	// hello, languages
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`

	// transcript: cumulative results of the client recognizer
	Results []capture.Result `json:"results,omitempty"`

	// recognition_error
	Error string `json:"error,omitempty"`
}

// StateMessage mirrors the pipeline snapshot after every change.
type StateMessage struct {
	Type        string               `json:"type"`
	Phase       pipeline.Phase       `json:"phase"`
	Capturing   bool                 `json:"capturing"`
	Translating bool                 `json:"translating"`
	Input       string               `json:"input"`
	Translation string               `json:"translation"`
	Source      language.Source      `json:"source"`
	Target      language.Target      `json:"target"`
	CanSpeak    bool                 `json:"canSpeak"`
	Error       *pipeline.Failure    `json:"error"`
	History     []conversation.Entry `json:"history"`
}

// SpeakMessage asks the browser to synthesize text.
type SpeakMessage struct {
	Type string          `json:"type"`
	Text string          `json:"text"`
	Lang language.Target `json:"lang"`
	Rate float64         `json:"rate"`
}

func newStateMessage(snap pipeline.Snapshot) StateMessage {
	return StateMessage{
		Type:        MessageState,
		Phase:       snap.Phase,
		Capturing:   snap.Capturing,
		Translating: snap.Translating,
		Input:       snap.Input,
		Translation: snap.Translation,
		Source:      snap.Languages.Source,
		Target:      snap.Languages.Target,
		CanSpeak:    snap.CanSpeak,
		Error:       snap.Err,
		History:     snap.History,
	}
}
