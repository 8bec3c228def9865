package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/eleven-am/voice-relay/internal/pairing"
)

const (
	TypeStopRecording  = "stop_recording"
	TypeLanguageChange = "language_change"
	TypePreview        = "preview"
	TypeCommit         = "commit"
	TypeAudio          = "audio"
)

type controlMessage struct {
	Type string  `json:"type"`
	Lang string  `json:"lang"`
	Text *string `json:"text"`
}

// Frames that are not JSON objects are chat text.
func parseControl(data []byte) controlMessage {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		text := string(data)
		return controlMessage{Text: &text}
	}
	return msg
}

type TranscriptMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ChatMessage struct {
	Sender     string `json:"sender"`
	Original   string `json:"original"`
	Translated string `json:"translated"`
	SrcLang    string `json:"src_lang"`
	TargetLang string `json:"target_lang"`
}

type AudioMessage struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
	Sender  string `json:"sender"`
}

func languageSwitched(lang string) pairing.SystemMessage {
	return pairing.SystemMessage{System: fmt.Sprintf("Language switched to %s", lang)}
}
