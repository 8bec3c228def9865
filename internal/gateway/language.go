package gateway

import (
	"sync"

	"github.com/eleven-am/voice-relay/internal/transcription"
)

// generation advances per utterance so late previews cannot pin a language
// onto the next one.
type languageState struct {
	mu         sync.Mutex
	declared   string
	sticky     string
	generation uint64
}

func newLanguageState(declared string) *languageState {
	return &languageState{declared: declared}
}

func (s *languageState) hint() (string, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if transcription.IsAuto(s.declared) {
		return s.sticky, s.generation
	}
	return s.declared, s.generation
}

func (s *languageState) observe(generation uint64, detected string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation || detected == "" || s.sticky != "" {
		return
	}
	if transcription.IsAuto(s.declared) {
		s.sticky = detected
	}
}

func (s *languageState) nextUtterance() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.sticky = ""
}

func (s *languageState) declare(lang string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.declared = lang
	s.generation++
	s.sticky = ""
}

func (s *languageState) source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if transcription.IsAuto(s.declared) {
		return transcription.AutoLanguage
	}
	return s.declared
}

func (s *languageState) declaredTag() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.declared
}
