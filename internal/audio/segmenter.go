package audio

import "slices"

type SegmenterConfig struct {
	WindowSize          int
	SilenceTolerance    int
	Threshold           float64
	AmplitudeFloor      float32
	MinUtteranceSamples int
}

func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		WindowSize:          512,
		SilenceTolerance:    38,
		Threshold:           0.1,
		AmplitudeFloor:      0.01,
		MinUtteranceSamples: SampleRate,
	}
}

func (c SegmenterConfig) normalize() SegmenterConfig {
	def := DefaultSegmenterConfig()
	if c.WindowSize <= 0 {
		c.WindowSize = def.WindowSize
	}
	if c.SilenceTolerance < 0 {
		c.SilenceTolerance = def.SilenceTolerance
	}
	if c.MinUtteranceSamples < 0 {
		c.MinUtteranceSamples = 0
	}
	return c
}

// Segmenter assembles fixed-size speech windows into utterances. It is not
// safe for concurrent use; each connection owns one.
type Segmenter struct {
	cfg     SegmenterConfig
	scorer  SpeechScorer
	pending []float32
	buf     []float32
	silent  int
	active  bool
}

func NewSegmenter(cfg SegmenterConfig, scorer SpeechScorer) *Segmenter {
	if scorer == nil {
		scorer = EnergyScorer{}
	}
	return &Segmenter{cfg: cfg.normalize(), scorer: scorer}
}

// Classify evaluates both the scorer and the amplitude fallback; either one
// marks the window as speech.
func (s *Segmenter) Classify(window []float32) bool {
	score := s.scorer.ScoreSpeech(window)
	peak := Peak(window)
	return score > s.cfg.Threshold || peak > s.cfg.AmplitudeFloor
}

// Push feeds samples through the state machine and returns any utterances
// completed by sustained silence. A trailing partial window is held until the
// next Push.
func (s *Segmenter) Push(samples []float32) [][]float32 {
	s.pending = append(s.pending, samples...)

	var out [][]float32
	w := s.cfg.WindowSize
	off := 0
	for ; len(s.pending)-off >= w; off += w {
		if utt := s.step(s.pending[off : off+w]); utt != nil {
			out = append(out, utt)
		}
	}
	s.pending = append(s.pending[:0], s.pending[off:]...)
	return out
}

func (s *Segmenter) step(window []float32) []float32 {
	if s.Classify(window) {
		s.active = true
		s.silent = 0
		s.buf = append(s.buf, window...)
		return nil
	}
	if !s.active {
		return nil
	}

	s.buf = append(s.buf, window...)
	s.silent++
	if s.silent <= s.cfg.SilenceTolerance {
		return nil
	}

	keep := len(s.buf) - s.silent*s.cfg.WindowSize
	s.active = false
	s.silent = 0
	s.buf = s.buf[:keep]
	if keep < s.cfg.MinUtteranceSamples {
		return nil
	}

	utt := s.buf
	s.buf = nil
	return utt
}

// Flush returns whatever is buffered regardless of state and resets the
// segmenter. Any partial window is discarded.
func (s *Segmenter) Flush() []float32 {
	utt := s.buf
	s.buf = nil
	s.pending = s.pending[:0]
	s.active = false
	s.silent = 0
	if len(utt) == 0 {
		return nil
	}
	return utt
}

func (s *Segmenter) Speaking() bool {
	return s.active
}

func (s *Segmenter) Buffered() []float32 {
	return slices.Clone(s.buf)
}

// Tail returns a copy of at most the last n buffered samples.
func (s *Segmenter) Tail(n int) []float32 {
	if n <= 0 || n >= len(s.buf) {
		return slices.Clone(s.buf)
	}
	return slices.Clone(s.buf[len(s.buf)-n:])
}
