package audio

import "math"

// SpeechScorer reports the probability in [0, 1] that a window contains speech.
type SpeechScorer interface {
	ScoreSpeech(window []float32) float64
}

type ScorerFunc func(window []float32) float64

func (f ScorerFunc) ScoreSpeech(window []float32) float64 {
	return f(window)
}

// EnergyScorer maps window RMS energy linearly onto [0, 1], saturating at
// Reference.
type EnergyScorer struct {
	Reference float64
}

const defaultEnergyReference = 0.3

func (e EnergyScorer) ScoreSpeech(window []float32) float64 {
	if len(window) == 0 {
		return 0
	}
	ref := e.Reference
	if ref <= 0 {
		ref = defaultEnergyReference
	}

	var energy float64
	for _, s := range window {
		energy += float64(s) * float64(s)
	}
	rms := math.Sqrt(energy / float64(len(window)))

	return math.Min(rms/ref, 1)
}
