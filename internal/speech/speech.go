package speech

import "context"

// Synthesizer converts text into encoded audio using a provider voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}
