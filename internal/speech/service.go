package speech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"debate-backend/internal/shared/storage/object"
	"debate-backend/internal/shared/telemetry"
)

// Service synthesizes speech for debate personas, with an optional
// content-addressed audio cache in front of the provider.
type Service struct {
	Synth Synthesizer
	Cache object.Store
}

// SynthesizeForRole maps the role to its fixed voice and returns mp3 audio.
func (s *Service) SynthesizeForRole(ctx context.Context, text, role string) ([]byte, error) {
	if s.Synth == nil {
		return nil, fmt.Errorf("speech synthesizer not configured")
	}
	voice := VoiceForRole(role)
	key := cacheKey(text, voice)

	if s.Cache != nil {
		if body, err := s.Cache.Open(ctx, key); err == nil {
			cached, readErr := io.ReadAll(body)
			body.Close()
			if readErr == nil && len(cached) > 0 {
				return cached, nil
			}
		}
	}

	audio, err := s.Synth.Synthesize(ctx, text, voice)
	if err != nil {
		return nil, err
	}

	if s.Cache != nil {
		if err := s.Cache.Put(ctx, key, "audio/mpeg", audio); err != nil {
			// Cache writes are best-effort; synthesis already succeeded.
			telemetry.Warn("tts.cache_write_failed", map[string]any{"key": key, "error": err.Error()})
		}
	}
	return audio, nil
}

func cacheKey(text, voice string) string {
	sum := sha256.Sum256([]byte(voice + "|" + text))
	return "tts/" + hex.EncodeToString(sum[:]) + ".mp3"
}
