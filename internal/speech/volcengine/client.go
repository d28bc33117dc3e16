package volcengine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"debate-backend/internal/shared/telemetry"
	"debate-backend/internal/speech"
)

const (
	defaultBaseURL = "https://openspeech.bytedance.com"
	defaultCluster = "volcano_tts"

	// Provider success code carried inside a 200 response body.
	codeSuccess = 3000

	maxAttempts      = 5
	defaultBaseDelay = 1 * time.Second
)

// Client implements speech.Synthesizer against the Volcengine TTS API.
type Client struct {
	client      *resty.Client
	appID       string
	accessToken string
	cluster     string

	// baseDelay is the first backoff interval; it doubles per attempt.
	// Overridable for tests.
	baseDelay time.Duration
}

// NewClient constructs a Volcengine TTS client.
func NewClient(appID, accessToken, cluster, baseURL string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if strings.TrimSpace(cluster) == "" {
		cluster = defaultCluster
	}
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	client.SetTimeout(60 * time.Second)

	return &Client{
		client:      client,
		appID:       appID,
		accessToken: accessToken,
		cluster:     cluster,
		baseDelay:   defaultBaseDelay,
	}
}

type ttsRequest struct {
	App     appBlock     `json:"app"`
	User    userBlock    `json:"user"`
	Audio   audioBlock   `json:"audio"`
	Request requestBlock `json:"request"`
}

type appBlock struct {
	AppID   string `json:"appid"`
	Token   string `json:"token"`
	Cluster string `json:"cluster"`
}

type userBlock struct {
	UID string `json:"uid"`
}

type audioBlock struct {
	VoiceType   string  `json:"voice_type"`
	Encoding    string  `json:"encoding"`
	SpeedRatio  float64 `json:"speed_ratio"`
	VolumeRatio float64 `json:"volume_ratio"`
	PitchRatio  float64 `json:"pitch_ratio"`
}

type requestBlock struct {
	ReqID        string `json:"reqid"`
	Text         string `json:"text"`
	Operation    string `json:"operation"`
	WithFrontend int    `json:"with_frontend"`
	FrontendType string `json:"frontend_type"`
}

type ttsResponse struct {
	Code    *int   `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Data    string `json:"data,omitempty"`
}

// retryableError marks rate-limit and transient-unavailability signals,
// including success-shaped transport responses with an embedded failure code.
type retryableError struct {
	msg string
}

func (e *retryableError) Error() string { return e.msg }

// Synthesize generates mp3 audio for the text. Rate-limit signals are retried
// with exponential backoff up to the attempt ceiling; exhausting it surfaces
// the last error to the caller.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		audio, err := c.synthesizeOnce(ctx, text, voiceID)
		if err == nil {
			return audio, nil
		}
		var retryable *retryableError
		if !errors.As(err, &retryable) {
			return nil, err
		}
		lastErr = err

		delay := c.baseDelay << attempt
		telemetry.Warn("tts.rate_limited", map[string]any{
			"attempt":  attempt + 1,
			"max":      maxAttempts,
			"delay_ms": delay.Milliseconds(),
			"error":    err.Error(),
		})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("tts retries exhausted after %d attempts: %w", maxAttempts, lastErr)
}

func (c *Client) synthesizeOnce(ctx context.Context, text, voiceID string) ([]byte, error) {
	payload := ttsRequest{
		App: appBlock{
			AppID:   c.appID,
			Token:   c.accessToken,
			Cluster: c.cluster,
		},
		User: userBlock{UID: "user_1"},
		Audio: audioBlock{
			VoiceType:   voiceID,
			Encoding:    "mp3",
			SpeedRatio:  1.0,
			VolumeRatio: 1.0,
			PitchRatio:  1.0,
		},
		Request: requestBlock{
			ReqID:        uuid.NewString(),
			Text:         text,
			Operation:    "query",
			WithFrontend: 1,
			FrontendType: "unitTson",
		},
	}

	resp, err := c.client.R().
		SetContext(ctx).
		// Volcengine uses a non-standard "Bearer;token" scheme.
		SetHeader("Authorization", "Bearer;"+c.accessToken).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post("/api/v1/tts")
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return nil, &retryableError{msg: fmt.Sprintf("tts http status %d", resp.StatusCode())}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("tts http status %d: %s", resp.StatusCode(), truncate(resp.String(), 500))
	}

	var parsed ttsResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("tts response parse: %w", err)
	}
	if parsed.Code != nil && *parsed.Code != codeSuccess {
		// 200-shaped transport response with an embedded failure code.
		return nil, &retryableError{msg: fmt.Sprintf("tts provider code %d: %s", *parsed.Code, parsed.Message)}
	}
	if parsed.Data == "" {
		return nil, fmt.Errorf("tts generation failed: no audio data")
	}

	audio, err := base64.StdEncoding.DecodeString(parsed.Data)
	if err != nil {
		return nil, fmt.Errorf("tts audio decode: %w", err)
	}
	return audio, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ speech.Synthesizer = (*Client)(nil)
