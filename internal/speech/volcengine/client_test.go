package volcengine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient("app-1", "token-1", "volcano_tts", srv.URL)
	client.baseDelay = time.Millisecond
	return client
}

func successBody(audio []byte) string {
	return fmt.Sprintf(`{"code": 3000, "message": "ok", "data": %q}`, base64.StdEncoding.EncodeToString(audio))
}

func TestSynthesizeSuccess(t *testing.T) {
	audio := []byte("mp3-bytes")
	var gotReq ttsRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/tts" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer;token-1" {
			t.Errorf("unexpected auth header %q", auth)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotReq); err != nil {
			t.Errorf("unmarshal request: %v", err)
		}
		fmt.Fprint(w, successBody(audio))
	})

	got, err := client.Synthesize(context.Background(), "大家好", "zh_male_yuanboxiaoshu_moon_bigtts")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !bytes.Equal(got, audio) {
		t.Fatalf("expected decoded audio, got %q", got)
	}
	if gotReq.App.AppID != "app-1" || gotReq.App.Cluster != "volcano_tts" {
		t.Fatalf("unexpected app block: %+v", gotReq.App)
	}
	if gotReq.Audio.VoiceType != "zh_male_yuanboxiaoshu_moon_bigtts" || gotReq.Audio.Encoding != "mp3" {
		t.Fatalf("unexpected audio block: %+v", gotReq.Audio)
	}
	if gotReq.Request.Text != "大家好" || gotReq.Request.Operation != "query" {
		t.Fatalf("unexpected request block: %+v", gotReq.Request)
	}
	if gotReq.Request.ReqID == "" {
		t.Fatalf("expected a request id")
	}
}

func TestSynthesizeRetriesRateLimit(t *testing.T) {
	audio := []byte("audio")
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, successBody(audio))
	})

	got, err := client.Synthesize(context.Background(), "text", "voice")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !bytes.Equal(got, audio) {
		t.Fatalf("expected audio after retries")
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestSynthesizeRetriesEmbeddedFailureCode(t *testing.T) {
	audio := []byte("audio")
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			fmt.Fprint(w, `{"code": 4003, "message": "rate limited"}`)
			return
		}
		fmt.Fprint(w, successBody(audio))
	})

	got, err := client.Synthesize(context.Background(), "text", "voice")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !bytes.Equal(got, audio) {
		t.Fatalf("expected audio after embedded-code retry")
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestSynthesizeExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.Synthesize(context.Background(), "text", "voice")
	if err == nil || !strings.Contains(err.Error(), "retries exhausted after 5 attempts") {
		t.Fatalf("expected exhaustion error, got %v", err)
	}
	if calls.Load() != 5 {
		t.Fatalf("expected exactly 5 attempts, got %d", calls.Load())
	}
}

func TestSynthesizeDoesNotRetryHardErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "bad voice")
	})

	_, err := client.Synthesize(context.Background(), "text", "voice")
	if err == nil || !strings.Contains(err.Error(), "status 400") {
		t.Fatalf("expected hard error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestSynthesizeMissingAudioData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code": 3000, "message": "ok", "data": ""}`)
	})

	_, err := client.Synthesize(context.Background(), "text", "voice")
	if err == nil || !strings.Contains(err.Error(), "no audio data") {
		t.Fatalf("expected missing-data error, got %v", err)
	}
}
