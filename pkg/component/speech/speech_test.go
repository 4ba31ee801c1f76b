package speech_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentis-ai/mentis/pkg/component/speech"
)

func newWhisperStub(t *testing.T, text string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/transcribe":
			if hits != nil {
				hits.Add(1)
			}
			require.NoError(t, r.ParseMultipartForm(1<<20))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"text": "` + text + `", "language": "de", "duration": 4.2}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestTranscribe(t *testing.T) {
	srv := newWhisperStub(t, "guten morgen", nil)
	defer srv.Close()

	client := speech.NewSTTClient(&speech.STTConfig{
		Endpoints: []string{srv.URL},
		Language:  "de",
		Timeout:   5 * time.Second,
	})

	result, err := client.Transcribe(context.Background(), "a.wav", []byte("RIFF"), speech.TranscribeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "guten morgen", result.Text)
	assert.Equal(t, "de", result.Language)
	assert.InDelta(t, 4.2, result.Duration, 1e-9)
	assert.Equal(t, srv.URL, client.ActiveEndpoint())
}

func TestTranscribeFallsBackToNextEndpoint(t *testing.T) {
	var hits atomic.Int32
	healthy := newWhisperStub(t, "fallback worked", &hits)
	defer healthy.Close()

	client := speech.NewSTTClient(&speech.STTConfig{
		// First endpoint never answers; the chain moves on.
		Endpoints: []string{"http://127.0.0.1:1", healthy.URL},
		Timeout:   5 * time.Second,
	})

	result, err := client.Transcribe(context.Background(), "a.wav", []byte("RIFF"), speech.TranscribeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "fallback worked", result.Text)
	assert.Equal(t, healthy.URL, client.ActiveEndpoint())
	assert.Equal(t, int32(1), hits.Load())
}

func TestTranscribeNoEndpointReachable(t *testing.T) {
	client := speech.NewSTTClient(&speech.STTConfig{
		Endpoints: []string{"http://127.0.0.1:1"},
		Timeout:   time.Second,
	})

	assert.False(t, client.Ready(context.Background()))
	_, err := client.Transcribe(context.Background(), "a.wav", []byte("RIFF"), speech.TranscribeOptions{})
	require.Error(t, err)
}

func TestSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/synthesize", r.URL.Path)
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFFaudio"))
	}))
	defer srv.Close()

	client := speech.NewTTSClient(&speech.TTSConfig{URL: srv.URL, Language: "de", Timeout: 5 * time.Second})
	audio, err := client.Synthesize(context.Background(), "hallo", "", "")
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFFaudio"), audio)
}

func TestSynthesizeServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "voice missing", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := speech.NewTTSClient(&speech.TTSConfig{URL: srv.URL, Timeout: 5 * time.Second})
	_, err := client.Synthesize(context.Background(), "hallo", "unknown", "wav")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "audio/wav", speech.ContentType("wav"))
	assert.Equal(t, "audio/mpeg", speech.ContentType("mp3"))
	assert.Equal(t, "audio/opus", speech.ContentType("opus"))
	assert.Equal(t, "audio/wav", speech.ContentType("flac"))
}

func TestDenoise(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/denoise", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "true", r.FormValue("enhance"))
		_, _ = w.Write([]byte("cleaned"))
	}))
	defer srv.Close()

	client := speech.NewDenoiserClient(&speech.DenoiserConfig{URL: srv.URL, Timeout: 5 * time.Second})
	cleaned, err := client.Denoise(context.Background(), "a.wav", []byte("RIFF"), true)
	require.NoError(t, err)
	assert.Equal(t, []byte("cleaned"), cleaned)
}
