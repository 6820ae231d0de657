package transcribe

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chaz8081/vidscribe/internal/audio"
	"github.com/chaz8081/vidscribe/internal/logging"
)

type fakeTranscriptionAPI struct {
	t        *testing.T
	calls    int
	model    string
	language string
	upload   []byte
}

func (f *fakeTranscriptionAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls++
	if r.URL.Path != "/v1/audio/transcriptions" {
		http.NotFound(w, r)
		return
	}
	if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
		return
	}
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		f.t.Errorf("ParseMultipartForm: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.model = r.FormValue("model")
	f.language = r.FormValue("language")
	file, _, err := r.FormFile("file")
	if err != nil {
		f.t.Errorf("FormFile: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()
	f.upload, _ = io.ReadAll(file)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"text": " ask not what your country can do for you "})
}

func newFakeOpenAI(t *testing.T, lang string) (*OpenAITranscriber, *fakeTranscriptionAPI) {
	t.Helper()
	api := &fakeTranscriptionAPI{t: t}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	tr, err := NewOpenAITranscriber(OpenAIOptions{
		APIKey:           "test-key",
		BaseURL:          srv.URL + "/v1/",
		Language:         lang,
		SilenceThreshold: 1e-4,
		Logger:           logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewOpenAITranscriber() error = %v", err)
	}
	return tr, api
}

func speech() audio.Buffer {
	s := make([]float32, SampleRate/2)
	for i := range s {
		s[i] = float32(0.3 * math.Sin(2*math.Pi*220*float64(i)/SampleRate))
	}
	return audio.Buffer{Samples: s, SampleRate: SampleRate}
}

func TestOpenAITranscribe(t *testing.T) {
	tr, api := newFakeOpenAI(t, "en")

	text, err := tr.Transcribe(t.Context(), speech())
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "ask not what your country can do for you" {
		t.Errorf("Transcribe() = %q", text)
	}
	if api.model != "whisper-1" {
		t.Errorf("model = %q, want whisper-1", api.model)
	}
	if api.language != "en" {
		t.Errorf("language = %q, want en", api.language)
	}

	uploaded, err := audio.DecodeWAV(bytes.NewReader(api.upload))
	if err != nil {
		t.Fatalf("uploaded file is not a WAV: %v", err)
	}
	if uploaded.SampleRate != SampleRate || uploaded.Len() != SampleRate/2 {
		t.Errorf("uploaded %d samples @ %d Hz", uploaded.Len(), uploaded.SampleRate)
	}
}

func TestOpenAIAutoLanguageOmitsHint(t *testing.T) {
	tr, api := newFakeOpenAI(t, "auto")
	if _, err := tr.Transcribe(t.Context(), speech()); err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if api.language != "" {
		t.Errorf("language = %q, want none", api.language)
	}
}

func TestOpenAISilenceSkipsRequest(t *testing.T) {
	tr, api := newFakeOpenAI(t, "en")

	for _, buf := range []audio.Buffer{
		{SampleRate: SampleRate},
		{Samples: make([]float32, 1600), SampleRate: SampleRate},
	} {
		text, err := tr.Transcribe(t.Context(), buf)
		if err != nil || text != "" {
			t.Errorf("Transcribe(silent) = %q, %v; want empty, nil", text, err)
		}
	}
	if api.calls != 0 {
		t.Errorf("API called %d times for silent input", api.calls)
	}
}

func TestOpenAIRejectsWrongRate(t *testing.T) {
	tr, api := newFakeOpenAI(t, "en")
	buf := speech()
	buf.SampleRate = 44100

	if _, err := tr.Transcribe(t.Context(), buf); !errors.Is(err, ErrSampleRateMismatch) {
		t.Errorf("Transcribe() error = %v, want ErrSampleRateMismatch", err)
	}
	if api.calls != 0 {
		t.Error("API should not be called for mismatched audio")
	}
}

func TestOpenAIServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	t.Cleanup(srv.Close)

	tr, err := NewOpenAITranscriber(OpenAIOptions{APIKey: "k", BaseURL: srv.URL + "/v1", Logger: logging.NewNop()})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Transcribe(t.Context(), speech()); err == nil {
		t.Error("Transcribe() should return the API error")
	}
}

func TestNewOpenAITranscriberRequiresKey(t *testing.T) {
	if _, err := NewOpenAITranscriber(OpenAIOptions{}); err == nil {
		t.Error("NewOpenAITranscriber() without a key should fail")
	}
}
