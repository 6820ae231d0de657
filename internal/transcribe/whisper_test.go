package transcribe

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chaz8081/vidscribe/internal/audio"
	"github.com/chaz8081/vidscribe/internal/logging"
)

// whisperModelPath resolves the whisper model relative to the project root.
func whisperModelPath(t testing.TB) string {
	t.Helper()
	path := filepath.Join("..", "..", "models", "ggml-base.en.bin")
	if _, err := os.Stat(path); err != nil {
		t.Skipf("model not found at %s (run 'vidscribe models download base.en' first): %v", path, err)
	}
	return path
}

// jfkSamples loads the JFK sample shipped with whisper.cpp.
func jfkSamples(t testing.TB) audio.Buffer {
	t.Helper()
	wavPath := filepath.Join("..", "..", "third_party", "whisper.cpp", "samples", "jfk.wav")
	if _, err := os.Stat(wavPath); err != nil {
		t.Skipf("JFK sample not found at %s: %v", wavPath, err)
	}
	buf, err := audio.ReadWAV(wavPath)
	if err != nil {
		t.Fatalf("read %s: %v", wavPath, err)
	}
	return buf
}

func newWhisper(t *testing.T) *WhisperTranscriber {
	t.Helper()
	tr, err := NewWhisperTranscriber(whisperModelPath(t), WhisperOptions{
		Language: "en",
		Threads:  4,
		Logger:   logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewWhisperTranscriber: %v", err)
	}
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestNewWhisperTranscriberBadPath(t *testing.T) {
	_, err := NewWhisperTranscriber("/nonexistent/model.bin", WhisperOptions{Logger: logging.NewNop()})
	if err == nil {
		t.Fatal("NewWhisperTranscriber with bad path should return error")
	}
}

func TestWhisperTranscribeJFK(t *testing.T) {
	tr := newWhisper(t)
	buf := jfkSamples(t)

	text, err := tr.Transcribe(t.Context(), buf)
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if !strings.Contains(strings.ToLower(text), "ask not what your country") {
		t.Errorf("expected transcript to contain 'ask not what your country', got: %q", text)
	}
}

func TestWhisperTranscribeSilence(t *testing.T) {
	tr := newWhisper(t)
	tr.opts.SilenceThreshold = 1e-4

	text, err := tr.Transcribe(t.Context(), audio.Buffer{Samples: make([]float32, SampleRate), SampleRate: SampleRate})
	if err != nil {
		t.Fatalf("Transcribe on silence returned error: %v", err)
	}
	if text != "" {
		t.Errorf("Transcribe on silence = %q, want empty", text)
	}
}

func TestWhisperCloseTwice(t *testing.T) {
	tr := newWhisper(t)
	if err := tr.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestSeq2SeqTranscribeJFK(t *testing.T) {
	tr, err := NewSeq2SeqTranscriber(whisperModelPath(t), Seq2SeqOptions{
		Language: "en",
		Threads:  4,
		Logger:   logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewSeq2SeqTranscriber: %v", err)
	}
	defer func() { _ = tr.Close() }()

	text, err := tr.Transcribe(t.Context(), jfkSamples(t))
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if wer := ComputeWER(jfkTranscript, text); wer.WER > 0.3 {
		t.Errorf("WER = %.2f for %q", wer.WER, text)
	}
}

func TestNewSeq2SeqTranscriberMissingModel(t *testing.T) {
	if _, err := NewSeq2SeqTranscriber(filepath.Join(t.TempDir(), "missing.bin"), Seq2SeqOptions{}); err == nil {
		t.Fatal("NewSeq2SeqTranscriber with missing model should fail")
	}
}
