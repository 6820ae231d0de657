package transcribe

/*
#cgo LDFLAGS: -lwhisper -lggml -lggml-base -lggml-cpu -lm -lstdc++
#cgo linux LDFLAGS: -fopenmp
#cgo darwin LDFLAGS: -lggml-metal -lggml-blas -framework Accelerate -framework Metal -framework Foundation -framework CoreGraphics
#include <whisper.h>
#include <stdlib.h>
*/
import "C"

import (
	"errors"
	"fmt"
	"unsafe"
)

// whisperModel is a whisper.cpp context driven step by step through the C
// API: log-mel features, encoder, single-token decoder calls and raw logits.
// It is not safe for concurrent use.
type whisperModel struct {
	ctx    *C.struct_whisper_context
	nVocab int
}

func openWhisperModel(path string) (*whisperModel, error) {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	ctx := C.whisper_init_from_file_with_params(cPath, C.whisper_context_default_params())
	if ctx == nil {
		return nil, fmt.Errorf("whisper_init_from_file_with_params failed for %q", path)
	}
	return &whisperModel{ctx: ctx, nVocab: int(C.whisper_n_vocab(ctx))}, nil
}

func (m *whisperModel) close() {
	if m.ctx != nil {
		C.whisper_free(m.ctx)
		m.ctx = nil
	}
}

// pcmToMel computes log-mel features for 16 kHz mono samples.
func (m *whisperModel) pcmToMel(samples []float32, threads int) error {
	if len(samples) == 0 {
		return errors.New("no samples")
	}
	rc := C.whisper_pcm_to_mel(m.ctx, (*C.float)(unsafe.Pointer(&samples[0])), C.int(len(samples)), C.int(threads))
	if rc != 0 {
		return fmt.Errorf("whisper_pcm_to_mel returned %d", int(rc))
	}
	return nil
}

// encode runs the encoder on the mel window starting at offset frames.
func (m *whisperModel) encode(offset, threads int) error {
	if rc := C.whisper_encode(m.ctx, C.int(offset), C.int(threads)); rc != 0 {
		return fmt.Errorf("whisper_encode returned %d", int(rc))
	}
	return nil
}

// decode feeds one token at position past and returns a copy of the logits
// for the next position.
func (m *whisperModel) decode(token int32, past, threads int) ([]float32, error) {
	tok := C.whisper_token(token)
	if rc := C.whisper_decode(m.ctx, &tok, 1, C.int(past), C.int(threads)); rc != 0 {
		return nil, fmt.Errorf("whisper_decode returned %d", int(rc))
	}
	p := C.whisper_get_logits(m.ctx)
	if p == nil {
		return nil, errors.New("whisper_get_logits returned nil")
	}
	logits := make([]float32, m.nVocab)
	copy(logits, unsafe.Slice((*float32)(unsafe.Pointer(p)), m.nVocab))
	return logits, nil
}

// melFrames is the number of 10 ms frames produced by the last pcmToMel.
func (m *whisperModel) melFrames() int { return int(C.whisper_n_len(m.ctx)) }

func (m *whisperModel) textCtx() int { return int(C.whisper_n_text_ctx(m.ctx)) }

func (m *whisperModel) multilingual() bool { return C.whisper_is_multilingual(m.ctx) != 0 }

func (m *whisperModel) tokenEOT() int32          { return int32(C.whisper_token_eot(m.ctx)) }
func (m *whisperModel) tokenSOT() int32          { return int32(C.whisper_token_sot(m.ctx)) }
func (m *whisperModel) tokenTranscribe() int32   { return int32(C.whisper_token_transcribe(m.ctx)) }
func (m *whisperModel) tokenNoTimestamps() int32 { return int32(C.whisper_token_not(m.ctx)) }
func (m *whisperModel) tokenLang(id int) int32   { return int32(C.whisper_token_lang(m.ctx, C.int(id))) }

func (m *whisperModel) tokenText(tok int32) string {
	return C.GoString(C.whisper_token_to_str(m.ctx, C.whisper_token(tok)))
}

// langID maps a language code such as "en" to its id, or -1.
func (m *whisperModel) langID(lang string) int {
	cLang := C.CString(lang)
	defer C.free(unsafe.Pointer(cLang))
	return int(C.whisper_lang_id(cLang))
}

func (m *whisperModel) langCode(id int) string {
	return C.GoString(C.whisper_lang_str(C.int(id)))
}

// detectLanguage scores every language on the encoder window at offsetMs and
// returns the most likely id with its probability.
func (m *whisperModel) detectLanguage(offsetMs, threads int) (int, float32, error) {
	probs := make([]float32, int(C.whisper_lang_max_id())+1)
	id := int(C.whisper_lang_auto_detect(m.ctx, C.int(offsetMs), C.int(threads), (*C.float)(unsafe.Pointer(&probs[0]))))
	if id < 0 || id >= len(probs) {
		return 0, 0, fmt.Errorf("whisper_lang_auto_detect returned %d", id)
	}
	return id, probs[id], nil
}
