package transcribe

import (
	"math"
	"testing"
)

func TestComputeWER(t *testing.T) {
	const jfk = "ask not what your country can do for you"
	tests := []struct {
		name       string
		reference  string
		hypothesis string
		want       WERResult
	}{
		{"exact", jfk, jfk, WERResult{RefWords: 9}},
		{"dropped_word", jfk, "ask what your country can do for you",
			WERResult{WER: 1.0 / 9, Deletions: 1, RefWords: 9}},
		{"hallucinated_tail", "thank you", "thank you for watching",
			WERResult{WER: 1, Insertions: 2, RefWords: 2}},
		{"misheard_word", "the quick brown fox", "the quick brown box",
			WERResult{WER: 0.25, Substitutions: 1, RefWords: 4}},
		{"casing_and_punctuation", "And so, my fellow Americans:", " and so my fellow americans",
			WERResult{RefWords: 5}},
		{"collapsed_whitespace", "  one   two\tthree\n", "one two three",
			WERResult{RefWords: 3}},
		{"empty_reference", "", "background noise", WERResult{}},
		{"no_speech_detected", "hello world", "",
			WERResult{WER: 1, Deletions: 2, RefWords: 2}},
		{"all_wrong", "one two three", "four five six",
			WERResult{WER: 1, Substitutions: 3, RefWords: 3}},
		{"mixed", jfk, "ask now what the country can do",
			WERResult{WER: 4.0 / 9, Substitutions: 2, Deletions: 2, RefWords: 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeWER(tt.reference, tt.hypothesis)
			if math.Abs(got.WER-tt.want.WER) > 1e-9 {
				t.Errorf("WER = %f, want %f", got.WER, tt.want.WER)
			}
			got.WER = tt.want.WER
			if got != tt.want {
				t.Errorf("ComputeWER(%q, %q) = %+v, want %+v", tt.reference, tt.hypothesis, got, tt.want)
			}
		})
	}
}

func TestComputeWERUnicodeNormalization(t *testing.T) {
	tests := []struct {
		name       string
		reference  string
		hypothesis string
	}{
		{"fullwidth", "ｈｅｌｌｏ ｗｏｒｌｄ", "hello world"},
		{"ligature", "ﬁne print", "fine print"},
		{"composed_accent", "café au lait", "café au lait"},
		{"curly_quotes", "“don’t” stop", "dont stop"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeWER(tt.reference, tt.hypothesis); got.WER != 0 {
				t.Errorf("WER = %f, want 0 (%+v)", got.WER, got)
			}
		})
	}
}
