package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// tokenModel runs the text decoder for one step.
type tokenModel interface {
	// nextLogits feeds token at position past and returns the vocabulary
	// logits for the following position.
	nextLogits(token int32, past int) ([]float32, error)
}

// greedyGenerate feeds prompt and then repeatedly appends the most likely
// text token until eot is produced or budget tokens have been generated.
// Special tokens other than eot (ids above it) are never selected. The
// returned ids exclude the prompt and eot.
func greedyGenerate(ctx context.Context, m tokenModel, prompt []int32, eot int32, budget int) ([]int32, error) {
	if len(prompt) == 0 {
		return nil, errors.New("empty prompt")
	}

	var (
		logits []float32
		err    error
		past   int
	)
	for _, tok := range prompt {
		logits, err = m.nextLogits(tok, past)
		if err != nil {
			return nil, fmt.Errorf("prompt token %d: %w", tok, err)
		}
		past++
	}

	var out []int32
	for len(out) < budget {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		next := argmaxText(logits, eot)
		if next == eot {
			break
		}
		out = append(out, next)
		logits, err = m.nextLogits(next, past)
		if err != nil {
			return out, fmt.Errorf("step %d: %w", len(out), err)
		}
		past++
	}
	return out, nil
}

// argmaxText returns the highest scoring id in [0, eot]. Empty logits count
// as end of text.
func argmaxText(logits []float32, eot int32) int32 {
	limit := min(int(eot), len(logits)-1)
	if limit < 0 {
		return eot
	}
	best := int32(0)
	for i := 1; i <= limit; i++ {
		if logits[i] > logits[best] {
			best = int32(i)
		}
	}
	return best
}

// decodeTokens maps generated ids back to text, dropping special tokens.
func decodeTokens(tokens []int32, eot int32, toText func(int32) string) string {
	var sb strings.Builder
	for _, tok := range tokens {
		if tok >= eot {
			continue
		}
		sb.WriteString(toText(tok))
	}
	return strings.TrimSpace(sb.String())
}
