package transcribe

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// WERResult holds detailed word error rate results.
type WERResult struct {
	WER           float64 // (S + I + D) / RefWords
	Substitutions int
	Insertions    int
	Deletions     int
	RefWords      int
}

// ComputeWER scores hypothesis against reference by word-level edit
// distance. Both strings are NFKC-normalised, case-folded, stripped of
// punctuation and split on whitespace. An empty reference scores 0.
func ComputeWER(reference, hypothesis string) WERResult {
	ref := normalizeWords(reference)
	hyp := normalizeWords(hypothesis)

	n, m := len(ref), len(hyp)
	if n == 0 {
		return WERResult{}
	}

	// d[i][j] is the edit distance between ref[:i] and hyp[:j].
	d := make([][]int, n+1)
	for i := range d {
		d[i] = make([]int, m+1)
		d[i][0] = i
	}
	for j := range m + 1 {
		d[0][j] = j
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if ref[i-1] == hyp[j-1] {
				d[i][j] = d[i-1][j-1]
				continue
			}
			d[i][j] = 1 + min(d[i-1][j-1], d[i-1][j], d[i][j-1])
		}
	}

	var res WERResult
	i, j := n, m
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && ref[i-1] == hyp[j-1]:
			i, j = i-1, j-1
		case i > 0 && j > 0 && d[i][j] == d[i-1][j-1]+1:
			res.Substitutions++
			i, j = i-1, j-1
		case i > 0 && d[i][j] == d[i-1][j]+1:
			res.Deletions++
			i--
		default:
			res.Insertions++
			j--
		}
	}

	res.RefWords = n
	res.WER = float64(res.Substitutions+res.Insertions+res.Deletions) / float64(n)
	return res
}

func normalizeWords(s string) []string {
	s = strings.ToLower(norm.NFKC.String(s))
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return -1
		}
		return r
	}, s)
	return strings.Fields(s)
}
