package report

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"github.com/ahrav/go-veriai/internal/domain"
)

// DefaultAlignThreshold is the minimum similarity for a claim to be tied to
// a sentence of the input.
const DefaultAlignThreshold = 0.5

// Alignment ties a claim to the input sentence it most likely restates.
// Sentence is the zero-based sentence index, or -1 when no sentence reached
// the threshold.
type Alignment struct {
	ClaimID    string  `json:"claimId" yaml:"claimId"`
	Sentence   int     `json:"sentence" yaml:"sentence"`
	Text       string  `json:"text,omitempty" yaml:"text,omitempty"`
	Similarity float64 `json:"similarity" yaml:"similarity"`
}

// SplitSentences splits text after '.', '!' or '?' when followed by
// whitespace or the end of the text. Empty sentences are dropped.
func SplitSentences(text string) []string {
	var (
		sentences []string
		start     int
	)
	runes := []rune(text)
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// Align matches every claim against the sentences of text and returns one
// Alignment per claim, in claim order.
func Align(text string, claims []domain.ClaimAnalysis, threshold float64) []Alignment {
	// A Caser is stateful and cannot be shared between goroutines.
	caser := cases.Fold()
	fold := func(s string) string {
		return caser.String(strings.Join(strings.Fields(s), " "))
	}

	sentences := SplitSentences(text)
	folded := make([]string, len(sentences))
	for i, s := range sentences {
		folded[i] = fold(trimTerminal(s))
	}

	out := make([]Alignment, len(claims))
	for i, c := range claims {
		a := Alignment{ClaimID: c.ID, Sentence: -1}
		claim := fold(trimTerminal(c.Text))
		for j, s := range folded {
			sim := similarity(claim, s)
			if sim > a.Similarity {
				a.Similarity = sim
				a.Sentence = j
			}
		}
		if a.Sentence >= 0 && a.Similarity < threshold {
			a.Sentence = -1
		}
		if a.Sentence >= 0 {
			a.Text = sentences[a.Sentence]
		}
		out[i] = a
	}
	return out
}

func trimTerminal(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), ".!?")
}

// similarity is 1 - distance/maxRunes, in [0,1].
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
}
