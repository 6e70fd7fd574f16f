package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"edubot/internal/domain"
	"edubot/internal/textutil"
)

const defaultMaxSentences = 5

// Sentences end at ., ! or ? followed by whitespace, or at end of text.
var sentencePattern = regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`)

// FrequencySummarizer ranks sentences by the normalised frequency of their
// content words and returns the best ones in their original order.
type FrequencySummarizer struct{}

var _ domain.Summarizer = (*FrequencySummarizer)(nil)

// NewFrequencySummarizer creates a frequency-based sentence ranker summarizer.
func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{}
}

// Summarize returns a short extractive summary of text.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = defaultMaxSentences
	}
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return "", nil
	}

	terms := make([][]string, len(sentences))
	freq := map[string]float64{}
	for i, sent := range sentences {
		terms[i] = textutil.Terms(sent)
		for _, tok := range terms[i] {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(sentences))
	for i := range sentences {
		score := 0.0
		for _, tok := range terms[i] {
			score += freq[tok] / maxF
		}
		if n := len(terms[i]); n > 0 {
			score /= math.Sqrt(float64(n))
		}
		scores[i] = scored{i, score}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if maxSentences > len(scores) {
		maxSentences = len(scores)
	}
	selected := make([]int, maxSentences)
	for i := range selected {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)

	out := make([]string, 0, len(selected))
	for _, idx := range selected {
		out = append(out, sentences[idx])
	}
	return strings.Join(out, " "), nil
}

func splitSentences(text string) []string {
	var out []string
	for _, m := range sentencePattern.FindAllString(text, -1) {
		sent := strings.Join(strings.Fields(m), " ")
		if len(textutil.Words(sent)) == 0 {
			continue
		}
		out = append(out, sent)
	}
	return out
}

// Nop returns no summary. It is selected with summarizer.type "none".
type Nop struct{}

func (Nop) Summarize(string, int) (string, error) { return "", nil }
