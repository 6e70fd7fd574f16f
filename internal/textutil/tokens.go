// Package textutil holds the word tokenizer shared by the offline embedder,
// the summarizer and the TUI highlighter.
package textutil

import (
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by",
		"with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "its", "this", "that", "these",
		"those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into",
		"about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own",
		"same", "too", "very", "can", "will", "just", "don", "should", "now", "we", "our", "their", "they",
		"which", "what", "who", "how", "do", "does", "did", "has", "have", "had", "not", "no", "also", "et", "al",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// Words returns the lowercased word tokens of text, stopwords included.
func Words(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// Terms returns the lowercased content words of text.
func Terms(text string) []string {
	raw := Words(text)
	out := raw[:0]
	for _, t := range raw {
		if IsStopword(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func IsStopword(word string) bool {
	_, ok := stopwords[word]
	return ok
}
