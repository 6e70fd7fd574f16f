// Package hashing implements an offline embedder based on signed feature
// hashing of word unigrams and bigrams. It needs no corpus preparation and
// no network, so an index built with it is reproducible.
package hashing

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"edubot/internal/domain"
	"edubot/internal/textutil"
)

const (
	DefaultDimension = 512
	minDimension     = 8
	bigramWeight     = 0.5
)

// Embedder maps text to a fixed-size, L2-normalised vector.
type Embedder struct {
	dimension int
}

var _ domain.Embedder = (*Embedder)(nil)

// New creates a hashing embedder. Non-positive dimensions select the default.
func New(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	if dimension < minDimension {
		dimension = minDimension
	}
	return &Embedder{dimension: dimension}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return fmt.Sprintf("hashing-%d", e.dimension) }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.embed(text), nil
}

func (e *Embedder) embed(text string) []float32 {
	terms := textutil.Terms(text)
	counts := make(map[string]float64, len(terms)*2)
	for i, term := range terms {
		counts[term]++
		if i > 0 {
			counts[terms[i-1]+" "+term] += bigramWeight
		}
	}

	acc := make([]float64, e.dimension)
	for feature, count := range counts {
		bucket, sign := e.slot(feature)
		acc[bucket] += sign * tfWeight(count)
	}

	norm := 0.0
	for _, v := range acc {
		norm += v * v
	}
	vec := make([]float32, e.dimension)
	if norm == 0 {
		// Bucket 0 is never hashed into; it gives featureless text a
		// valid direction instead of a zero vector.
		vec[0] = 1
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}

// tfWeight dampens repeated features so long chunks are not dominated by them.
func tfWeight(count float64) float64 {
	if count <= 1 {
		return count
	}
	return 1 + math.Log(count)
}

// slot hashes a feature into buckets 1..dimension-1 and picks a sign.
func (e *Embedder) slot(feature string) (int, float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	bucket := 1 + int(sum%uint64(e.dimension-1))
	sign := 1.0
	if sum>>63 == 1 {
		sign = -1.0
	}
	return bucket, sign
}
