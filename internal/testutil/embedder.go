// Package testutil provides shared test doubles: a deterministic embedding
// function and a scripted language-model client. No network access.
package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	chromem "github.com/philippgille/chromem-go"
)

// embeddingDim keeps test vectors small but collision-sparse for the word
// counts that show up in fixtures.
const embeddingDim = 128

// EmbeddingFunc returns a deterministic bag-of-words embedding. Identical
// texts map to identical vectors, texts sharing words score higher than
// unrelated ones, and no network is involved. Good enough for exercising
// nearest-neighbor behavior in chromem-go.
func EmbeddingFunc() chromem.EmbeddingFunc {
	return func(_ context.Context, text string) ([]float32, error) {
		vec := make([]float32, embeddingDim)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			word = strings.Trim(word, ".,!?;:'\"()[]")
			if word == "" {
				continue
			}
			h := fnv.New32a()
			_, _ = h.Write([]byte(word))
			vec[h.Sum32()%embeddingDim]++
		}

		// Guarantee a nonzero vector so normalization never divides by zero.
		vec[0] += 0.0625

		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
		return vec, nil
	}
}

// FailingEmbeddingFunc returns an embedding function that always fails with
// the given error, for exercising retrieval-unavailable paths.
func FailingEmbeddingFunc(err error) chromem.EmbeddingFunc {
	return func(context.Context, string) ([]float32, error) {
		return nil, err
	}
}
