package rag_service

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

type MockEmbedder struct {
	ModelName string
	Dim       int
	EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)
	Calls     int
}

func (m *MockEmbedder) Model() string {
	if m.ModelName == "" {
		return "mock-embedder"
	}
	return m.ModelName
}

func (m *MockEmbedder) Dimension() int {
	if m.Dim == 0 {
		return 64
	}
	return m.Dim
}

// Embed hashes lowercase words into buckets, which is enough for texts that
// share words to land close together.
func (m *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.Calls++
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, texts)
	}

	dim := m.Dimension()
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, dim)
		words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, w := range words {
			h := fnv.New32a()
			h.Write([]byte(w))
			v[h.Sum32()%uint32(dim)] += 1
		}
		var norm float64
		for _, x := range v {
			norm += float64(x * x)
		}
		if norm > 0 {
			inv := float32(1 / math.Sqrt(norm))
			for j := range v {
				v[j] *= inv
			}
		}
		vectors[i] = v
	}
	return vectors, nil
}
