// Package embedding defines the pluggable text-embedding seam used by
// dayscore's chaos scoring and a deterministic local fallback for when
// no remote embedding provider is configured.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// Provider turns text into a fixed-dimensional embedding vector.
// HashProvider below, a zero-dependency stand-in, is the only
// implementation in this repository and the one cmd/lifelogd wires; no
// provider backed by the tollbooth proxy's embeddings endpoint exists.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// HashProvider derives a deterministic, unit-normalized embedding from the
// SHA-256 digest of the input text, expanded to Dimension floats by
// re-hashing with an incrementing counter. It carries no semantic meaning —
// it exists so chaos scoring has something to compute against before a
// remote embedding model is wired in, and so tests never depend on network
// access.
type HashProvider struct {
	Dim int
}

// NewHashProvider returns a HashProvider producing vectors of the given
// dimension.
func NewHashProvider(dim int) *HashProvider {
	return &HashProvider{Dim: dim}
}

func (p *HashProvider) Dimension() int { return p.Dim }

func (p *HashProvider) Embed(_ context.Context, text string) ([]float32, error) {
	dim := p.Dim
	if dim <= 0 {
		dim = 256
	}
	out := make([]float32, dim)

	block := 0
	var digest [32]byte
	for i := 0; i < dim; i++ {
		if i%8 == 0 {
			digest = sha256.Sum256(append([]byte(text), byte(block)))
			block++
		}
		offset := (i % 8) * 4
		bits := binary.BigEndian.Uint32(digest[offset : offset+4])
		// Map to [-1, 1].
		out[i] = float32(bits)/float32(math.MaxUint32)*2 - 1
	}

	var norm float32
	for _, v := range out {
		norm += v * v
	}
	norm = float32(math.Sqrt(float64(norm)))
	if norm > 0 {
		for i := range out {
			out[i] /= norm
		}
	}
	return out, nil
}
