package room

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// CodeAlphabet is the set of characters room codes are drawn from.
const CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// MinCodeLength is the shortest code length accepted by NewCodeGenerator.
const MinCodeLength = 4

// Source is the randomness provider for room codes.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// cryptoSource implements Source using crypto/rand.
type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
func NewCryptoSource() Source {
	return cryptoSource{}
}

// Intn panics if n <= 0 or crypto/rand fails.
func (cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("room: Intn called with n <= 0")
	}
	val, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("room: crypto/rand failure: " + err.Error())
	}
	return int(val.Int64())
}

// CodeGenerator produces random uppercase alphanumeric room codes.
type CodeGenerator struct {
	src    Source
	length int
}

// NewCodeGenerator returns a generator of codes with the given length.
//
// Precondition: src must be non-nil.
// Postcondition: Returns an error if length < MinCodeLength.
func NewCodeGenerator(src Source, length int) (*CodeGenerator, error) {
	if length < MinCodeLength {
		return nil, fmt.Errorf("room code length must be >= %d, got %d", MinCodeLength, length)
	}
	return &CodeGenerator{src: src, length: length}, nil
}

// Next returns a fresh code. Uniqueness is the registry's concern.
func (g *CodeGenerator) Next() string {
	var b strings.Builder
	b.Grow(g.length)
	for i := 0; i < g.length; i++ {
		b.WriteByte(CodeAlphabet[g.src.Intn(len(CodeAlphabet))])
	}
	return b.String()
}

// NormalizeCode canonicalizes human-entered codes: trimmed and uppercased.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
