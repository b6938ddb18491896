package refnum

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const (
	// PrefixContribution marks contribution reference numbers.
	PrefixContribution = "PROP"
	// PrefixRequest marks request reference numbers.
	PrefixRequest = "REQP"

	timestampLayout = "20060102150405"
	suffixLength    = 3
	suffixCharset   = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// Generator issues human-readable reference numbers of the form
// PREFIX + YYYYMMDDHHMMSS. Two submissions inside the same second collide, so
// callers retry with NextWithSuffix when the unique index rejects the insert.
type Generator struct {
	now func() time.Time
}

// NewGenerator builds a generator on the wall clock.
func NewGenerator() *Generator {
	return NewGeneratorWithClock(time.Now)
}

// NewGeneratorWithClock builds a generator with an injected clock for tests.
func NewGeneratorWithClock(now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{now: now}
}

// Next returns the base reference number for the given prefix.
func (g *Generator) Next(prefix string) string {
	return prefix + g.now().UTC().Format(timestampLayout)
}

// NextWithSuffix returns a reference number with a random base36 suffix
// appended, used when the base number already exists.
func (g *Generator) NextWithSuffix(prefix string) (string, error) {
	var sb strings.Builder
	sb.WriteString(g.Next(prefix))
	sb.WriteByte('-')
	bound := big.NewInt(int64(len(suffixCharset)))
	for i := 0; i < suffixLength; i++ {
		n, err := rand.Int(rand.Reader, bound)
		if err != nil {
			return "", fmt.Errorf("generate reference suffix: %w", err)
		}
		sb.WriteByte(suffixCharset[n.Int64()])
	}
	return sb.String(), nil
}
