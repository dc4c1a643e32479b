package domain

import (
	"fmt"
	"strings"
)

const shortIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// DefaultShortIDLength is the width of the first short ids handed out.
const DefaultShortIDLength = 2

// ShortIDGenerator hands out compact base-36 display ids ("00", "01", ... "ZZ",
// then "000"). It is not safe for concurrent use.
type ShortIDGenerator struct {
	length  int
	counter uint64
	max     uint64
}

// NewShortIDGenerator returns a generator starting at the given width.
func NewShortIDGenerator(length int) *ShortIDGenerator {
	if length < 1 {
		length = DefaultShortIDLength
	}
	return &ShortIDGenerator{length: length, max: pow36(length)}
}

// ShortIDGeneratorFrom seeds a generator past every id in existing.
// The widest ids determine the width, and the counter resumes after the
// largest of them. Case is ignored.
func ShortIDGeneratorFrom(existing []string) *ShortIDGenerator {
	if len(existing) == 0 {
		return NewShortIDGenerator(DefaultShortIDLength)
	}
	width := DefaultShortIDLength
	for _, id := range existing {
		width = max(width, len(id))
	}
	g := NewShortIDGenerator(width)
	var found bool
	var highest uint64
	for _, id := range existing {
		if len(id) != width {
			continue
		}
		n, err := DecodeShortID(id)
		if err != nil {
			continue
		}
		if !found || n > highest {
			highest = n
			found = true
		}
	}
	if found {
		g.counter = highest + 1
	}
	return g
}

// Next returns the next id, widening by one character on exhaustion.
func (g *ShortIDGenerator) Next() string {
	if g.counter >= g.max {
		g.length++
		g.max = pow36(g.length)
		g.counter = 0
	}
	id := encodeShortID(g.counter, g.length)
	g.counter++
	return id
}

// DecodeShortID converts a base-36 id to its counter value. Case is ignored.
func DecodeShortID(id string) (uint64, error) {
	if id == "" {
		return 0, fmt.Errorf("%w: empty short id", ErrInvalidInput)
	}
	var n uint64
	for _, r := range strings.ToUpper(id) {
		digit := strings.IndexRune(shortIDAlphabet, r)
		if digit < 0 {
			return 0, fmt.Errorf("%w: short id %q contains %q", ErrInvalidInput, id, r)
		}
		n = n*36 + uint64(digit)
	}
	return n, nil
}

// NormalizeShortID upper-cases a short id for lookups.
func NormalizeShortID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

func encodeShortID(n uint64, width int) string {
	buf := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		buf[i] = shortIDAlphabet[n%36]
		n /= 36
	}
	return string(buf)
}

func pow36(n int) uint64 {
	out := uint64(1)
	for range n {
		out *= 36
	}
	return out
}
