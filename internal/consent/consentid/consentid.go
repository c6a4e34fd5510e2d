// Package consentid generates the human-traceable consent identifiers returned
// to visitors.
package consentid

import (
	"crypto/rand"
	"io"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	suffixLength = 9
	emailPrefix  = 16
	alphabet     = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// Generator builds consent ids. The random source is crypto/rand unless
// replaced in tests.
type Generator struct {
	random io.Reader
}

func New() *Generator {
	return &Generator{random: rand.Reader}
}

// NewWithReader uses r as the random source.
func NewWithReader(r io.Reader) *Generator {
	return &Generator{random: r}
}

// Verified builds {widgetId}_{first16HexOfEmailHash}_{timestampMillis}.
func (g *Generator) Verified(widgetID, emailHash string, now time.Time) string {
	prefix := emailHash
	if len(prefix) > emailPrefix {
		prefix = prefix[:emailPrefix]
	}
	return join(widgetID, prefix, millis(now))
}

// Anonymous builds {widgetId}_{visitorId}_{timestampMillis}_{randomSuffix}.
func (g *Generator) Anonymous(widgetID, visitorID string, now time.Time) (string, error) {
	suffix, err := g.suffix()
	if err != nil {
		return "", err
	}
	return join(widgetID, visitorID, millis(now), suffix), nil
}

// suffix draws suffixLength base36 characters without modulo bias.
func (g *Generator) suffix() (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	var b strings.Builder
	b.Grow(suffixLength)
	for range suffixLength {
		n, err := rand.Int(g.random, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}

func millis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func join(parts ...string) string {
	return strings.Join(parts, "_")
}
