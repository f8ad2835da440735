// Package generator produces the response text stored alongside each prompt.
package generator

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"
)

// Generator turns a prompt into a response.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// SimulatorName is reported by Simulator.Name.
const SimulatorName = "simulator"

var seedModulus = big.NewInt(10000)

// Simulator is a deterministic stand-in for a language model. The same prompt always yields
// the same response.
type Simulator struct{}

// NewSimulator returns a Simulator.
func NewSimulator() *Simulator {
	return &Simulator{}
}

// Generate returns "[SimResponse-<seed>] Generated response about: <keywords>", where seed is
// the SHA-256 digest of prompt read as a big-endian integer mod 10000, and keywords are the
// first three whitespace-separated words, lowercased.
func (s *Simulator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(prompt))
	seed := new(big.Int).Mod(new(big.Int).SetBytes(sum[:]), seedModulus)

	words := strings.Fields(strings.ToLower(prompt))
	if len(words) > 3 {
		words = words[:3]
	}
	return fmt.Sprintf("[SimResponse-%d] Generated response about: %s", seed.Int64(), strings.Join(words, " ")), nil
}

func (s *Simulator) Name() string {
	return SimulatorName
}
