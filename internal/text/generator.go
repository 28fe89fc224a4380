// Package text serves typing passages: generated word sequences by default,
// curated passages from the database when one is configured.
package text

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// corpus is the fixed practice vocabulary passages are sampled from.
var corpus = strings.Fields(`
quick brown fox jumps over the lazy dog typing racer speed accuracy golang websockets
matrix vector cache index query socket protocol router switch cloud latency throughput
optimize practice coding interview docker kubernetes microservice postgres sqlite redis queue
`)

// Generator produces randomized word sequences.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewGenerator returns a Generator seeded with the current time.
func NewGenerator() *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Words returns n space-joined words sampled uniformly from the corpus.
func (g *Generator) Words(n int) string {
	if n <= 0 {
		return ""
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	parts := make([]string, n)
	for i := range parts {
		parts[i] = corpus[g.rnd.Intn(len(corpus))]
	}
	return strings.Join(parts, " ")
}
