// Package fleet keeps a fixed number of clankers connected to one server,
// replacing every one that dies with a fresh identity.
package fleet

import (
	"math/rand/v2"
	"strconv"
	"sync"
)

const (
	randomNameLen     = 12
	randomNameCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// NamePool hands out display names. Without candidates it generates random
// names; otherwise it cycles through the candidates and appends a fleet-wide
// counter that only ever increases, so concurrent slots never collide.
type NamePool struct {
	candidates []string

	mu      sync.Mutex
	counter uint64
}

// NewNamePool creates a pool over candidates. An empty list means random names.
func NewNamePool(candidates []string) *NamePool {
	return &NamePool{candidates: append([]string(nil), candidates...)}
}

// Next draws a name. It is safe for concurrent use.
func (p *NamePool) Next() string {
	if len(p.candidates) == 0 {
		return randomName()
	}

	p.mu.Lock()
	n := p.counter
	p.counter++
	p.mu.Unlock()

	return p.candidates[n%uint64(len(p.candidates))] + strconv.FormatUint(n, 10)
}

// Random reports whether the pool generates names instead of cycling a list.
func (p *NamePool) Random() bool {
	return len(p.candidates) == 0
}

func randomName() string {
	b := make([]byte, randomNameLen)
	for i := range b {
		b[i] = randomNameCharset[rand.IntN(len(randomNameCharset))]
	}
	return string(b)
}
