// Package secret owns the process-wide key used to sign share tokens.
package secret

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"sync"
)

// KeySize is the length of a generated key in bytes.
const KeySize = 32

// Provider hands out the signing key. A configured key is used as is;
// otherwise a random key is generated once on first use and kept for the
// lifetime of the process. Generated keys are not persisted, so tokens
// signed with one stop verifying after a restart.
type Provider struct {
	configured []byte

	once sync.Once
	key  []byte
	err  error

	read func([]byte) (int, error)
}

// New returns a provider for the configured secret. An empty value
// selects an ephemeral generated key.
func New(configured string) *Provider {
	p := &Provider{read: rand.Read}
	if configured != "" {
		p.configured = []byte(configured)
	}
	return p
}

// Key returns a copy of the signing key. Concurrent first calls observe
// the same generated key.
func (p *Provider) Key() ([]byte, error) {
	if p.configured != nil {
		return bytes.Clone(p.configured), nil
	}
	p.once.Do(func() {
		key := make([]byte, KeySize)
		if _, err := p.read(key); err != nil {
			p.err = fmt.Errorf("generate share secret: %w", err)
			return
		}
		p.key = key
	})
	if p.err != nil {
		return nil, p.err
	}
	return bytes.Clone(p.key), nil
}

// Ephemeral reports whether the key is generated rather than configured.
func (p *Provider) Ephemeral() bool {
	return p.configured == nil
}
