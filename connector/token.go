package connector

import (
	"context"
	"sync"
)

// TokenProvider supplies bearer tokens for outgoing connector calls. Acquiring
// tokens (OAuth client credentials, managed identity) is left to implementations.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenProviderFunc adapts a function to TokenProvider.
type TokenProviderFunc func(ctx context.Context) (string, error)

// Token implements TokenProvider.
func (f TokenProviderFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticTokenProvider returns a fixed token that can be rotated at runtime.
type StaticTokenProvider struct {
	mu    sync.RWMutex
	token string
}

// NewStaticTokenProvider creates a provider for token.
func NewStaticTokenProvider(token string) *StaticTokenProvider {
	return &StaticTokenProvider{token: token}
}

// Token implements TokenProvider.
func (p *StaticTokenProvider) Token(context.Context) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token, nil
}

// SetToken replaces the token.
func (p *StaticTokenProvider) SetToken(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = token
}
