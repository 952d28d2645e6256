package registry

import (
	"github.com/castregistry/cast-registry/internal/config"
	"github.com/castregistry/cast-registry/internal/model"
)

type tokenKey struct {
	backend model.Backend
	target  model.Target
}

// Tokens holds one fastdeploy service token per backend and target.
type Tokens struct {
	tokens map[tokenKey]string
}

func NewTokens(entries []config.ServiceToken) Tokens {
	t := Tokens{tokens: map[tokenKey]string{}}
	for _, e := range entries {
		t.tokens[tokenKey{backend: model.Backend(e.Backend), target: model.Target(e.Target)}] = e.Token
	}
	return t
}

// Token returns the service token for backend and target. There is no
// fallback token: unknown combinations yield false.
func (t Tokens) Token(backend model.Backend, target model.Target) (string, bool) {
	if !backend.IsValid() || !target.IsValid() {
		return "", false
	}
	token, ok := t.tokens[tokenKey{backend: backend, target: target}]
	if !ok || token == "" {
		return "", false
	}
	return token, true
}
