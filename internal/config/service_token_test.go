package config_test

import (
	"testing"

	"github.com/castregistry/cast-registry/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestServiceToken_Decode(t *testing.T) {
	token := &config.ServiceToken{}
	t.Run("empty string", func(t *testing.T) {
		assert.NoError(t, token.EnvDecode(""))
	})

	t.Run("wrong number of parts", func(t *testing.T) {
		err := token.EnvDecode("cast|deploy")
		assert.ErrorContains(t, err, `Must be on format "backend|target|token"`)
	})

	t.Run("empty backend", func(t *testing.T) {
		err := token.EnvDecode("|deploy|token")
		assert.ErrorContains(t, err, "Backend must not be empty")
	})

	t.Run("empty target", func(t *testing.T) {
		err := token.EnvDecode("cast||token")
		assert.ErrorContains(t, err, "Target must not be empty")
	})

	t.Run("empty token", func(t *testing.T) {
		err := token.EnvDecode("cast|deploy| ")
		assert.ErrorContains(t, err, "Token must not be empty")
	})

	t.Run("valid string", func(t *testing.T) {
		err := token.EnvDecode("Cast|Deploy|secret")
		assert.NoError(t, err)
		assert.Equal(t, "cast", token.Backend)
		assert.Equal(t, "deploy", token.Target)
		assert.Equal(t, "secret", token.Token)
	})
}
