package fastdeploy_test

import (
	"regexp"
	"testing"

	"github.com/castregistry/cast-registry/internal/fastdeploy"
	"github.com/stretchr/testify/assert"
)

var alphanumeric = regexp.MustCompile(`^[A-Za-z0-9]*$`)

func TestNewSecrets(t *testing.T) {
	secrets, err := fastdeploy.NewSecrets()
	assert.NoError(t, err)
	assert.Len(t, secrets.DatabasePassword, fastdeploy.DatabasePasswordLength)
	assert.Len(t, secrets.SecretKey, fastdeploy.SecretKeyLength)
	assert.Regexp(t, alphanumeric, secrets.DatabasePassword)
	assert.Regexp(t, alphanumeric, secrets.SecretKey)

	other, err := fastdeploy.NewSecrets()
	assert.NoError(t, err)
	assert.NotEqual(t, secrets.DatabasePassword, other.DatabasePassword)
	assert.NotEqual(t, secrets.SecretKey, other.SecretKey)
}

func TestRandomString(t *testing.T) {
	s, err := fastdeploy.RandomString(0)
	assert.NoError(t, err)
	assert.Equal(t, "", s)

	s, err = fastdeploy.RandomString(256)
	assert.NoError(t, err)
	assert.Len(t, s, 256)
	assert.Regexp(t, alphanumeric, s)
}
