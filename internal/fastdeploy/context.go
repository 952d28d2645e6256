package fastdeploy

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	DatabasePasswordLength = 20
	SecretKeyLength        = 32
)

// DeploymentContext is the payload fastdeploy needs to provision a site.
type DeploymentContext struct {
	Env map[string]string `json:"env"`
}

type Secrets struct {
	DatabasePassword string
	SecretKey        string
}

// NewSecrets generates a fresh database password and secret key for a new
// site.
func NewSecrets() (Secrets, error) {
	password, err := RandomString(DatabasePasswordLength)
	if err != nil {
		return Secrets{}, fmt.Errorf("generating database password: %w", err)
	}

	key, err := RandomString(SecretKeyLength)
	if err != nil {
		return Secrets{}, fmt.Errorf("generating secret key: %w", err)
	}

	return Secrets{DatabasePassword: password, SecretKey: key}, nil
}

// RandomString returns n characters drawn uniformly from [A-Za-z0-9] using
// crypto/rand.
func RandomString(n int) (string, error) {
	max := big.NewInt(int64(len(alphanumeric)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = alphanumeric[idx.Int64()]
	}
	return string(b), nil
}
