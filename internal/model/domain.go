package model

import (
	"time"
)

// Domain is a domain registered by a user.
type Domain struct {
	ID      int64     `json:"id"`
	FQDN    string    `json:"fqdn"`
	Owner   string    `json:"owner"`
	Backend Backend   `json:"backend"`
	Created time.Time `json:"created"`
}

// Env is the environment fastdeploy provisions the site of the domain with.
func (d Domain) Env(databasePassword, secretKey string) map[string]string {
	return map[string]string{
		"fqdn":              d.FQDN,
		"backend":           d.Backend.String(),
		"database_password": databasePassword,
		"secret_key":        secretKey,
	}
}
