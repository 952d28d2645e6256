package fastdeploy

import (
	"net/http"
)

type tokenKey struct{}

// Transport sets the bearer token carried by the request context. The token
// differs per backend and target, so it cannot be fixed on the client.
type Transport struct {
	Base http.RoundTripper
}

func (t Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

func (t Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, _ := req.Context().Value(tokenKey{}).(string)
	if token == "" {
		return nil, ErrMissingAuthorization
	}

	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
