package test

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// NewHttpServerWithHandlers creates a new httptest.Server that answers the
// n-th request with the n-th handler. The test fails if the number of
// requests does not match the number of handlers.
func NewHttpServerWithHandlers(t *testing.T, handlers []http.HandlerFunc) *httptest.Server {
	var lock sync.Mutex
	idx := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lock.Lock()
		defer lock.Unlock()
		if len(handlers) < idx+1 {
			t.Errorf("unexpected request, add missing handler func: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusTeapot)
			return
		}
		handlers[idx](w, r)
		idx += 1
	}))
	t.Cleanup(func() {
		srv.Close()
		lock.Lock()
		defer lock.Unlock()
		if diff := len(handlers) - idx; diff != 0 {
			t.Errorf("too many configured handlers, remove %d handler(s)", diff)
		}
	})
	return srv
}

// JSONHandler answers with the given status code and body.
func JSONHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}
