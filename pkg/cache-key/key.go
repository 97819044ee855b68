package cachekey

import (
	"fmt"
	"net/http"
	"strings"
)

const methodSeparator = ":"

// Keyer turns requests into cache keys and back.
// The request identity is the method plus the request URI; the
// generation identifier is kept out of the key on purpose, since the
// cache provider partitions by generation separately.
type Keyer struct{}

// Key returns the cache key for a request.
func (Keyer) Key(r *http.Request) string {
	return r.Method + methodSeparator + r.URL.RequestURI()
}

// MethodPrefix gets the key prefix for the given method,
// e.g. the prefix shared by all stored GET responses.
func (Keyer) MethodPrefix(method string) string {
	return method + methodSeparator
}

// RequestFromKey reconstructs a request equivalent, caching-wise, to the
// request that produced the key.
func (Keyer) RequestFromKey(key string) (*http.Request, error) {
	method, uri, found := strings.Cut(key, methodSeparator)
	if !found {
		return nil, fmt.Errorf("malformed key: %s", key)
	}
	return http.NewRequest(method, uri, nil)
}
