/* Copyright © 2025-2026 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this repository for license terms
 */
package internal

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gregjones/httpcache"
)

// NewAuthHttpClient returns an http.Client that stamps every request with
// our User-Agent and, when token is non-empty, a bearer Authorization header.
func NewAuthHttpClient(token string, wrapped http.RoundTripper) *http.Client {
	if wrapped == nil {
		wrapped = http.DefaultTransport
	}

	return &http.Client{
		Transport: &HeaderOverrideTransport{
			wrappedRT: wrapped,
			Request: func(req *http.Request) {
				req.Header.Set("User-Agent", UserAgent)
				if token != "" {
					req.Header.Set("Authorization", "Bearer "+token)
				}
			},
		},
		Timeout: 60 * time.Second,
	}
}

// NewCachedHttpClient returns an http.Client backed by an in-memory httpcache
// which is used for lookups that do not change during a tournament (team
// info, account scopes). It enforces a client-side TTL by rewriting origin
// cache headers.
func NewCachedHttpClient(token string, maxAge time.Duration) *http.Client {
	hc := httpcache.NewTransport(httpcache.NewMemoryCache())
	// we have to inject our own header overrides here in order to override
	// server responses that might indicate caching shouldn't be done
	hc.Transport = &HeaderOverrideTransport{
		wrappedRT: http.DefaultTransport,
		Response: func(resp *http.Response) error {
			if resp.StatusCode != http.StatusOK {
				return nil
			}
			resp.Header.Del("Pragma")
			resp.Header.Del("Expires")
			resp.Header.Del("Cache-Control")
			resp.Header.Set("Cache-Control",
				fmt.Sprintf("public, max-age=%d", int(maxAge/time.Second)))
			return nil
		},
	}

	return NewAuthHttpClient(token, hc)
}

type HeaderOverrideTransport struct {
	Request  func(req *http.Request)
	Response func(resp *http.Response) error

	// Underlying RoundTripper (e.g. default transport or another decorator)
	wrappedRT http.RoundTripper
}

// RoundTrip applies Request and Response hooks around the underlying transport.
func (t *HeaderOverrideTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so we don’t stomp on the caller’s original
	req2 := req.Clone(req.Context())
	if t.Request != nil {
		t.Request(req2)
	}

	resp, err := t.wrappedRT.RoundTrip(req2)
	if err != nil {
		return nil, err
	}

	if t.Response != nil {
		if err := t.Response(resp); err != nil {
			resp.Body.Close()
			return nil, err
		}
	}
	return resp, nil
}
