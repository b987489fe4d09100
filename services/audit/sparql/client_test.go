// Copyright (C) 2026 OpenMobility contributors (dev@openmobility.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sparql

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const emptyResults = `{"head":{"vars":["s"]},"results":{"bindings":[]}}`

// newTestClient returns a client pointed at the server with fast retries.
func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()

	client, err := NewClient(ClientConfig{
		EndpointURL:      serverURL,
		RetryAttempts:    2,
		RetryBackoff:     time.Millisecond,
		MaxRetryBackoff:  5 * time.Millisecond,
		CircuitThreshold: 3,
		CircuitCooldown:  50 * time.Millisecond,
		QueriesPerSecond: 0, // no rate limit in tests
	})
	require.NoError(t, err)
	return client
}

func TestClientConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ClientConfig)
		wantErr bool
	}{
		{"valid", func(c *ClientConfig) {}, false},
		{"empty url", func(c *ClientConfig) { c.EndpointURL = "" }, true},
		{"bad url", func(c *ClientConfig) { c.EndpointURL = "not a url" }, true},
		{"negative retries", func(c *ClientConfig) { c.RetryAttempts = -1 }, true},
		{"jitter out of range", func(c *ClientConfig) { c.RetryJitter = 1.5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultClientConfig()
			cfg.EndpointURL = "http://localhost:8890/sparql"
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClientSelectSuccess(t *testing.T) {
	var gotQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotQuery.Store(r.PostFormValue("query"))
		assert.Equal(t, "application/sparql-results+json", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/sparql-results+json")
		fmt.Fprint(w, `{"head":{"vars":["catalog"]},"results":{"bindings":[
			{"catalog":{"type":"uri","value":"http://example.org/cat/1"}}
		]}}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	rs, err := client.Select(context.Background(), "SELECT ?catalog WHERE { ?catalog a <x> }")
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	assert.Contains(t, gotQuery.Load().(string), "?catalog")
}

func TestClientRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, emptyResults)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	rs, err := client.Select(context.Background(), "SELECT ?s WHERE { ?s ?p ?o }")
	require.NoError(t, err)
	assert.True(t, rs.Empty())
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientEndpointUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Select(context.Background(), "SELECT ?s WHERE { ?s ?p ?o }")
	assert.ErrorIs(t, err, ErrEndpointUnavailable)
}

func TestClientMalformedResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"head":{"vars":["s"]}}`) // missing results section
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Select(context.Background(), "SELECT ?s WHERE { ?s ?p ?o }")
	assert.ErrorIs(t, err, ErrMalformedResult)
}

func TestClientCircuitBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	// Three failed Select calls reach the threshold.
	for i := 0; i < 3; i++ {
		_, err := client.Select(context.Background(), "SELECT ?s WHERE { ?s ?p ?o }")
		require.Error(t, err)
	}

	// Circuit is now open: the next call is rejected without touching the
	// endpoint.
	_, err := client.Select(context.Background(), "SELECT ?s WHERE { ?s ?p ?o }")
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestClientCircuitHalfOpenRecovery(t *testing.T) {
	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, emptyResults)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	for i := 0; i < 3; i++ {
		_, _ = client.Select(context.Background(), "SELECT ?s WHERE { ?s ?p ?o }")
	}
	_, err := client.Select(context.Background(), "SELECT ?s WHERE { ?s ?p ?o }")
	require.ErrorIs(t, err, ErrCircuitOpen)

	// After the cooldown a half-open probe goes through and closes the
	// circuit once the endpoint recovers.
	healthy.Store(true)
	time.Sleep(60 * time.Millisecond)

	rs, err := client.Select(context.Background(), "SELECT ?s WHERE { ?s ?p ?o }")
	require.NoError(t, err)
	assert.True(t, rs.Empty())
}

func TestClientContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
		fmt.Fprint(w, emptyResults)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Select(ctx, "SELECT ?s WHERE { ?s ?p ?o }")
	assert.Error(t, err)
}
