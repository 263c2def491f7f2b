// Copyright (c) 2026 The ZeroNSD Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ztlocal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_StatusAndNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.Header.Get("X-ZT1-Auth"))
		switch r.URL.Path {
		case "/status":
			json.NewEncoder(w).Encode(Status{Address: "aaaaaaaaaa"})
		case "/network/8056c2e21c000001":
			json.NewEncoder(w).Encode(NetworkInfo{
				AssignedAddresses: []string{"10.0.0.1/24", "garbage", "fd00::1/64"},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")

	status, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "aaaaaaaaaa", status.Address)

	info, err := c.Network(context.Background(), "8056c2e21c000001")
	require.NoError(t, err)

	prefixes := info.AssignedPrefixes()
	require.Len(t, prefixes, 2)
	assert.Equal(t, "10.0.0.1/24", prefixes[0].String())
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, "bad-token")
	_, err := c.Status(context.Background())
	require.Error(t, err)
}
