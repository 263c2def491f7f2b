// Copyright (c) 2026 The ZeroNSD Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package reconciler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openzt/zeronsd"
	"github.com/openzt/zeronsd/central"
	"github.com/openzt/zeronsd/zone"
	"github.com/openzt/zeronsd/ztlocal"
)

func fakeLocalService(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"address": "aaaaaaaaaa"})
	})
	mux.HandleFunc("/network/8056c2e21c000001", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"assignedAddresses": []string{"10.0.0.1/24"},
		})
	})
	return httptest.NewServer(mux)
}

func fakeCentral(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/network/8056c2e21c000001/member", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{
				"id":   "aaaaaaaaaa",
				"name": "Server",
				"config": map[string]interface{}{
					"authorized":    true,
					"ipAssignments": []string{"10.0.0.1"},
				},
			},
		})
	})
	mux.HandleFunc("/network/8056c2e21c000001", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]interface{}{"id": "8056c2e21c000001"})
		case http.MethodPost:
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]interface{}{"id": "8056c2e21c000001"})
		}
	})
	return httptest.NewServer(mux)
}

func TestTick_PublishesSnapshot(t *testing.T) {
	localSrv := fakeLocalService(t)
	defer localSrv.Close()
	centralSrv := fakeCentral(t)
	defer centralSrv.Close()

	cfg := zeronsd.NetworkContext{
		NetworkID:    "8056c2e21c000001",
		NodeID:       "aaaaaaaaaa",
		CentralToken: "tok",
	}.Normalized()

	z := zone.New(cfg.TLD, false)
	r := New(cfg, z, ztlocal.New(localSrv.URL, "tok"), central.New(centralSrv.URL, "tok"), zerolog.Nop())

	err := r.Tick(context.Background(), zerolog.Nop())
	require.NoError(t, err)

	recs, code := z.Current().Lookup("zt-aaaaaaaaaa.home.arpa", zone.A)
	require.Equal(t, zone.Answer, code)
	require.Len(t, recs, 1)
	assert.Equal(t, "10.0.0.1", recs[0].IP.String())

	recs, code = z.Current().Lookup("server.home.arpa", zone.A)
	require.Equal(t, zone.Answer, code)
	assert.Equal(t, "10.0.0.1", recs[0].IP.String())
}

func TestTick_FetchErrorLeavesSnapshotUntouched(t *testing.T) {
	localSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer localSrv.Close()
	centralSrv := fakeCentral(t)
	defer centralSrv.Close()

	cfg := zeronsd.NetworkContext{
		NetworkID:    "8056c2e21c000001",
		NodeID:       "aaaaaaaaaa",
		CentralToken: "tok",
	}.Normalized()

	z := zone.New(cfg.TLD, false)
	before := z.Current()

	r := New(cfg, z, ztlocal.New(localSrv.URL, "tok"), central.New(centralSrv.URL, "tok"), zerolog.Nop())
	err := r.Tick(context.Background(), zerolog.Nop())
	require.Error(t, err)

	assert.Same(t, before, z.Current())
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	localSrv := fakeLocalService(t)
	defer localSrv.Close()
	centralSrv := fakeCentral(t)
	defer centralSrv.Close()

	cfg := zeronsd.NetworkContext{
		NetworkID:    "8056c2e21c000001",
		NodeID:       "aaaaaaaaaa",
		CentralToken: "tok",
		PollInterval: 10 * time.Millisecond,
	}.Normalized()

	z := zone.New(cfg.TLD, false)
	r := New(cfg, z, ztlocal.New(localSrv.URL, "tok"), central.New(centralSrv.URL, "tok"), zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop after context cancellation")
	}
}
