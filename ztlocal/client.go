// Copyright (c) 2026 The ZeroNSD Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ztlocal is a narrow client for the local ZeroTier service's
// loopback HTTP API (spec.md section 6, "Local ZeroTier service"), used by
// the reconciler (C4) to learn this node's address and assigned subnets.
package ztlocal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"time"
)

// DefaultBaseURL is where the local service listens, per spec.md section 6.
const DefaultBaseURL = "http://127.0.0.1:9993"

// Client talks to the local ZeroTier service, adapting the request/response
// plumbing of johanix-tdns/tdns/apiclient.go's Api type to this narrower,
// two-endpoint surface and to idiomatic error returns instead of
// log.Fatalf.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New builds a Client against baseURL (DefaultBaseURL if empty), authenticating
// with the X-ZT1-Auth header.
func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// Status is the subset of GET /status this package consumes.
type Status struct {
	Address string `json:"address"`
}

// NetworkInfo is the subset of GET /network/{id} this package consumes.
type NetworkInfo struct {
	AssignedAddresses []string `json:"assignedAddresses"`
	PortDeviceName    string   `json:"portDeviceName"`
	MAC               string   `json:"mac"`
}

// Status fetches this node's ZeroTier address.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var s Status
	if err := c.get(ctx, "/status", &s); err != nil {
		return Status{}, fmt.Errorf("ztlocal: status: %w", err)
	}
	return s, nil
}

// Network fetches the node's view of the given network, including the
// addresses assigned to it on that network.
func (c *Client) Network(ctx context.Context, networkID string) (NetworkInfo, error) {
	var n NetworkInfo
	if err := c.get(ctx, "/network/"+networkID, &n); err != nil {
		return NetworkInfo{}, fmt.Errorf("ztlocal: network %s: %w", networkID, err)
	}
	return n, nil
}

// AssignedPrefixes parses NetworkInfo.AssignedAddresses into netip.Prefix
// values, skipping (not failing on) anything malformed since the local
// service's own invariants are outside this package's control.
func (n NetworkInfo) AssignedPrefixes() []netip.Prefix {
	var out []netip.Prefix
	for _, raw := range n.AssignedAddresses {
		p, err := netip.ParsePrefix(raw)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (c *Client) get(ctx context.Context, path string, into interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-ZT1-Auth", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	return json.Unmarshal(body, into)
}
