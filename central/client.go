// Copyright (c) 2026 The ZeroNSD Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package central is a narrow client for the ZeroTier Central API
// (spec.md section 6), used by the reconciler (C4) to list network
// members and by the DNS publisher (C5) to advertise this server.
package central

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

// DefaultBaseURL is ZeroTier Central's production API, operator-overridable
// per spec.md section 6.
const DefaultBaseURL = "https://my.zerotier.com/api/v1"

// Client talks to ZeroTier Central, following the same request/response
// shape as johanix-tdns/tdns/apiclient.go's Api but scoped to the three
// endpoints this server needs and returning errors instead of calling
// log.Fatalf.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New builds a Client against baseURL (DefaultBaseURL if empty),
// authenticating with "Authorization: Bearer <token>".
func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// DNSBlock is Central's "dns" sub-object of a network's config
// (spec.md section 4.5).
type DNSBlock struct {
	Domain  string   `json:"domain"`
	Servers []string `json:"servers"`
}

// Network is the subset of Central's network object this package reads and
// writes.
type Network struct {
	ID     string `json:"id"`
	Config struct {
		DNS DNSBlock `json:"dns"`
	} `json:"config"`
}

// MemberConfig is the subset of a Central member's nested "config" object.
type MemberConfig struct {
	Authorized    bool     `json:"authorized"`
	IPAssignments []string `json:"ipAssignments"`
}

// Member is the subset of Central's member object this package reads.
type Member struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Config MemberConfig `json:"config"`
}

// AssignedIPs parses Config.IPAssignments into netip.Addr values, skipping
// anything malformed rather than failing the whole member.
func (m Member) AssignedIPs() []netip.Addr {
	var out []netip.Addr
	for _, raw := range m.Config.IPAssignments {
		a, err := netip.ParseAddr(raw)
		if err != nil {
			continue
		}
		out = append(out, a)
	}
	return out
}

// GetNetwork fetches the named network's current configuration.
func (c *Client) GetNetwork(ctx context.Context, networkID string) (Network, error) {
	var n Network
	if err := c.do(ctx, http.MethodGet, "/network/"+networkID, nil, &n); err != nil {
		return Network{}, fmt.Errorf("central: get network %s: %w", networkID, err)
	}
	return n, nil
}

// UpdateNetwork writes a partial network update (e.g. a new DNS block);
// Central merges it into the existing config.
func (c *Client) UpdateNetwork(ctx context.Context, networkID string, patch Network) error {
	if err := c.do(ctx, http.MethodPost, "/network/"+networkID, patch, nil); err != nil {
		return fmt.Errorf("central: update network %s: %w", networkID, err)
	}
	return nil
}

// ListMembers fetches the full member list for a network.
func (c *Client) ListMembers(ctx context.Context, networkID string) ([]Member, error) {
	var members []Member
	if err := c.do(ctx, http.MethodGet, "/network/"+networkID+"/member", nil, &members); err != nil {
		return nil, fmt.Errorf("central: list members %s: %w", networkID, err)
	}
	return members, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, into interface{}) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}

	if into == nil || len(respBody) == 0 {
		return nil
	}
	return json.Unmarshal(respBody, into)
}
