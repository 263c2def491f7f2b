// Copyright (c) 2026 The ZeroNSD Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dnsserver

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// Forwarder implements C7 (spec.md section 4.7): queries are sent
// sequentially to the configured upstreams, each bounded by its own
// per-server timeout, and the first successful non-ServFail answer wins.
// It has no teacher equivalent (tsavola-indns is purely authoritative); the
// wire-level mechanics are grounded on miekg/dns's dns.Client, the same
// library the teacher already depends on for the server side.
type Forwarder struct {
	client    *dns.Client
	upstreams []string
}

// NewForwarder builds a Forwarder from an explicit upstream list.
func NewForwarder(upstreams []string, perServerTimeout time.Duration) *Forwarder {
	return &Forwarder{
		client:    &dns.Client{Net: "udp", Timeout: perServerTimeout},
		upstreams: upstreams,
	}
}

// NewForwarderFromSystemConfig builds a Forwarder from the host's resolver
// configuration (/etc/resolv.conf), matching spec.md section 4.7:
// "Constructed from the host's system resolver configuration at startup
// (refreshed on each process start -- not hot-reloaded)."
func NewForwarderFromSystemConfig(perServerTimeout time.Duration) (*Forwarder, error) {
	cc, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil {
		return nil, fmt.Errorf("forwarder: read system resolver config: %w", err)
	}

	var upstreams []string
	for _, server := range cc.Servers {
		upstreams = append(upstreams, net.JoinHostPort(server, cc.Port))
	}
	if len(upstreams) == 0 {
		return nil, fmt.Errorf("forwarder: no upstream servers configured")
	}

	return NewForwarder(upstreams, perServerTimeout), nil
}

// Forward sends req to each configured upstream in order, returning the
// first answer that isn't itself a ServFail. Each attempt is bounded by
// both the Forwarder's per-server timeout and ctx.
func (f *Forwarder) Forward(ctx context.Context, req *dns.Msg) (*dns.Msg, error) {
	var lastErr error

	for _, upstream := range f.upstreams {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		reply, _, err := f.client.ExchangeContext(ctx, req, upstream)
		if err != nil {
			lastErr = err
			continue
		}
		if reply.Rcode == dns.RcodeServerFailure {
			lastErr = fmt.Errorf("upstream %s returned SERVFAIL", upstream)
			continue
		}
		return reply, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("forwarder: no upstreams configured")
	}
	return nil, lastErr
}
