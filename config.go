// Copyright (c) 2026 The ZeroNSD Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zeronsd

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/miekg/dns"
)

// DefaultTLD is used when no TLD is configured, matching
// original_source/src/utils.rs's DOMAIN_NAME fallback.
const DefaultTLD = "home.arpa"

// DefaultPollInterval is the reconciler's tick cadence when unconfigured.
const DefaultPollInterval = 30 * time.Second

// DefaultTTL is the TTL applied to every record in a snapshot when unconfigured.
const DefaultTTL = uint32(60)

// NetworkContext is the immutable, per-process configuration described in
// spec.md section 3. It is populated by the (out-of-scope) CLI/config layer
// and never mutated once the reconciler and dispatcher are started.
type NetworkContext struct {
	// NetworkID is the 16 hex character ZeroTier network ID.
	NetworkID string

	// NodeID is this node's 10 hex character ZeroTier address.
	NodeID string

	// Prefixes are the IPv4/IPv6 prefixes assigned to this node on the
	// network. Forward records are only generated for member addresses
	// that fall within one of these prefixes (spec.md invariant 2).
	Prefixes []netip.Prefix

	// TLD is the DNS suffix served authoritatively. Defaults to
	// DefaultTLD.
	TLD string

	// Wildcard enables wildcard A/AAAA synthesis (spec.md section 4.3).
	Wildcard bool

	// HostsPath is an optional path to a hosts(5)-formatted file merged
	// into the zone on every tick.
	HostsPath string

	// CentralToken authenticates against ZeroTier Central.
	CentralToken string

	// LocalToken authenticates against the local ZeroTier service.
	LocalToken string

	// PollInterval is the reconciler's tick cadence. Defaults to
	// DefaultPollInterval.
	PollInterval time.Duration

	// TTL is applied uniformly to every record built in a snapshot.
	// Defaults to DefaultTTL.
	TTL uint32
}

// Normalized returns a copy of nc with defaults applied for zero-valued
// fields, matching original_source/src/utils.rs's domain_or_default.
func (nc NetworkContext) Normalized() NetworkContext {
	if nc.TLD == "" {
		nc.TLD = DefaultTLD
	}
	if nc.PollInterval <= 0 {
		nc.PollInterval = DefaultPollInterval
	}
	if nc.TTL == 0 {
		nc.TTL = DefaultTTL
	}
	return nc
}

// Validate checks the bootstrap-time invariants spec.md section 7 treats as
// fatal configuration errors.
func (nc NetworkContext) Validate() error {
	if len(nc.NetworkID) != 16 {
		return fmt.Errorf("network id %q must be 16 hex characters", nc.NetworkID)
	}
	if len(nc.NodeID) != 10 {
		return fmt.Errorf("node id %q must be 10 hex characters", nc.NodeID)
	}
	if nc.CentralToken == "" {
		return fmt.Errorf("missing zerotier central token")
	}
	if nc.TLD != "" {
		if _, ok := dns.IsDomainName(nc.TLD); !ok {
			return fmt.Errorf("tld %q is not a valid domain name", nc.TLD)
		}
	}
	return nil
}

// Member is a ZeroTier network member as observed from Central
// (spec.md section 3). Identity is ID.
type Member struct {
	ID          string
	Name        string
	AssignedIPs []netip.Addr
	Authorized  bool
}

// HostEntry is a single (ip, names) tuple parsed from an optional hosts(5)
// file (spec.md section 3).
type HostEntry struct {
	IP    netip.Addr
	Names []string
}
