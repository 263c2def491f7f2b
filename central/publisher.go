// Copyright (c) 2026 The ZeroNSD Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package central

import (
	"context"
	"fmt"
	"net/netip"
)

// PublishDNS implements C5 (spec.md section 4.5): it reads the network's
// current DNS block, compares it against the one this server would
// advertise, and writes only on difference. Callers (the reconciler) may
// call it every tick; it is safe to call repeatedly with identical inputs.
func PublishDNS(ctx context.Context, c *Client, networkID, tld string, serverAddr netip.Addr) error {
	current, err := c.GetNetwork(ctx, networkID)
	if err != nil {
		return err
	}

	want := DNSBlock{Domain: tld, Servers: []string{serverAddr.String()}}
	if dnsBlockEqual(current.Config.DNS, want) {
		return nil
	}

	patch := Network{}
	patch.Config.DNS = want
	if err := c.UpdateNetwork(ctx, networkID, patch); err != nil {
		return fmt.Errorf("publish dns block: %w", err)
	}
	return nil
}

func dnsBlockEqual(a, b DNSBlock) bool {
	if a.Domain != b.Domain {
		return false
	}
	if len(a.Servers) != len(b.Servers) {
		return false
	}
	for i := range a.Servers {
		if a.Servers[i] != b.Servers[i] {
			return false
		}
	}
	return true
}
