// Copyright (c) 2026 The ZeroNSD Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zeronsd

import (
	"encoding/hex"
	"fmt"
	"net/netip"
	"regexp"
	"strings"

	"github.com/miekg/dns"
	"golang.org/x/net/idna"
)

// memberIDForm matches the zt-<10 hex chars> label zeronsd reserves for
// member-id-derived records. A sanitized name whose first label collides
// with this form is rejected (spec.md section 9, Open Question #2).
var memberIDForm = regexp.MustCompile(`^zt-[0-9a-f]{10}$`)

// labelJunk matches runs of characters outside [a-z0-9-], collapsed into a
// single '-' by Sanitize. Whitespace and every other such character are
// treated alike: each run becomes one '-', nothing is dropped outright.
var labelJunk = regexp.MustCompile(`[^a-z0-9-]+`)
var dashRun = regexp.MustCompile(`-{2,}`)
var allDigits = regexp.MustCompile(`^[0-9]+$`)

// MemberLabel returns the zt-<member-id> form used for every member with at
// least one forward record, regardless of whether it also has a sanitized
// name (spec.md invariant 1).
func MemberLabel(memberID string) string {
	return "zt-" + strings.ToLower(memberID)
}

// Sanitize turns a free-form member or hosts-file name into a single DNS
// label sequence, or reports that no usable name exists. It mirrors
// original_source/src/utils.rs's ToHostname::to_hostname plus the
// additional zt-<hex10> collision rule from spec.md section 9.
func Sanitize(name string) (string, bool) {
	s := strings.TrimSpace(name)
	if s == "" {
		return "", false
	}

	if ascii, err := idna.Lookup.ToASCII(s); err == nil {
		s = ascii
	}

	s = strings.ToLower(s)
	s = labelJunk.ReplaceAllString(s, "-")
	s = dashRun.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	if s == "" {
		return "", false
	}

	if len(s) > 63 {
		return "", false
	}

	if allDigits.MatchString(s) {
		// Would be mistaken for a bare IPv4 octet/label.
		return "", false
	}

	if memberIDForm.MatchString(s) {
		return "", false
	}

	if len(s) > 253 {
		return "", false
	}

	return s, true
}

// Qualify appends the TLD and a trailing root to a sanitized label
// sequence, returning a canonical (lowercase, absolute) name. It mirrors
// original_source/src/utils.rs's ToHostname::to_fqdn.
func Qualify(label, tld string) (string, error) {
	fqdn := dns.Fqdn(strings.ToLower(label) + "." + strings.TrimSuffix(strings.ToLower(tld), "."))
	if _, ok := dns.IsDomainName(fqdn); !ok {
		return "", fmt.Errorf("qualify: %q is not a valid domain name", fqdn)
	}
	if len(fqdn) > 254 { // 253 octets + trailing root
		return "", fmt.Errorf("qualify: %q exceeds 253 octets", fqdn)
	}
	return fqdn, nil
}

// PTROwner returns the standard in-addr.arpa (v4) or ip6.arpa (v6) owner
// name for ip, via dns.ReverseAddr.
func PTROwner(ip netip.Addr) string {
	if ip.Is4In6() {
		ip = ip.Unmap()
	}
	owner, err := dns.ReverseAddr(ip.String())
	if err != nil {
		// netip.Addr is already validated; ReverseAddr only rejects
		// unparseable input.
		return ""
	}
	return owner
}

// sixPlanePrefix computes the deterministic /40 ZeroTier 6PLANE prefix
// ("fc" plus 32 network-id-derived bits, spec.md section 4.1) for a
// network ID, following the bit-folding in
// original_source/zeronsd/src/addresses.rs's Calculator::sixplane for
// Network. The remaining 88 bits of a member's 6PLANE address mix in the
// member ID and are irrelevant to PTR-suppression classification.
func sixPlanePrefix(networkID string) (netip.Prefix, bool) {
	raw, err := hex.DecodeString(networkID)
	if err != nil || len(raw) != 8 {
		return netip.Prefix{}, false
	}

	var netParts uint64
	for _, b := range raw {
		netParts = netParts<<8 | uint64(b)
	}
	netParts ^= netParts >> 32

	var addr [16]byte
	addr[0] = 0xfc
	addr[1] = byte((netParts >> 24) & 0xff)
	addr[2] = byte((netParts >> 16) & 0xff)
	addr[3] = byte((netParts >> 8) & 0xff)
	addr[4] = byte(netParts & 0xff)

	return netip.PrefixFrom(netip.AddrFrom16(addr), 40), true
}

// IsSixPlane reports whether ip falls within the network's deterministic
// ZeroTier 6PLANE prefix, in which case spec.md invariant 3 requires PTR
// suppression.
func IsSixPlane(ip netip.Addr, networkID string) bool {
	if !ip.Is6() || ip.Is4In6() {
		return false
	}
	prefix, ok := sixPlanePrefix(networkID)
	if !ok {
		return false
	}
	return prefix.Contains(ip)
}
