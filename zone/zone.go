// Copyright (c) 2026 The ZeroNSD Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zone

import (
	"net/netip"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/miekg/dns"

	"github.com/openzt/zeronsd"
)

// ResultCode mirrors the four outcomes spec.md section 4.3 defines for
// Lookup. Refused is an internal signal only: the dispatcher (C6) uses it
// to trigger upstream forwarding and never puts it on the wire.
type ResultCode int

const (
	Answer ResultCode = iota
	NXDomain
	NoData
	Refused
)

// Snapshot is the immutable zone built by Build and installed by Zone.Install
// (spec.md section 3: "Exactly one snapshot is 'current' at any moment").
type Snapshot struct {
	tld      string
	wildcard bool

	// forward maps an absolute owner name to its records, grouped by
	// type. PTR records never appear here.
	forward map[string]map[RecordType][]Record

	// reverse maps an absolute PTR owner name to its single PTR record.
	reverse map[string]Record

	// reverseZones are the reverse-zone apexes derived from this node's
	// assigned prefixes, used by Lookup's Refused gate.
	reverseZones []string
}

// Zone holds the current Snapshot behind an atomic pointer, the Go
// equivalent of the teacher's (tsavola-indns/dnszone) sync.RWMutex-guarded
// container and of other_examples/CleoWixom-ztnet-dns's atomic.Value
// snapshot cache: the reconciler (one writer) builds off to the side and
// swaps a pointer; query handlers (many readers) never block on a lock
// (spec.md section 5).
type Zone struct {
	ptr atomic.Pointer[Snapshot]
}

// New creates a Zone with an empty initial snapshot so lookups never see a
// nil pointer before the first reconciler tick completes.
func New(tld string, wildcard bool) *Zone {
	z := &Zone{}
	z.ptr.Store(&Snapshot{
		tld:      strings.ToLower(dotSuffixed(tld)),
		wildcard: wildcard,
		forward:  map[string]map[RecordType][]Record{},
		reverse:  map[string]Record{},
	})
	return z
}

// Install atomically replaces the current snapshot. Readers holding a
// reference to the prior snapshot may complete in-flight queries against
// it (spec.md "Lifecycle").
func (z *Zone) Install(s *Snapshot) {
	z.ptr.Store(s)
}

// Current returns the presently-installed snapshot.
func (z *Zone) Current() *Snapshot {
	return z.ptr.Load()
}

func dotSuffixed(s string) string {
	if strings.HasSuffix(s, ".") {
		return s
	}
	return s + "."
}

// Lookup implements spec.md section 4.3's four-step resolution order.
func (s *Snapshot) Lookup(owner string, qtype RecordType) ([]Record, ResultCode) {
	owner = strings.ToLower(dotSuffixed(owner))

	if !s.inScope(owner) {
		return nil, Refused
	}

	if recs, ok := s.exactMatch(owner, qtype); ok {
		if len(recs) == 0 {
			return nil, NoData
		}
		return recs, Answer
	}

	if s.wildcard && qtype != PTR {
		if recs, ok := s.wildcardMatch(owner, qtype); ok {
			return recs, Answer
		}
	}

	return nil, NXDomain
}

func (s *Snapshot) inScope(owner string) bool {
	if strings.HasSuffix(owner, "."+s.tld) || owner == s.tld {
		return true
	}
	for _, z := range s.reverseZones {
		if strings.HasSuffix(owner, "."+z) || owner == z {
			return true
		}
	}
	return false
}

// servesZone reports whether zoneName is this snapshot's TLD or one of its
// reverse-zone apexes. libdns.RecordAppender/RecordDeleter implementations
// (AppendRecords/DeleteRecords in libdns.go) use it to refuse edits against
// a zone this Snapshot does not serve.
func (s *Snapshot) servesZone(zoneName string) bool {
	zoneName = strings.ToLower(dotSuffixed(zoneName))
	if zoneName == s.tld {
		return true
	}
	for _, z := range s.reverseZones {
		if zoneName == z {
			return true
		}
	}
	return false
}

// exactMatch reports whether owner is a known name at all (forward or
// reverse); when it is, recs holds whatever records of qtype exist there
// (possibly empty, which the caller turns into NODATA).
func (s *Snapshot) exactMatch(owner string, qtype RecordType) ([]Record, bool) {
	if qtype == PTR {
		if r, ok := s.reverse[owner]; ok {
			return []Record{r}, true
		}
		if _, ok := s.forward[owner]; ok {
			return nil, true
		}
		return nil, false
	}

	byType, ok := s.forward[owner]
	if !ok {
		if _, ok := s.reverse[owner]; ok {
			return nil, true
		}
		return nil, false
	}

	return recordsForType(byType, qtype), true
}

// recordsForType returns the stored records matching qtype, or the union of
// A and AAAA (the only forward types ever stored) for the ANY sentinel and
// any other query-side type this zone never answers natively with its own
// records (the dispatcher uses this to classify NODATA for those).
func recordsForType(byType map[RecordType][]Record, qtype RecordType) []Record {
	switch qtype {
	case A, AAAA:
		return append([]Record(nil), byType[qtype]...)
	default:
		var all []Record
		all = append(all, byType[A]...)
		all = append(all, byType[AAAA]...)
		return all
	}
}

// wildcardMatch strips leftmost labels one at a time looking for a known
// owner whose type set contains qtype, then re-labels the match with the
// original queried owner (spec.md section 4.3, step 3).
func (s *Snapshot) wildcardMatch(owner string, qtype RecordType) ([]Record, bool) {
	labels := dns.SplitDomainName(owner)
	for i := 1; i < len(labels); i++ {
		candidate := strings.Join(labels[i:], ".") + "."
		byType, ok := s.forward[candidate]
		if !ok {
			continue
		}
		recs := recordsForType(byType, qtype)
		if len(recs) == 0 {
			continue
		}
		out := make([]Record, len(recs))
		for j, r := range recs {
			r.Name = owner
			out[j] = r
		}
		return out, true
	}
	return nil, false
}

// BuildInput bundles the inputs the reconciler gathers each tick
// (spec.md section 4.4) that Build consumes to produce the next snapshot.
type BuildInput struct {
	TLD      string
	Wildcard bool
	TTL      uint32
	Prefixes []netip.Prefix
	NetID    string
	Members  []zeronsd.Member
	Hosts    []zeronsd.HostEntry
}

// Build runs the zone-construction algorithm of spec.md section 4.3 and
// returns the resulting snapshot plus any non-fatal warnings encountered
// along the way (malformed member entries are skipped, never fatal, per
// spec.md section 7).
func Build(in BuildInput) (*Snapshot, []string) {
	var warnings []string

	s := &Snapshot{
		tld:          strings.ToLower(dotSuffixed(in.TLD)),
		wildcard:     in.Wildcard,
		forward:      map[string]map[RecordType][]Record{},
		reverse:      map[string]Record{},
		reverseZones: reverseZoneApexes(in.Prefixes),
	}

	ttl := in.TTL
	if ttl == 0 {
		ttl = zeronsd.DefaultTTL
	}

	hostsOwnerSeen := map[string]bool{}

	for _, m := range in.Members {
		if m.ID == "" {
			warnings = append(warnings, "member missing id, skipped")
			continue
		}

		targets := targetIPs(m.AssignedIPs, in.Prefixes)
		if len(targets) == 0 {
			continue
		}

		memberFQDN, err := zeronsd.Qualify(zeronsd.MemberLabel(m.ID), s.tld)
		if err != nil {
			warnings = append(warnings, "member "+m.ID+": "+err.Error())
			continue
		}

		for _, ip := range targets {
			s.addForward(memberFQDN, ip, ttl)
			if !zeronsd.IsSixPlane(ip, in.NetID) {
				s.setPTR(ip, memberFQDN, ttl)
			}
		}

		if label, ok := zeronsd.Sanitize(m.Name); ok {
			namedFQDN, err := zeronsd.Qualify(label, s.tld)
			if err != nil {
				warnings = append(warnings, "member "+m.ID+" name: "+err.Error())
				continue
			}

			// Later member wins: replace whatever a previous member left
			// at this owner entirely (spec.md invariant 4).
			s.resetForward(namedFQDN)

			for _, ip := range targets {
				s.addForward(namedFQDN, ip, ttl)
				if !zeronsd.IsSixPlane(ip, in.NetID) {
					s.setPTR(ip, namedFQDN, ttl)
				}
			}
		}
	}

	for _, h := range in.Hosts {
		for _, n := range h.Names {
			label, ok := zeronsd.Sanitize(n)
			if !ok {
				warnings = append(warnings, "hosts file: name "+strconv.Quote(n)+" did not sanitize")
				continue
			}
			fqdn, err := zeronsd.Qualify(label, s.tld)
			if err != nil {
				warnings = append(warnings, "hosts file: "+err.Error())
				continue
			}

			if !hostsOwnerSeen[fqdn] {
				s.resetForward(fqdn)
				hostsOwnerSeen[fqdn] = true
			}
			s.addForward(fqdn, h.IP, ttl)
		}
	}

	return s, warnings
}

func targetIPs(ips []netip.Addr, prefixes []netip.Prefix) []netip.Addr {
	var out []netip.Addr
	for _, ip := range ips {
		for _, p := range prefixes {
			if p.Contains(ip) {
				out = append(out, ip)
				break
			}
		}
	}
	return out
}

func (s *Snapshot) resetForward(owner string) {
	delete(s.forward, owner)
}

func (s *Snapshot) addForward(owner string, ip netip.Addr, ttl uint32) {
	byType, ok := s.forward[owner]
	if !ok {
		byType = map[RecordType][]Record{}
		s.forward[owner] = byType
	}

	rt := A
	if ip.Is6() && !ip.Is4In6() {
		rt = AAAA
	}

	for _, existing := range byType[rt] {
		if existing.IP == ip {
			return // duplicates with identical (owner, type, rdata) collapse
		}
	}

	byType[rt] = append(byType[rt], Record{Name: owner, Type: rt, TTL: ttl, IP: ip})
}

func (s *Snapshot) setPTR(ip netip.Addr, target string, ttl uint32) {
	owner := zeronsd.PTROwner(ip)
	s.reverse[owner] = Record{Name: owner, Type: PTR, TTL: ttl, Target: target}
}

// reverseZoneApexes derives the enclosing in-addr.arpa/ip6.arpa zone for
// each assigned prefix, rounding down to the nearest octet (v4) or nibble
// (v6) boundary, so Lookup's inScope gate accepts PTR queries under the
// node's own reverse space even when no specific PTR record exists yet
// (spec.md section 4.3, step 1).
func reverseZoneApexes(prefixes []netip.Prefix) []string {
	var zones []string
	for _, p := range prefixes {
		addr := p.Addr()
		if addr.Is4() {
			octets := p.Bits() / 8
			if octets == 0 {
				zones = append(zones, "in-addr.arpa.")
				continue
			}
			b := addr.As4()
			var parts []string
			for i := octets - 1; i >= 0; i-- {
				parts = append(parts, itoa(b[i]))
			}
			zones = append(zones, strings.Join(parts, ".")+".in-addr.arpa.")
		} else {
			nibbles := p.Bits() / 4
			if nibbles == 0 {
				zones = append(zones, "ip6.arpa.")
				continue
			}
			b := addr.As16()
			var parts []string
			for i := nibbles - 1; i >= 0; i-- {
				byteVal := b[i/2]
				var nibble byte
				if i%2 == 0 {
					nibble = byteVal >> 4
				} else {
					nibble = byteVal & 0x0f
				}
				parts = append(parts, hexDigit(nibble))
			}
			zones = append(zones, strings.Join(parts, ".")+".ip6.arpa.")
		}
	}
	return zones
}

func itoa(b byte) string {
	const digits = "0123456789"
	if b < 10 {
		return digits[b : b+1]
	}
	if b < 100 {
		return string([]byte{digits[b/10], digits[b%10]})
	}
	return string([]byte{digits[b/100], digits[(b/10)%10], digits[b%10]})
}

func hexDigit(n byte) string {
	const digits = "0123456789abcdef"
	return digits[n : n+1]
}
