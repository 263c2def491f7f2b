// Copyright (c) 2026 The ZeroNSD Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zone

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/libdns/libdns"
)

// AppendRecords and DeleteRecords adapt Zone to libdns.RecordAppender and
// libdns.RecordDeleter (tsavola-indns/dnszone/libdns.go), so operator
// tooling built against the libdns ecosystem can add or remove one-off
// records (manual overrides, test fixtures) without waiting for the next
// reconciler tick. The reconciler itself never calls these; it installs
// whole snapshots via Build/Install.
//
// Both methods copy the current snapshot, apply the change, and install
// the result, preserving the "one writer, atomic swap" model.

// AppendRecords adds recs to the zone, returning the records actually
// appended. A record whose type or rdata cannot be parsed is skipped
// rather than aborting the whole batch, matching the teacher's
// per-record error handling in parseRecord.
func (z *Zone) AppendRecords(ctx context.Context, zoneName string, recs []libdns.Record) ([]libdns.Record, error) {
	cur := z.Current()
	if !cur.servesZone(zoneName) {
		return nil, &existenceError{owner: zoneName}
	}
	next := cur.clone()

	var appended []libdns.Record
	for _, r := range recs {
		rec, err := parseRecord(r, next.tld)
		if err != nil {
			continue
		}
		owner := rec.Name
		if rec.Type == PTR {
			next.reverse[owner] = rec
		} else {
			next.addForwardRecord(owner, rec)
		}
		appended = append(appended, r)
	}

	z.Install(next)
	return appended, nil
}

// DeleteRecords removes recs from the zone, returning the records actually
// deleted.
func (z *Zone) DeleteRecords(ctx context.Context, zoneName string, recs []libdns.Record) ([]libdns.Record, error) {
	cur := z.Current()
	if !cur.servesZone(zoneName) {
		return nil, &existenceError{owner: zoneName}
	}
	next := cur.clone()

	var deleted []libdns.Record
	for _, r := range recs {
		rec, err := parseRecord(r, next.tld)
		if err != nil {
			continue
		}
		if rec.Type == PTR {
			if _, ok := next.reverse[rec.Name]; ok {
				delete(next.reverse, rec.Name)
				deleted = append(deleted, r)
			}
			continue
		}
		if next.removeForwardRecord(rec.Name, rec.Type, rec.IP) {
			deleted = append(deleted, r)
		}
	}

	z.Install(next)
	return deleted, nil
}

// clone makes a deep-enough copy of s for copy-on-write mutation: the
// outer maps and their inner slices are copied so the snapshot currently
// being read by in-flight queries is never mutated in place
// (other_examples/CleoWixom-ztnet-dns__cache.go's cloneRecords).
func (s *Snapshot) clone() *Snapshot {
	n := &Snapshot{
		tld:          s.tld,
		wildcard:     s.wildcard,
		forward:      make(map[string]map[RecordType][]Record, len(s.forward)),
		reverse:      make(map[string]Record, len(s.reverse)),
		reverseZones: append([]string(nil), s.reverseZones...),
	}
	for owner, byType := range s.forward {
		cloned := make(map[RecordType][]Record, len(byType))
		for t, recs := range byType {
			cloned[t] = append([]Record(nil), recs...)
		}
		n.forward[owner] = cloned
	}
	for owner, r := range s.reverse {
		n.reverse[owner] = r
	}
	return n
}

func (s *Snapshot) addForwardRecord(owner string, rec Record) {
	byType, ok := s.forward[owner]
	if !ok {
		byType = map[RecordType][]Record{}
		s.forward[owner] = byType
	}
	for _, existing := range byType[rec.Type] {
		if existing.IP == rec.IP {
			return
		}
	}
	byType[rec.Type] = append(byType[rec.Type], rec)
}

func (s *Snapshot) removeForwardRecord(owner string, t RecordType, ip netip.Addr) bool {
	byType, ok := s.forward[owner]
	if !ok {
		return false
	}
	recs := byType[t]
	for i, r := range recs {
		if r.IP == ip {
			byType[t] = append(recs[:i], recs[i+1:]...)
			if len(byType[t]) == 0 {
				delete(byType, t)
			}
			if len(byType) == 0 {
				delete(s.forward, owner)
			}
			return true
		}
	}
	return false
}

// parseRecord converts a libdns.Record into our internal Record,
// mirroring the teacher's parseRecord/parseA/parseAAAA dispatch on
// rec.Type.
func parseRecord(r libdns.Record, tld string) (Record, error) {
	owner := strings.ToLower(r.Name)
	if !strings.HasSuffix(owner, ".") {
		owner = owner + "." + strings.TrimSuffix(strings.ToLower(tld), ".") + "."
	}

	ttl := uint32(r.TTL / time.Second)

	switch strings.ToUpper(r.Type) {
	case "A", "AAAA":
		ip, err := netip.ParseAddr(r.Value)
		if err != nil {
			return Record{}, fmt.Errorf("parse %s record %q: %w", r.Type, r.Value, err)
		}
		rt := A
		if ip.Is6() && !ip.Is4In6() {
			rt = AAAA
		}
		return Record{Name: owner, Type: rt, TTL: ttl, IP: ip}, nil
	case "PTR":
		return Record{Name: owner, Type: PTR, TTL: ttl, Target: strings.ToLower(r.Value)}, nil
	default:
		return Record{}, fmt.Errorf("unsupported record type %q", r.Type)
	}
}
