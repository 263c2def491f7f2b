// Copyright (c) 2026 The ZeroNSD Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package zone implements the in-memory forward/reverse DNS zone
// authority described in spec.md section 4.3: an immutable snapshot,
// atomically swapped by the reconciler and read by the dispatcher.
//
// See the top-level package for general documentation.
package zone

import (
	"net/netip"
)

// RecordType enumerates the three RR types ZeroNSD ever answers with
// (spec.md section 3): it is never a recursive resolver, so no other
// type is modeled.
type RecordType int

const (
	A RecordType = iota
	AAAA
	PTR

	// ANY is a query-side sentinel only: it never appears on a stored
	// Record, but Lookup accepts it to return the union of A and AAAA at
	// an owner (spec.md section 4.3, "filter by qtype... or ANY").
	ANY
)

func (t RecordType) String() string {
	switch t {
	case A:
		return "A"
	case AAAA:
		return "AAAA"
	case PTR:
		return "PTR"
	case ANY:
		return "ANY"
	default:
		return "UNKNOWN"
	}
}

// Record is a single answer-ready resource record (spec.md section 3).
// Name is always absolute and canonical (lowercase, trailing dot). For A
// and AAAA records, IP holds the address; for PTR, Target holds the
// canonical owner name it points at.
type Record struct {
	Name   string
	Type   RecordType
	TTL    uint32
	IP     netip.Addr
	Target string
}
