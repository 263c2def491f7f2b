// Copyright (c) 2026 The ZeroNSD Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zeronsd

import (
	"bufio"
	"net/netip"
	"os"
	"strings"
)

// ParseHosts reads a UNIX-style hosts(5) file into an ordered list of
// (ip, names) tuples, mirroring original_source/src/hosts.rs's parse_hosts:
// blank lines and anything after '#' are ignored, a malformed IP is skipped
// with a warning rather than being fatal, and duplicate IPs accumulate
// names instead of clobbering each other (spec.md section 4.2).
//
// An empty path is not an error: it simply yields no entries, matching the
// Rust implementation's handling of an absent --hosts flag.
func ParseHosts(path string) ([]HostEntry, []string, error) {
	var warnings []string

	if path == "" {
		return nil, nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	byIP := make(map[netip.Addr]*HostEntry)
	var order []netip.Addr

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		ip, err := netip.ParseAddr(fields[0])
		if err != nil {
			warnings = append(warnings, "hosts file: couldn't parse ip "+fields[0]+": "+err.Error())
			continue
		}

		entry, ok := byIP[ip]
		if !ok {
			entry = &HostEntry{IP: ip}
			byIP[ip] = entry
			order = append(order, ip)
		}
		entry.Names = append(entry.Names, fields[1:]...)
	}
	if err := scanner.Err(); err != nil {
		return nil, warnings, err
	}

	entries := make([]HostEntry, 0, len(order))
	for _, ip := range order {
		entries = append(entries, *byIP[ip])
	}

	return entries, warnings, nil
}
