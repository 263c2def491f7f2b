// Copyright (c) 2026 The ZeroNSD Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*

Package zeronsd turns a ZeroTier virtual network's member inventory into
resolvable DNS names, and registers itself as that network's assigned DNS
server through ZeroTier Central's administrative API.

One zeronsd process serves exactly one ZeroTier network. The package is
organized around the pieces described in the design document:

	zeronsd             - name formatting (sanitize/qualify/ptr owners) and
	                       hosts(5) file parsing
	zeronsd/zone        - the in-memory forward/reverse zone authority
	zeronsd/reconciler  - the periodic inventory -> zone snapshot loop
	zeronsd/central     - ZeroTier Central API client and DNS pointer publisher
	zeronsd/ztlocal     - local ZeroTier service API client
	zeronsd/dnsserver   - the DNS request dispatcher and upstream forwarder
	zeronsd/metrics     - operational counters

A minimal wiring looks like:

	nc := zeronsd.NetworkContext{
		NetworkID:    "8056c2e21c000001",
		NodeID:       "aaaaaaaaaa",
		TLD:          "home.arpa",
		CentralToken: centralToken,
	}.Normalized()

	z := zone.New(nc.TLD, nc.Wildcard)
	rec := reconciler.New(nc, z, ztlocal.New("", localToken), central.New("", centralToken), logger)
	go rec.Run(ctx)

	fwd, _ := dnsserver.NewForwarderFromSystemConfig(5 * time.Second)
	srv := dnsserver.New(z, fwd)
	log.Fatal(srv.Serve(dnsserver.Config{}))

*/
package zeronsd
