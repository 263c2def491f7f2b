// Copyright (c) 2026 The ZeroNSD Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dnsserver_test

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"

	"github.com/openzt/zeronsd"
	"github.com/openzt/zeronsd/dnsserver"
	"github.com/openzt/zeronsd/zone"
)

const addr = "127.0.0.1:54311"

func buildTestZone(t *testing.T) *zone.Zone {
	t.Helper()
	z := zone.New("home.arpa", false)
	snap, warnings := zone.Build(zone.BuildInput{
		TLD:      "home.arpa",
		Prefixes: []netip.Prefix{netip.MustParsePrefix("10.0.0.0/24")},
		NetID:    "8056c2e21c000001",
		Members: []zeronsd.Member{
			{ID: "aaaaaaaaaa", Name: "Server", AssignedIPs: []netip.Addr{netip.MustParseAddr("10.0.0.1")}},
		},
	})
	require.Empty(t, warnings)
	z.Install(snap)
	return z
}

// startFakeUpstream runs a tiny authoritative server for example.net. so
// Forward's happy path can be exercised without real network access.
func startFakeUpstream(t *testing.T) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	mux := dns.NewServeMux()
	mux.HandleFunc("example.net.", func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		m.Answer = append(m.Answer, &dns.A{
			Hdr: dns.RR_Header{Name: "example.net.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
			A:   net.ParseIP("93.184.216.34"),
		})
		w.WriteMsg(m)
	})

	srv := &dns.Server{PacketConn: pc, Handler: mux}
	go srv.ActivateAndServe()
	t.Cleanup(func() { srv.Shutdown() })

	return pc.LocalAddr().String()
}

func TestServer_AuthoritativeAndForwarded(t *testing.T) {
	z := buildTestZone(t)
	upstream := startFakeUpstream(t)
	fwd := dnsserver.NewForwarder([]string{upstream}, time.Second)

	server := dnsserver.New(z, fwd)
	server.Ready = make(chan struct{})

	config := dnsserver.Config{Addr: addr}

	served := make(chan error, 1)
	go func() {
		served <- server.Serve(config)
	}()
	<-server.Ready

	client := &dns.Client{Net: "udp", Timeout: 2 * time.Second}

	t.Run("authoritative A record", func(t *testing.T) {
		msg := new(dns.Msg)
		msg.SetQuestion("zt-aaaaaaaaaa.home.arpa.", dns.TypeA)
		in, _, err := client.Exchange(msg, addr)
		require.NoError(t, err)
		require.Equal(t, dns.RcodeSuccess, in.Rcode)
		require.Len(t, in.Answer, 1)
		a, ok := in.Answer[0].(*dns.A)
		require.True(t, ok)
		require.Equal(t, "10.0.0.1", a.A.String())
	})

	t.Run("sanitized name resolves", func(t *testing.T) {
		msg := new(dns.Msg)
		msg.SetQuestion("server.home.arpa.", dns.TypeA)
		in, _, err := client.Exchange(msg, addr)
		require.NoError(t, err)
		require.Equal(t, dns.RcodeSuccess, in.Rcode)
		require.Len(t, in.Answer, 1)
	})

	t.Run("nxdomain under own tld", func(t *testing.T) {
		msg := new(dns.Msg)
		msg.SetQuestion("nosuchname.home.arpa.", dns.TypeA)
		in, _, err := client.Exchange(msg, addr)
		require.NoError(t, err)
		require.Equal(t, dns.RcodeNameError, in.Rcode)
	})

	t.Run("forwarded query", func(t *testing.T) {
		msg := new(dns.Msg)
		msg.SetQuestion("example.net.", dns.TypeA)
		in, _, err := client.Exchange(msg, addr)
		require.NoError(t, err)
		require.Equal(t, dns.RcodeSuccess, in.Rcode)
		require.Len(t, in.Answer, 1)
		a, ok := in.Answer[0].(*dns.A)
		require.True(t, ok)
		require.Equal(t, "93.184.216.34", a.A.String())
	})

	t.Run("ANY returns A union", func(t *testing.T) {
		msg := new(dns.Msg)
		msg.SetQuestion("zt-aaaaaaaaaa.home.arpa.", dns.TypeANY)
		in, _, err := client.Exchange(msg, addr)
		require.NoError(t, err)
		require.Equal(t, dns.RcodeSuccess, in.Rcode)
		require.Len(t, in.Answer, 1)
		a, ok := in.Answer[0].(*dns.A)
		require.True(t, ok)
		require.Equal(t, "10.0.0.1", a.A.String())
	})

	t.Run("unsupported qtype against known owner is NODATA not wrong-typed answer", func(t *testing.T) {
		msg := new(dns.Msg)
		msg.SetQuestion("zt-aaaaaaaaaa.home.arpa.", dns.TypeTXT)
		in, _, err := client.Exchange(msg, addr)
		require.NoError(t, err)
		require.Equal(t, dns.RcodeSuccess, in.Rcode)
		require.Empty(t, in.Answer)
	})

	t.Run("unsupported qtype against unknown owner is NXDOMAIN", func(t *testing.T) {
		msg := new(dns.Msg)
		msg.SetQuestion("nosuchname.home.arpa.", dns.TypeTXT)
		in, _, err := client.Exchange(msg, addr)
		require.NoError(t, err)
		require.Equal(t, dns.RcodeNameError, in.Rcode)
	})

	t.Run("non-IN class is NotImp", func(t *testing.T) {
		msg := new(dns.Msg)
		msg.SetQuestion("zt-aaaaaaaaaa.home.arpa.", dns.TypeA)
		msg.Question[0].Qclass = dns.ClassCHAOS
		in, _, err := client.Exchange(msg, addr)
		require.NoError(t, err)
		require.Equal(t, dns.RcodeNotImplemented, in.Rcode)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))
	require.NoError(t, <-served)
}
