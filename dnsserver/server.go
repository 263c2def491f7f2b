// Copyright (c) 2026 The ZeroNSD Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dnsserver implements the request dispatcher (C6) and upstream
// forwarder (C7) described in spec.md sections 4.6 and 4.7. It is built
// upon https://github.com/miekg/dns, adapting the teacher's listener
// lifecycle (net.Listen + dns.ActivateAndServe, with a stop/done channel
// pair for Shutdown) to a zone.Zone-backed, forwarder-capable dispatcher.
//
// See the top-level package for general documentation.
package dnsserver

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/miekg/dns"

	"github.com/openzt/zeronsd"
	"github.com/openzt/zeronsd/metrics"
	"github.com/openzt/zeronsd/zone"
)

const (
	defaultAddr           = ":53"
	defaultTLSAddr        = ":853"
	defaultForwardTimeout = 5 * time.Second
	defaultMaxUDPSize     = 1232 // conservative EDNS0 payload, avoids fragmentation
)

// Config of the DNS server.
type Config struct {
	// Addr defaults to ":53". If a hostname is specified, all IP addresses
	// it resolves to will be listened on, matching the teacher's
	// net.Resolver.LookupHost expansion.
	Addr string

	NoTCP bool
	NoUDP bool

	// TLSAddr defaults to ":853". Only bound when TLSCertFile/TLSKeyFile
	// are set (spec.md section 4.6: "If TLS material... is configured,
	// additionally binds DNS-over-TLS on port 853").
	TLSAddr     string
	TLSCertFile string
	TLSKeyFile  string

	// ForwardTimeout bounds the whole forwarding of one query through C7,
	// across all upstream attempts; each single attempt is further bounded
	// by the Forwarder's own per-server timeout. Defaults to 5s per spec.md
	// section 4.6.
	ForwardTimeout time.Duration

	// MaxUDPSize is the EDNS0 payload size advertised and echoed back to
	// clients that send OPT.
	MaxUDPSize uint16

	ErrorLog zeronsd.Logger // Defaults to a no-op logger.
	DebugLog zeronsd.Logger // Defaults to nothingness (no debug logging).
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = defaultAddr
	}
	if c.TLSAddr == "" {
		c.TLSAddr = defaultTLSAddr
	}
	if c.ForwardTimeout <= 0 {
		c.ForwardTimeout = defaultForwardTimeout
	}
	if c.MaxUDPSize == 0 {
		c.MaxUDPSize = defaultMaxUDPSize
	}
	if c.ErrorLog == nil {
		c.ErrorLog = noopLogger{}
	}
}

type noopLogger struct{}

func (noopLogger) Printf(string, ...interface{}) {}

// Server dispatches DNS requests: zone.Zone answers queries under the
// configured TLD and reverse zones, Forwarder answers everything else
// (spec.md section 4.6).
type Server struct {
	// Ready, if set before Serve is called, is closed once all listeners
	// are bound.
	Ready chan struct{}

	zone      *zone.Zone
	forwarder *Forwarder

	lock sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// New builds a Server answering from z, forwarding non-authoritative
// queries through fwd.
func New(z *zone.Zone, fwd *Forwarder) *Server {
	return &Server{zone: z, forwarder: fwd}
}

// Serve DNS requests until Shutdown is called.
func (s *Server) Serve(config Config) (err error) {
	s.lock.Lock()
	stop := s.stop
	done := s.done
	start := stop == nil
	if start {
		stop = make(chan struct{})
		done = make(chan struct{})
		s.stop = stop
		s.done = done
	}
	s.lock.Unlock()
	if !start {
		return nil
	}
	defer close(done)

	config.setDefaults()

	host, port, err := net.SplitHostPort(config.Addr)
	if err != nil {
		return err
	}

	handler := dns.HandlerFunc(func(w dns.ResponseWriter, m *dns.Msg) {
		handle(w, m, s.zone, s.forwarder, &config)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wait := func() {
		select {
		case <-stop:
		case <-ctx.Done():
		}
	}

	var addrs []string
	if host == "" {
		addrs = []string{host}
	} else {
		addrs, err = new(net.Resolver).LookupHost(ctx, host)
		if err != nil {
			return err
		}
	}
	for i, h := range addrs {
		addrs[i] = net.JoinHostPort(h, port)
	}

	var tlsConfig *tls.Config
	if config.TLSCertFile != "" && config.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(config.TLSCertFile, config.TLSKeyFile)
		if err != nil {
			return err
		}
		tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}

	errors := make(chan error, (3*2)*len(addrs)) // (tcp, udp, tls) x (wait, listen) x addrs

	for _, addr := range addrs {
		addr := addr

		if !config.NoTCP {
			l, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			go func() {
				defer l.Close()
				wait()
				errors <- nil
			}()
			go func() {
				errors <- dns.ActivateAndServe(l, nil, handler)
			}()
		}

		if !config.NoUDP {
			pc, err := net.ListenPacket("udp", addr)
			if err != nil {
				return err
			}
			go func() {
				defer pc.Close()
				wait()
				errors <- nil
			}()
			go func() {
				errors <- dns.ActivateAndServe(nil, pc, handler)
			}()
		}
	}

	if tlsConfig != nil {
		tlsHost, tlsPort, err := net.SplitHostPort(config.TLSAddr)
		if err != nil {
			return err
		}
		var tlsAddrs []string
		if tlsHost == "" {
			tlsAddrs = []string{tlsHost}
		} else {
			tlsAddrs, err = new(net.Resolver).LookupHost(ctx, tlsHost)
			if err != nil {
				return err
			}
		}
		for i, h := range tlsAddrs {
			tlsAddrs[i] = net.JoinHostPort(h, tlsPort)
		}

		for _, addr := range tlsAddrs {
			addr := addr
			l, err := tls.Listen("tcp", addr, tlsConfig)
			if err != nil {
				return err
			}
			go func() {
				defer l.Close()
				wait()
				errors <- nil
			}()
			go func() {
				errors <- dns.ActivateAndServe(l, nil, handler)
			}()
		}
	}

	if s.Ready != nil {
		close(s.Ready)
	}

	err = <-errors
	return err
}

// Shutdown the server. The Serve call will return.
func (s *Server) Shutdown(ctx context.Context) (err error) {
	s.lock.Lock()
	stop := s.stop
	done := s.done
	if stop == nil {
		stop = make(chan struct{})
		s.stop = stop
	}
	s.lock.Unlock()
	close(stop)
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// handle implements spec.md section 4.6's dispatch rule for a single
// query.
func handle(w dns.ResponseWriter, reqMsg *dns.Msg, z *zone.Zone, fwd *Forwarder, cfg *Config) {
	start := time.Now()
	defer func() {
		metrics.QueryDuration.Observe(time.Since(start).Seconds())
	}()

	defer func() {
		if x := recover(); x != nil {
			cfg.ErrorLog.Printf("panic: %v", x)
		}
	}()

	var replyMsg dns.Msg
	replyMsg.SetReply(reqMsg)
	replyCode := dns.RcodeServerFailure

	opt := reqMsg.IsEdns0()

	defer func() {
		replyMsg.Rcode = replyCode
		if opt != nil {
			replyMsg.SetEdns0(cfg.MaxUDPSize, false)
		}

		metrics.QueriesTotal.WithLabelValues(qtypeLabel(reqMsg), dns.RcodeToString[replyCode]).Inc()

		if cfg.DebugLog != nil {
			cfg.DebugLog.Printf("dnsserver: %v %s", w.RemoteAddr(), dns.RcodeToString[replyCode])
		}

		if isUDP(w) && replyMsg.Len() > int(cfg.MaxUDPSize) {
			replyMsg.Truncate(int(cfg.MaxUDPSize))
		}

		if err := w.WriteMsg(&replyMsg); err != nil {
			cfg.ErrorLog.Printf("write: %v", err)
		}
	}()

	if len(reqMsg.Question) != 1 {
		replyCode = dns.RcodeNotImplemented
		return
	}

	q := reqMsg.Question[0]

	if q.Qclass != dns.ClassINET {
		replyCode = dns.RcodeNotImplemented
		return
	}

	if cfg.DebugLog != nil {
		cfg.DebugLog.Printf("dnsserver: %v %s %q", w.RemoteAddr(), dns.TypeToString[q.Qtype], q.Name)
	}

	// qtype other than A/AAAA/PTR/ANY (TXT, MX, SRV, CNAME...) is never
	// something this zone answers with its own RRs, but an owner that
	// exists still needs NODATA rather than NXDOMAIN. Query the zone
	// with the ANY union to classify the owner, and only ever feed
	// appendAnswers real A/AAAA/PTR/ANY results so the reply never
	// carries RRs typed differently from what was asked.
	qtype, recognized := zoneRecordType(q.Qtype)
	lookupType := qtype
	if !recognized {
		lookupType = zone.ANY
	}

	recs, code := z.Current().Lookup(q.Name, lookupType)

	switch code {
	case zone.Answer:
		replyMsg.Authoritative = true
		replyCode = dns.RcodeSuccess
		if recognized {
			appendAnswers(&replyMsg, recs)
		}
		return

	case zone.NoData:
		replyMsg.Authoritative = true
		replyCode = dns.RcodeSuccess
		return

	case zone.NXDomain:
		replyMsg.Authoritative = true
		replyCode = dns.RcodeNameError
		return

	case zone.Refused:
		// Fall through to the forwarder below.
	}

	if fwd == nil {
		replyCode = dns.RcodeRefused
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ForwardTimeout)
	defer cancel()

	fwdReply, err := fwd.Forward(ctx, reqMsg)
	if err != nil {
		metrics.ForwardedTotal.WithLabelValues(forwardOutcome(err)).Inc()
		replyCode = dns.RcodeServerFailure
		return
	}
	metrics.ForwardedTotal.WithLabelValues("answered").Inc()

	fwdReply.Id = reqMsg.Id
	replyMsg = *fwdReply
	replyCode = fwdReply.Rcode
}

func appendAnswers(replyMsg *dns.Msg, recs []zone.Record) {
	for _, r := range recs {
		switch r.Type {
		case zone.A:
			if !r.IP.Is4() {
				continue
			}
			replyMsg.Answer = append(replyMsg.Answer, &dns.A{
				Hdr: dns.RR_Header{Name: r.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: r.TTL},
				A:   net.IP(r.IP.AsSlice()),
			})
		case zone.AAAA:
			replyMsg.Answer = append(replyMsg.Answer, &dns.AAAA{
				Hdr:  dns.RR_Header{Name: r.Name, Rrtype: dns.TypeAAAA, Class: dns.ClassINET, Ttl: r.TTL},
				AAAA: net.IP(r.IP.AsSlice()),
			})
		case zone.PTR:
			replyMsg.Answer = append(replyMsg.Answer, &dns.PTR{
				Hdr: dns.RR_Header{Name: r.Name, Rrtype: dns.TypePTR, Class: dns.ClassINET, Ttl: r.TTL},
				Ptr: r.Target,
			})
		}
	}
}

func zoneRecordType(qtype uint16) (zone.RecordType, bool) {
	switch qtype {
	case dns.TypeA:
		return zone.A, true
	case dns.TypeAAAA:
		return zone.AAAA, true
	case dns.TypePTR:
		return zone.PTR, true
	case dns.TypeANY:
		return zone.ANY, true
	default:
		return 0, false
	}
}

func qtypeLabel(m *dns.Msg) string {
	if len(m.Question) != 1 {
		return "multi"
	}
	return dns.TypeToString[m.Question[0].Qtype]
}

func forwardOutcome(err error) string {
	if err == context.DeadlineExceeded {
		return "timeout"
	}
	return "error"
}

func isUDP(w dns.ResponseWriter) bool {
	_, ok := w.RemoteAddr().(*net.UDPAddr)
	return ok
}
