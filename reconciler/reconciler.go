// Copyright (c) 2026 The ZeroNSD Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package reconciler implements C4 (spec.md section 4.4): the periodic
// task that polls the local ZeroTier service and Central for inventory,
// rebuilds the zone, and installs it atomically, while also triggering C5
// to keep the network's advertised DNS server current.
package reconciler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openzt/zeronsd"
	"github.com/openzt/zeronsd/central"
	"github.com/openzt/zeronsd/metrics"
	"github.com/openzt/zeronsd/zone"
	"github.com/openzt/zeronsd/ztlocal"
)

// State names the reconciler's position in the Idle -> Polling ->
// Publishing -> Sleeping -> Idle state machine (spec.md section 4.4). It
// is exposed only for logging/tests; nothing outside this package branches
// on it.
type State int

const (
	Idle State = iota
	Polling
	Publishing
	Sleeping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Polling:
		return "polling"
	case Publishing:
		return "publishing"
	case Sleeping:
		return "sleeping"
	default:
		return "unknown"
	}
}

// Reconciler owns the single writer side of a zone.Zone. It is not safe
// for concurrent use of Tick/Run from multiple goroutines; spec.md section
// 5 requires exactly one reconciler task.
type Reconciler struct {
	cfg     zeronsd.NetworkContext
	zone    *zone.Zone
	zt      *ztlocal.Client
	central *central.Client
	log     zerolog.Logger

	state State
}

// New builds a Reconciler writing into z, using zt and c as the local
// service and Central clients respectively.
func New(cfg zeronsd.NetworkContext, z *zone.Zone, zt *ztlocal.Client, c *central.Client, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		cfg:     cfg.Normalized(),
		zone:    z,
		zt:      zt,
		central: c,
		log:     log,
		state:   Idle,
	}
}

// Run ticks every cfg.PollInterval until ctx is cancelled, performing one
// Tick per interval and logging (never panicking) on failure. The first
// tick fires immediately on start, matching spec.md's "Idle -> Polling on
// tick... or on start."
func (r *Reconciler) Run(ctx context.Context) {
	r.tickAndLog(ctx)

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("reconciler: shutting down, abandoning current tick")
			return
		case <-ticker.C:
			r.tickAndLog(ctx)
		}
	}
}

func (r *Reconciler) tickAndLog(ctx context.Context) {
	corrID := uuid.New().String()
	log := r.log.With().Str("correlation_id", corrID).Logger()

	if err := r.Tick(ctx, log); err != nil {
		metrics.ReconcilerTicksTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("reconciler tick failed, snapshot unchanged")
		return
	}
	metrics.ReconcilerTicksTotal.WithLabelValues("published").Inc()
}

// Tick runs exactly one Polling -> Publishing -> Sleeping cycle (spec.md
// section 4.4). On any fetch error it returns immediately without
// touching the zone, per the "do not touch the current snapshot" rule.
func (r *Reconciler) Tick(ctx context.Context, log zerolog.Logger) error {
	r.state = Polling

	status, err := r.zt.Status(ctx)
	if err != nil {
		r.state = Sleeping
		return err
	}

	netInfo, err := r.zt.Network(ctx, r.cfg.NetworkID)
	if err != nil {
		r.state = Sleeping
		return err
	}
	prefixes := netInfo.AssignedPrefixes()

	centralMembers, err := r.central.ListMembers(ctx, r.cfg.NetworkID)
	if err != nil {
		r.state = Sleeping
		return err
	}

	hosts, warnings, err := zeronsd.ParseHosts(r.cfg.HostsPath)
	if err != nil {
		r.state = Sleeping
		return err
	}
	for _, w := range warnings {
		log.Warn().Str("source", "hosts").Msg(w)
	}

	members := make([]zeronsd.Member, 0, len(centralMembers))
	for _, m := range centralMembers {
		members = append(members, zeronsd.Member{
			ID:          m.ID,
			Name:        m.Name,
			AssignedIPs: m.AssignedIPs(),
			Authorized:  m.Config.Authorized,
		})
	}

	r.state = Publishing

	snap, buildWarnings := zone.Build(zone.BuildInput{
		TLD:      r.cfg.TLD,
		Wildcard: r.cfg.Wildcard,
		TTL:      r.cfg.TTL,
		Prefixes: prefixes,
		NetID:    r.cfg.NetworkID,
		Members:  members,
		Hosts:    hosts,
	})
	for _, w := range buildWarnings {
		log.Warn().Str("source", "zone-build").Msg(w)
	}

	r.zone.Install(snap)
	metrics.SnapshotInstallsTotal.Inc()

	if status.Address != "" && len(prefixes) > 0 {
		if err := central.PublishDNS(ctx, r.central, r.cfg.NetworkID, r.cfg.TLD, prefixes[0].Addr()); err != nil {
			metrics.CentralPublishTotal.WithLabelValues("error").Inc()
			log.Warn().Err(err).Msg("central dns publish failed, will retry next tick")
		} else {
			metrics.CentralPublishTotal.WithLabelValues("ok").Inc()
		}
	}

	r.state = Sleeping
	return nil
}
