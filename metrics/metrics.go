// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package metrics exposes the running network's traffic, latency, and
// congestion counters as Prometheus collectors: one Collector per
// simulation, registered once and periodically sampled from the
// per-NetworkInterface, per-link, and per-VC state the rest of the
// packages already track.
package metrics

import (
	"strconv"

	"garnet/router"
	"garnet/vc"

	"github.com/prometheus/client_golang/prometheus"
)

// NIStats is the slice of ni.Stats that ObserveNI needs; declared locally
// so this package never imports ni (ni stays free of any observability
// dependency, same as the rest of the simulation core).
type NIStats struct {
	PacketsInjected, PacketsReceived int
	FlitsInjected, FlitsReceived     int
	NetworkLatencies                 []int
	QueueingLatencies                []int
	Hops                              []int
	DR                                 []int
	Misrouting                         []int
}

// niCursor remembers how much of each growing Stats slice has already
// been exported, so repeated ObserveNI calls only feed the histograms the
// newly completed packets since the last sample.
type niCursor struct {
	latencies, queueing, hops, dr, misrouting int

	packetsInjected, packetsReceived, flitsInjected, flitsReceived int
}

// Collector holds every metric this simulator exports. A nil *Collector
// is valid and every method on it is then a no-op, so wiring it through
// optional call sites never requires a presence check at each call.
type Collector struct {
	packetsInjected *prometheus.CounterVec
	packetsReceived *prometheus.CounterVec
	flitsInjected   *prometheus.CounterVec
	flitsReceived   *prometheus.CounterVec

	networkLatency  *prometheus.HistogramVec
	queueingLatency *prometheus.HistogramVec
	hops            *prometheus.HistogramVec
	dimReversals    *prometheus.HistogramVec
	misroutes       *prometheus.HistogramVec

	linkUtilization *prometheus.CounterVec
	vcLoad          *prometheus.GaugeVec
	trafficTotal    *prometheus.CounterVec

	niCursors map[string]*niCursor
}

// New builds a Collector and registers every metric against reg. Passing
// prometheus.NewRegistry() (rather than the global DefaultRegisterer)
// keeps multiple Collectors in the same process, e.g. across table-driven
// tests, from colliding on duplicate registration.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		packetsInjected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "garnet_packets_injected_total",
			Help: "Packets handed from the host simulator onto the network, by vnet.",
		}, []string{"vnet"}),
		packetsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "garnet_packets_received_total",
			Help: "Packets fully reassembled at their destination, by vnet.",
		}, []string{"vnet"}),
		flitsInjected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "garnet_flits_injected_total",
			Help: "Flits injected onto the network, by vnet.",
		}, []string{"vnet"}),
		flitsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "garnet_flits_received_total",
			Help: "Flits delivered to a destination NetworkInterface, by vnet.",
		}, []string{"vnet"}),
		networkLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "garnet_network_latency_cycles",
			Help:    "Cycles from a packet's injection to its full reassembly.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"vnet"}),
		queueingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "garnet_queueing_latency_cycles",
			Help:    "Cycles a message waited in its NetworkInterface queue before injection.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"vnet"}),
		hops: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "garnet_hops",
			Help:    "Wrap-minimal hop count between a packet's source and destination routers.",
			Buckets: prometheus.LinearBuckets(0, 1, 16),
		}, []string{"vnet"}),
		dimReversals: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "garnet_dimension_reversals",
			Help:    "dimension_reversal counter recorded at packet delivery.",
			Buckets: prometheus.LinearBuckets(0, 1, 8),
		}, []string{"vnet"}),
		misroutes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "garnet_misroutes",
			Help:    "misrouting counter recorded at packet delivery.",
			Buckets: prometheus.LinearBuckets(0, 1, 8),
		}, []string{"vnet"}),
		linkUtilization: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "garnet_link_flits_total",
			Help: "Flits sent over a link, by router, port, and link kind (ext_in/ext_out/int).",
		}, []string{"router", "port", "kind"}),
		vcLoad: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "garnet_vc_active_ratio",
			Help: "Fraction of an OutputUnit's VCs currently ACTIVE, by router and port.",
		}, []string{"router", "port"}),
		trafficTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "garnet_traffic_packets_total",
			Help: "Packets injected, by source router, destination router, and vnet class.",
		}, []string{"src", "dest", "vnet_class"}),
		niCursors: make(map[string]*niCursor),
	}
	reg.MustRegister(
		c.packetsInjected, c.packetsReceived, c.flitsInjected, c.flitsReceived,
		c.networkLatency, c.queueingLatency, c.hops, c.dimReversals, c.misroutes,
		c.linkUtilization, c.vcLoad, c.trafficTotal,
	)
	return c
}

// vnetLabel renders a vnet index as a label value. vnet indices are
// small and dense (one per configured virtual network), so decimal text
// rather than a class name is precise enough and avoids a dependency on
// any vnet-naming convention the caller might not have.
func vnetLabel(vnet int) string {
	return strconv.Itoa(vnet)
}

// ObserveNI samples a NetworkInterface's cumulative counters under label
// (typically its node ID), recording only what's newly appeared in the
// growing latency/hop/dr/misrouting slices since the last call for that
// label.
func (c *Collector) ObserveNI(label string, vnet int, s NIStats) {
	if c == nil {
		return
	}
	v := vnetLabel(vnet)
	cur, ok := c.niCursors[label]
	if !ok {
		cur = &niCursor{}
		c.niCursors[label] = cur
	}
	c.packetsInjected.WithLabelValues(v).Add(float64(s.PacketsInjected - cur.packetsInjected))
	c.packetsReceived.WithLabelValues(v).Add(float64(s.PacketsReceived - cur.packetsReceived))
	c.flitsInjected.WithLabelValues(v).Add(float64(s.FlitsInjected - cur.flitsInjected))
	c.flitsReceived.WithLabelValues(v).Add(float64(s.FlitsReceived - cur.flitsReceived))
	cur.packetsInjected, cur.packetsReceived = s.PacketsInjected, s.PacketsReceived
	cur.flitsInjected, cur.flitsReceived = s.FlitsInjected, s.FlitsReceived

	for _, x := range s.NetworkLatencies[cur.latencies:] {
		c.networkLatency.WithLabelValues(v).Observe(float64(x))
	}
	cur.latencies = len(s.NetworkLatencies)
	for _, x := range s.QueueingLatencies[cur.queueing:] {
		c.queueingLatency.WithLabelValues(v).Observe(float64(x))
	}
	cur.queueing = len(s.QueueingLatencies)
	for _, x := range s.Hops[cur.hops:] {
		c.hops.WithLabelValues(v).Observe(float64(x))
	}
	cur.hops = len(s.Hops)
	for _, x := range s.DR[cur.dr:] {
		c.dimReversals.WithLabelValues(v).Observe(float64(x))
	}
	cur.dr = len(s.DR)
	for _, x := range s.Misrouting[cur.misrouting:] {
		c.misroutes.WithLabelValues(v).Observe(float64(x))
	}
	cur.misrouting = len(s.Misrouting)
}

// RecordTraffic tallies one packet's origin/destination/vnet-class for
// the src/dest traffic-distribution matrix.
func (c *Collector) RecordTraffic(srcRouter, destRouter int, vnetClass string) {
	if c == nil {
		return
	}
	c.trafficTotal.WithLabelValues(strconv.Itoa(srcRouter), strconv.Itoa(destRouter), vnetClass).Inc()
}

// linkSent is the narrow capability a NetworkLink/CreditLink satisfies
// (their Sent method), consulted read-only to derive utilization deltas.
type linkSent interface {
	Sent() int
}

// linkCursor tracks how many of a link's cumulative Sent() flits have
// already been counted toward the link-utilization counter.
type linkCursor struct {
	lastSent int
}

// RecordLinkUtilization samples l's cumulative flit count for (routerID,
// port, kind) — kind is "ext_in", "ext_out", or "int" — adding only the
// delta since the previous sample for that key.
func (c *Collector) RecordLinkUtilization(routerID int, port, kind string, l linkSent, cursors map[string]*linkCursor) {
	if c == nil {
		return
	}
	key := strconv.Itoa(routerID) + "/" + port + "/" + kind
	cur, ok := cursors[key]
	if !ok {
		cur = &linkCursor{}
		cursors[key] = cur
	}
	total := l.Sent()
	delta := total - cur.lastSent
	if delta <= 0 {
		return
	}
	cur.lastSent = total
	c.linkUtilization.WithLabelValues(strconv.Itoa(routerID), port, kind).Add(float64(delta))
}

// NewLinkCursors returns an empty cursor set for RecordLinkUtilization.
func NewLinkCursors() map[string]*linkCursor {
	return make(map[string]*linkCursor)
}

// ObserveVCLoad records r's per-port ACTIVE-VC ratio at this sample.
func (c *Collector) ObserveVCLoad(routerID int, r *router.Router) {
	if c == nil {
		return
	}
	rid := strconv.Itoa(routerID)
	for _, p := range r.Ports {
		out := r.Outputs[p]
		if out == nil || out.NumVCs == 0 {
			continue
		}
		active := 0
		for i := 0; i < out.NumVCs; i++ {
			if out.State(i) == vc.ACTIVE {
				active++
			}
		}
		c.vcLoad.WithLabelValues(rid, p.String()).Set(float64(active) / float64(out.NumVCs))
	}
}
