// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Program garnetsim loads a garnet Config, builds a Network, drives it
// for a fixed number of cycles with synthetic traffic, and serves a
// /debug/stats and /debug/topology HTTP endpoint while it runs.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"garnet/config"
	"garnet/internal/randpool"
	"garnet/logger"
	"garnet/metrics"
	"garnet/network"
	"garnet/ni"
	"garnet/topology"
)

var (
	configPath    = flag.String("c", "", "config file path (JSON); overrides every flag below when set")
	cycles        = flag.Int("cycles", 1000, "number of cycles to simulate")
	pattern       = flag.String("pattern", "uniform", "synthetic traffic pattern: uniform, bit-complement, or transpose")
	injectPerNode = flag.Int("inject-per-node", 20, "number of packets each node injects over the run")
	flitsPerPkt   = flag.Int("flits-per-packet", 4, "flits per synthetic packet")
	httpAddr      = flag.String("http", ":8911", "address to serve /debug/stats and /debug/topology on; empty disables the server")
	statsCron     = flag.String("stats-cron", "@every 10s", "cron schedule for periodic stats log flushes")

	cliConfig config.Config
)

func init() {
	cliConfig.FlagSet(flag.CommandLine)
}

func main() {
	flag.Parse()

	zl := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
	logf := logger.Zerolog(zl)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	runID := uuid.New().String()
	logf("garnetsim: starting run %s, %d cycles, pattern=%s", runID, *cycles, *pattern)

	net, err := network.Build(cfg, logf)
	if err != nil {
		log.Fatalf("building network: %v", err)
	}

	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)

	generateTraffic(net, cfg, *pattern, *injectPerNode, *flitsPerPkt)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	srv := startDebugServer(*httpAddr, net, reg, runID)
	defer srv.shutdown(ctx)

	flusher := startStatsFlusher(*statsCron, net, collector, logf)
	defer flusher.Stop()

	if err := net.Run(ctx, 0, *cycles); err != nil {
		log.Fatalf("run: %v", err)
	}
	flushStats(net, collector)
	logf("garnetsim: run %s complete", runID)
}

// loadConfig returns the Config from -c's JSON file if given, otherwise
// cliConfig as populated by flag.Parse from the flags cliConfig.FlagSet
// registered on flag.CommandLine in init, mirroring cmd/derper's -c
// versus ad hoc flags split.
func loadConfig() (config.Config, error) {
	cfg := cliConfig
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// generateTraffic enqueues injectPerNode synthetic packets on every
// node's vnet 0 queue, destination chosen by pattern. With a positive
// throttling_degree, each NI's throttle spreads these out over the cycles
// that follow; with throttling_degree 0 (the default) an NI injects its
// whole queue at its first tick.
func generateTraffic(net *network.Network, cfg config.Config, pattern string, injectPerNode, flitsPerPkt int) {
	rng := randpool.New(cfg.Seed + 1)
	ary, dim := cfg.NumAry, cfg.NumDim
	if cfg.IsMesh() {
		ary, dim = cfg.NumRows, 2
	}
	numNodes := len(net.Routers)
	for src := 0; src < numNodes; src++ {
		for i := 0; i < injectPerNode; i++ {
			dest := destinationFor(pattern, src, ary, dim, rng)
			if dest == src {
				continue
			}
			net.Inject(src, ni.Message{
				Vnet:       0,
				Dest:       topology.NewNodeSet(dest),
				DestRouter: dest,
				FlitCount:  flitsPerPkt,
			})
		}
	}
}

// destinationFor picks one packet's destination router id under the
// named pattern. uniform draws a node uniformly at random; bit-complement
// flips every digit to its radix-complement (ary-1-digit), the classic
// adversarial pattern for dimension-order routing; transpose swaps the
// first two dimensions' digits, a worst case for some adaptive schemes.
func destinationFor(pattern string, src, ary, dim int, rng *randpool.Pool) int {
	switch pattern {
	case "bit-complement":
		c := topology.Decode(src, ary, dim)
		for d := 0; d < dim; d++ {
			c = c.WithDigit(d, ary-1-c.Digits[d])
		}
		return c.Encode()
	case "transpose":
		if dim < 2 {
			return src
		}
		c := topology.Decode(src, ary, dim)
		c.Digits[0], c.Digits[1] = c.Digits[1], c.Digits[0]
		return c.Encode()
	default:
		numNodes := 1
		for i := 0; i < dim; i++ {
			numNodes *= ary
		}
		return rng.Intn(numNodes)
	}
}

type debugServer struct {
	httpSrv *http.Server
}

// startDebugServer serves /debug/stats (per-node ni.Stats as JSON),
// /debug/topology (router/port listing), and /debug/metrics (Prometheus
// exposition) over a gorilla/mux router, the same shape derp's own HTTP
// server uses.
func startDebugServer(addr string, net *network.Network, reg *prometheus.Registry, runID string) *debugServer {
	if addr == "" {
		return &debugServer{}
	}
	r := mux.NewRouter()
	r.Handle("/debug/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.HandleFunc("/debug/stats", func(w http.ResponseWriter, req *http.Request) {
		serveStats(w, net, runID)
	})
	r.HandleFunc("/debug/topology", func(w http.ResponseWriter, req *http.Request) {
		serveTopology(w, net)
	})
	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("debug server: %v", err)
		}
	}()
	return &debugServer{httpSrv: srv}
}

func (d *debugServer) shutdown(ctx context.Context) {
	if d.httpSrv != nil {
		d.httpSrv.Shutdown(ctx)
	}
}

func serveStats(w http.ResponseWriter, net *network.Network, runID string) {
	type snapshot struct {
		RunID string           `json:"run_id"`
		Nodes map[int]ni.Stats `json:"nodes"`
	}
	out := snapshot{RunID: runID, Nodes: make(map[int]ni.Stats, len(net.NIs))}
	for id, n := range net.NIs {
		out.Nodes[id] = n.Stats
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func serveTopology(w http.ResponseWriter, net *network.Network) {
	type routerInfo struct {
		ID    int      `json:"id"`
		Ports []string `json:"ports"`
	}
	out := make([]routerInfo, 0, len(net.Routers))
	for id, r := range net.Routers {
		ports := make([]string, 0, len(r.Ports))
		for _, p := range r.Ports {
			ports = append(ports, p.String())
		}
		out = append(out, routerInfo{ID: id, Ports: ports})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// startStatsFlusher samples every node's stats into collector on the
// given cron schedule, analogous to derp's own Cronjob-driven maintenance
// tasks.
func startStatsFlusher(spec string, net *network.Network, collector *metrics.Collector, logf logger.Logf) *cron.Cron {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		flushStats(net, collector)
		logf("garnetsim: stats flushed")
	})
	if err != nil {
		logf("garnetsim: invalid stats-cron schedule %q: %v", spec, err)
		return c
	}
	c.Start()
	return c
}

func flushStats(net *network.Network, collector *metrics.Collector) {
	for id, n := range net.NIs {
		collector.ObserveNI(fmt.Sprintf("%d", id), 0, metrics.NIStats{
			PacketsInjected:   n.Stats.PacketsInjected,
			PacketsReceived:   n.Stats.PacketsReceived,
			FlitsInjected:     n.Stats.FlitsInjected,
			FlitsReceived:     n.Stats.FlitsReceived,
			NetworkLatencies:  n.Stats.NetworkLatencies,
			QueueingLatencies: n.Stats.QueueingLatencies,
			Hops:              n.Stats.Hops,
			DR:                n.Stats.DR,
			Misrouting:        n.Stats.Misrouting,
		})
	}
}
