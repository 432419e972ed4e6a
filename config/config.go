// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package config defines the Network's construction-time parameters: a
// JSON-serializable Config struct, flag-based CLI binding for
// cmd/garnetsim, and validation that turns a malformed configuration
// into a simerr.ConfigurationError before any router is built.
package config

import (
	"encoding/json"
	"flag"
	"os"

	"garnet/simerr"
	"garnet/vc"
)

// Config bundles every recognized configuration option for a garnet
// Network.
type Config struct {
	NumDim int `json:"num_dim"`
	NumAry int `json:"num_ary"`

	// NumRows/NumCols override NumDim/NumAry to build a mesh reference
	// topology instead of a k-ary n-cube torus.
	NumRows int `json:"num_rows,omitempty"`
	NumCols int `json:"num_cols,omitempty"`

	NIFlitSize      int `json:"ni_flit_size"`
	BuffersPerData  int `json:"buffers_per_data_vc"`
	BuffersPerCtrl  int `json:"buffers_per_ctrl_vc"`
	VCsAdaptive     int `json:"vcs_adaptive"`
	NumVnets        int `json:"num_vnets"`

	RoutingAlgorithm string `json:"routing_algorithm"`
	PickAlgorithm    string `json:"pick_algorithm"`

	DrLim         int `json:"dr_lim"`
	MisroutingLim int `json:"misrouting_lim"`

	ThrottlingDegree int `json:"throttling_degree"`

	EnableFaultModel bool   `json:"enable_fault_model"`
	FaultModelRef    string `json:"fault_model_ref,omitempty"`

	Seed int64 `json:"seed"`
}

// IsMesh reports whether this Config describes a mesh reference topology
// rather than a k-ary n-cube torus.
func (c Config) IsMesh() bool { return c.NumRows > 0 && c.NumCols > 0 }

// VcsPerVnet returns the number of VCs allotted per vnet: VCsAdaptive when
// set, otherwise BuffersPerData, mirroring the fallback Validate checks
// against MinVCsPerVnet.
func (c Config) VcsPerVnet() int {
	if c.VCsAdaptive > 0 {
		return c.VCsAdaptive
	}
	return c.BuffersPerData
}

// Algorithm parses RoutingAlgorithm into a vc.Algorithm.
func (c Config) Algorithm() (vc.Algorithm, error) {
	switch c.RoutingAlgorithm {
	case "TABLE":
		return vc.TABLE, nil
	case "XY":
		return vc.XY, nil
	case "DETERMINISTIC":
		return vc.DETERMINISTIC, nil
	case "STATIC_ADAPTIVE":
		return vc.STATIC_ADAPTIVE, nil
	case "DYNAMIC_ADAPTIVE":
		return vc.DYNAMIC_ADAPTIVE, nil
	default:
		return 0, simerr.Config("unrecognized routing_algorithm " + c.RoutingAlgorithm)
	}
}

// PickAlgo parses PickAlgorithm into a vc.PickAlgorithm.
func (c Config) PickAlgo() (vc.PickAlgorithm, error) {
	switch c.PickAlgorithm {
	case "", "MINIMUM_CONGESTION":
		return vc.MINIMUM_CONGESTION, nil
	case "STRAIGHT_LINES":
		return vc.STRAIGHT_LINES, nil
	case "RANDOM":
		return vc.RANDOM, nil
	default:
		return 0, simerr.Config("unrecognized pick_algorithm " + c.PickAlgorithm)
	}
}

// Validate reports the first fatal configuration problem it finds as a
// simerr.ConfigurationError: missing topology dimensions, too few VCs
// for the chosen routing algorithm, an unrecognized algorithm name, and
// the like. With a mesh override it checks only that num_rows and
// num_cols are positive; they are not compared with each other or with
// num_dim/num_ary here.
func (c Config) Validate() error {
	if c.IsMesh() {
		if c.NumRows <= 0 || c.NumCols <= 0 {
			return simerr.Config("mesh override requires positive num_rows and num_cols")
		}
	} else {
		if c.NumDim <= 0 {
			return simerr.Config("num_dim must be positive")
		}
		if c.NumAry <= 1 {
			return simerr.Config("num_ary must be at least 2")
		}
	}
	if c.NumVnets <= 0 {
		return simerr.Configf("num_vnets must be positive, got %d", c.NumVnets)
	}
	if c.BuffersPerData <= 0 || c.BuffersPerCtrl <= 0 {
		return simerr.Config("buffers_per_data_vc and buffers_per_ctrl_vc must be positive")
	}

	algo, err := c.Algorithm()
	if err != nil {
		return err
	}
	if _, err := c.PickAlgo(); err != nil {
		return err
	}
	if algo.IsAdaptive() && c.DrLim <= 0 {
		return simerr.Config("dr_lim must be positive for an adaptive routing_algorithm")
	}
	vcsPerVnet := c.VcsPerVnet()
	need := vc.MinVCsPerVnet(algo, c.DrLim)
	if vcsPerVnet < need {
		return simerr.Configf("routing_algorithm %s needs at least %d VCs per vnet, configured for %d", c.RoutingAlgorithm, need, vcsPerVnet)
	}
	if c.MisroutingLim < 0 {
		return simerr.Config("misrouting_lim must not be negative")
	}
	if c.ThrottlingDegree < 0 {
		return simerr.Config("throttling_degree must not be negative")
	}
	if c.EnableFaultModel && c.FaultModelRef == "" {
		return simerr.Config("enable_fault_model requires a fault_model_ref")
	}
	return nil
}

// FlagSet binds c's fields to flags registered on fs, with the same
// defaults a freshly zero-valued Config would otherwise need filled in
// by hand. Call fs.Parse, then Validate the populated Config.
func (c *Config) FlagSet(fs *flag.FlagSet) {
	fs.IntVar(&c.NumDim, "num-dim", 2, "number of dimensions in the k-ary n-cube")
	fs.IntVar(&c.NumAry, "num-ary", 4, "radix of each dimension in the k-ary n-cube")
	fs.IntVar(&c.NumRows, "num-rows", 0, "mesh override: row count (0 disables mesh mode)")
	fs.IntVar(&c.NumCols, "num-cols", 0, "mesh override: column count (0 disables mesh mode)")
	fs.IntVar(&c.NIFlitSize, "ni-flit-size", 128, "flit size in bits")
	fs.IntVar(&c.BuffersPerData, "buffers-per-data-vc", 4, "buffer depth for data-vnet VCs")
	fs.IntVar(&c.BuffersPerCtrl, "buffers-per-ctrl-vc", 2, "buffer depth for control-vnet VCs")
	fs.IntVar(&c.VCsAdaptive, "vcs-adaptive", 0, "VC count dedicated to adaptive classes (0: derive from buffers-per-data-vc)")
	fs.IntVar(&c.NumVnets, "num-vnets", 2, "number of virtual networks")
	fs.StringVar(&c.RoutingAlgorithm, "routing-algorithm", "DETERMINISTIC", "TABLE, XY, DETERMINISTIC, STATIC_ADAPTIVE, or DYNAMIC_ADAPTIVE")
	fs.StringVar(&c.PickAlgorithm, "pick-algorithm", "MINIMUM_CONGESTION", "MINIMUM_CONGESTION, STRAIGHT_LINES, or RANDOM")
	fs.IntVar(&c.DrLim, "dr-lim", 1, "max dimension-reversals before forced deterministic routing")
	fs.IntVar(&c.MisroutingLim, "misrouting-lim", 0, "max misrouting hops per packet")
	fs.IntVar(&c.ThrottlingDegree, "throttling-degree", 0, "cycles between injected messages per NetworkInterface (0 disables throttling)")
	fs.BoolVar(&c.EnableFaultModel, "enable-fault-model", false, "enable TTL-based port/link fault injection")
	fs.StringVar(&c.FaultModelRef, "fault-model-ref", "", "fault model reference; must be non-empty when enable-fault-model is set (its value is not otherwise read)")
	fs.Int64Var(&c.Seed, "seed", 1, "seed for the centralized RNG")
}

// Load reads a Config from a JSON file at path.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, simerr.Configf("reading config file %s: %w", path, err)
	}
	var c Config
	if err := json.Unmarshal(b, &c); err != nil {
		return Config{}, simerr.Configf("parsing config file %s: %w", path, err)
	}
	return c, nil
}

// Write serializes c as indented JSON to path, mirroring the layout a
// human would hand-edit.
func Write(path string, c Config) error {
	b, err := json.MarshalIndent(c, "", "\t")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}
