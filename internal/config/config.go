// Package config defines the simulation's tunable network and browser
// parameters, along with an optional HCL file format for naming and
// switching between several such parameter sets ("profiles") — for example
// "fast-3g" versus "cable" — without recompiling.
package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/pwwpche/lighthouse/internal/scheduler"
)

// Options is an alias for the scheduler's configuration struct: the
// scheduler owns the canonical field set and defaults, this package only
// adds a way to name and load them from a file.
type Options = scheduler.Options

// DefaultOptions returns the default simulated network conditions.
func DefaultOptions() Options {
	return scheduler.DefaultOptions()
}

// profileFile is the root HCL schema: zero or more named `profile` blocks.
type profileFile struct {
	Profiles []profileBlock `hcl:"profile,block"`
}

// profileBlock is a single named set of network conditions. Any field left
// unset in the HCL file falls back to DefaultOptions.
type profileBlock struct {
	Name                      string   `hcl:"name,label"`
	RTT                       *float64 `hcl:"rtt,optional"`
	Throughput                *float64 `hcl:"throughput,optional"`
	DefaultResponseTime       *float64 `hcl:"default_response_time,optional"`
	MaximumConcurrentRequests *int     `hcl:"maximum_concurrent_requests,optional"`
}

func (b profileBlock) toOptions() Options {
	opts := DefaultOptions()
	if b.RTT != nil {
		opts.RTT = *b.RTT
	}
	if b.Throughput != nil {
		opts.Throughput = *b.Throughput
	}
	if b.DefaultResponseTime != nil {
		opts.DefaultResponseTime = *b.DefaultResponseTime
	}
	if b.MaximumConcurrentRequests != nil {
		opts.MaximumConcurrentRequests = *b.MaximumConcurrentRequests
	}
	return opts
}

// LoadProfiles parses an HCL file of `profile "name" { ... }` blocks and
// returns the named Options they describe. A profile that sets no
// attributes is equivalent to DefaultOptions under a name.
func LoadProfiles(path string) (map[string]Options, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("config: parsing %q: %w", path, diags)
	}

	var parsed profileFile
	if diags := gohcl.DecodeBody(f.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("config: decoding %q: %w", path, diags)
	}

	profiles := make(map[string]Options, len(parsed.Profiles))
	for _, block := range parsed.Profiles {
		if _, exists := profiles[block.Name]; exists {
			return nil, fmt.Errorf("config: duplicate profile name %q in %q", block.Name, path)
		}
		profiles[block.Name] = block.toOptions()
	}
	return profiles, nil
}
