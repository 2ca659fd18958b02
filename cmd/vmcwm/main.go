/*
Copyright 2024 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Command vmcwm is the reference CLI for the allocation engine: it reads
// an instance from stdin (or a file), builds a PB model, dispatches to the
// requested algorithm, and writes the result in the engine's own output
// dialect. It is the one binary target in this module; everything it does
// beyond flag parsing and I/O plumbing lives in pkg/allocator and
// pkg/vmio.
package main

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"

	"github.com/vmcwm/allocator/pkg/allocator"
	"github.com/vmcwm/allocator/pkg/analysis"
	"github.com/vmcwm/allocator/pkg/encoder"
	"github.com/vmcwm/allocator/pkg/pbopt"
	"github.com/vmcwm/allocator/pkg/vmio"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// config mirrors allocator.Options plus the CLI-only knobs (input/output
// paths, metrics/tracing endpoints) pflag binds directly.
type config struct {
	opts allocator.Options

	input  string
	output string

	metricsAddr  string
	otlpEndpoint string
	exportOPB    string
	configPath   string

	fs *pflag.FlagSet
}

func newRootCmd() *cobra.Command {
	cfg := &config{opts: allocator.DefaultOptions()}

	cmd := &cobra.Command{
		Use:   "vmcwm",
		Short: "Solve a VM consolidation-with-migration instance as a pseudo-Boolean program.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	bindFlags(cmd.Flags(), cfg)
	cfg.fs = cmd.Flags()
	return cmd
}

// bindFlags reifies spec.md §6's CLI key table onto pflag long names.
func bindFlags(fs *pflag.FlagSet, cfg *config) {
	fs.StringVar(&cfg.input, "input", "-", "input instance file, or - for stdin")
	fs.StringVar(&cfg.output, "output", "-", "output file, or - for stdout")
	fs.StringVar(&cfg.metricsAddr, "metrics-addr", "", "address to serve /metrics on; empty disables it")
	fs.StringVar(&cfg.otlpEndpoint, "otlp-endpoint", "", "OTLP gRPC collector endpoint; empty disables tracing export")
	fs.StringVar(&cfg.exportOPB, "export-opb", "", "also write the encoded model as an OPB file to this path")
	fs.StringVar(&cfg.configPath, "config", "", "YAML or JSON file of Options defaults, overridden by any flag also given explicitly")

	fs.StringVar((*string)(&cfg.opts.Algorithm), "a", string(cfg.opts.Algorithm), "algorithm: LS, MCS, PBO, FFD, BFD, DE, GA, MOEAD, BBO, GGA, GIA, HE, PCLD, PLBX")
	fs.IntVar(&cfg.opts.TimeoutSeconds, "t", 0, "overall wall-clock timeout in seconds; 0 means unbounded")
	fs.Float64Var(&cfg.opts.MigrationPercentile, "m", cfg.opts.MigrationPercentile, "migration budget as a fraction of total host memory")
	fs.BoolVar(&cfg.opts.EnableReduction, "r", false, "enable heuristic host-set reduction before encoding")
	fs.StringVar((*string)(&cfg.opts.ReductionAlgorithm), "ra", string(cfg.opts.ReductionAlgorithm), "reduction bin-packer: FFD or BFD")
	fs.BoolVar(&cfg.opts.SymmetryBreaking, "s", false, "enable identical-host symmetry breaking")
	fs.BoolVar(&cfg.opts.IgnorePlatform, "ip", false, "ignore platform/affinity constraints")
	fs.BoolVar(&cfg.opts.IgnoreAntiColocation, "ic", false, "ignore anti-colocation constraints")
	fs.BoolVar(&cfg.opts.IgnoreDenominatorsEval, "ide", false, "ignore denominators when evaluating objectives")
	fs.BoolVar(&cfg.opts.IgnoreDenominatorsAlloc, "ida", false, "ignore denominators during allocation")
	fs.BoolVar(&cfg.opts.HashFunctions, "h", false, "enable hash-based enumeration sampling")
	fs.BoolVar(&cfg.opts.PathDiversification, "pd", false, "enable path diversification")
	fs.StringVar((*string)(&cfg.opts.Stratification), "st", string(cfg.opts.Stratification), "stratification strategy: MERGED or SPLIT")
	fs.Float64Var(&cfg.opts.LiteralWeightRatio, "lwr", 0, "literal weight ratio for stratification")
	fs.IntVar(&cfg.opts.Partitions, "pn", 0, "number of stratification partitions")
	fs.IntVar(&cfg.opts.MultiSeed, "ms", 1, "number of independent seeded runs")
	fs.BoolVar(&cfg.opts.DumpModel, "dm", false, "dump the encoded model")
	fs.BoolVar(&cfg.opts.DumpPopulation, "dp", false, "dump the evolutionary population, if applicable")
	fs.BoolVar(&cfg.opts.ComparePopulations, "cp", false, "compare populations across seeds")
	fs.BoolVar(&cfg.opts.AnalyzePopulation, "ap", false, "analyze the final population")
	fs.BoolVar(&cfg.opts.LogProgress, "lp", false, "log progress at V(2)")
	fs.BoolVar(&cfg.opts.PrintAnalysis, "pa", false, "print a closing analysis summary")
}

// fileConfig is the subset of Options a --config file may set. Fields
// absent from the file are simply not applied (a field present with a zero
// value is applied); a flag explicitly given on the command line always
// wins over either source.
type fileConfig struct {
	Algorithm           *string  `json:"algorithm,omitempty"`
	TimeoutSeconds      *int     `json:"timeoutSeconds,omitempty"`
	MigrationPercentile *float64 `json:"migrationPercentile,omitempty"`
	EnableReduction     *bool    `json:"enableReduction,omitempty"`
	ReductionAlgorithm  *string  `json:"reductionAlgorithm,omitempty"`
	SymmetryBreaking    *bool    `json:"symmetryBreaking,omitempty"`
	MultiSeed           *int     `json:"multiSeed,omitempty"`
}

// applyFileConfig reads a YAML (or JSON -- sigs.k8s.io/yaml accepts
// both) file of Options defaults and layers it under whatever the user
// already passed on the command line: a flag the user set explicitly
// (fs.Changed) is never overridden by the file.
func applyFileConfig(path string, fs *pflag.FlagSet, opts *allocator.Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("vmcwm: reading config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("vmcwm: parsing config: %w", err)
	}

	set := func(flag string, apply func()) {
		if !fs.Changed(flag) {
			apply()
		}
	}
	if fc.Algorithm != nil {
		set("a", func() { opts.Algorithm = allocator.Algorithm(*fc.Algorithm) })
	}
	if fc.TimeoutSeconds != nil {
		set("t", func() { opts.TimeoutSeconds = *fc.TimeoutSeconds })
	}
	if fc.MigrationPercentile != nil {
		set("m", func() { opts.MigrationPercentile = *fc.MigrationPercentile })
	}
	if fc.EnableReduction != nil {
		set("r", func() { opts.EnableReduction = *fc.EnableReduction })
	}
	if fc.ReductionAlgorithm != nil {
		set("ra", func() { opts.ReductionAlgorithm = allocator.ReductionAlgorithm(*fc.ReductionAlgorithm) })
	}
	if fc.SymmetryBreaking != nil {
		set("s", func() { opts.SymmetryBreaking = *fc.SymmetryBreaking })
	}
	if fc.MultiSeed != nil {
		set("ms", func() { opts.MultiSeed = *fc.MultiSeed })
	}
	return nil
}

func run(ctx context.Context, cfg *config) error {
	logger := klog.Background()
	ctx = klog.NewContext(ctx, logger)

	if cfg.configPath != "" {
		if err := applyFileConfig(cfg.configPath, cfg.fs, &cfg.opts); err != nil {
			return err
		}
	}

	shutdownTracing, err := setupTracing(ctx, cfg.otlpEndpoint)
	if err != nil {
		return fmt.Errorf("vmcwm: tracing setup: %w", err)
	}
	defer shutdownTracing(ctx)

	reg := prometheus.NewRegistry()
	metrics := allocator.NewMetrics(reg)
	if cfg.metricsAddr != "" {
		go serveMetrics(cfg.metricsAddr, reg, logger)
	}

	in, closeIn, err := openInput(cfg.input)
	if err != nil {
		return err
	}
	defer closeIn()

	out, closeOut, err := openOutput(cfg.output)
	if err != nil {
		return err
	}
	defer closeOut()

	inst, err := vmio.Parse(in, cfg.opts.MigrationPercentile)
	if err != nil {
		w := vmio.NewWriter(out)
		_ = w.Failure(err.Error())
		_ = w.Flush()
		return nil
	}

	inst, err = allocator.ReduceIfRequested(inst, cfg.opts)
	if err != nil {
		w := vmio.NewWriter(out)
		_ = w.Failure(err.Error())
		_ = w.Flush()
		return nil
	}

	model, err := encoder.Build(inst, cfg.opts.EncoderOptions())
	if err != nil {
		return fmt.Errorf("vmcwm: encoding instance: %w", err)
	}

	if cfg.exportOPB != "" {
		if err := exportOPB(cfg.exportOPB, model); err != nil {
			return err
		}
	}

	if cfg.opts.DumpModel {
		fmt.Fprintf(os.Stderr, "vmcwm: model has %d variables and %d constraints\n",
			model.Solver.VarCount(), len(model.Solver.Constraints()))
	}

	clock := allocator.NewClock(timeoutDuration(cfg.opts.TimeoutSeconds))

	var outcome allocator.Outcome
	var seeded []analysis.Seeded
	seeds := cfg.opts.MultiSeed
	if seeds < 1 {
		seeds = 1
	}
	for seed := 0; seed < seeds; seed++ {
		clock.Reset()
		outcome, err = allocator.Run(ctx, model, inst, cfg.opts, clock, metrics)
		if err != nil {
			return fmt.Errorf("vmcwm: running %s: %w", cfg.opts.Algorithm, err)
		}
		if cfg.opts.ComparePopulations {
			seeded = append(seeded, analysis.Seeded{Seed: seed, Front: outcome.Points})
			if cfg.opts.DumpPopulation {
				fmt.Fprintf(os.Stderr, "vmcwm: seed %d produced %d points\n", seed, len(outcome.Points))
			}
			continue
		}
		if !outcome.Failed {
			break
		}
	}

	if cfg.opts.ComparePopulations {
		if cfg.opts.PrintAnalysis {
			if err := analysis.WriteComparison(os.Stderr, seeded); err != nil {
				return err
			}
		}
		outcome = bestOf(seeded)
	}

	if cfg.opts.AnalyzePopulation && cfg.opts.PrintAnalysis {
		ranked := analysis.Rank(outcome.Points, analysis.DefaultWeights())
		if err := analysis.WriteSummary(os.Stderr, ranked); err != nil {
			return err
		}
	}

	w := vmio.NewWriter(out)
	if outcome.Failed {
		if err := w.Failure("no feasible solution found within the allotted time"); err != nil {
			return err
		}
	} else if err := w.Success(outcome.Points, model.HasMigration); err != nil {
		return err
	}
	return w.Flush()
}

// bestOf picks the seed whose front scores best under DefaultWeights,
// preferring any non-empty front over an empty one.
func bestOf(seeded []analysis.Seeded) allocator.Outcome {
	var best allocator.Outcome
	bestScore := math.Inf(1)
	found := false
	for _, s := range seeded {
		ranked := analysis.Rank(s.Front, analysis.DefaultWeights())
		if len(ranked) == 0 {
			continue
		}
		if !found || ranked[0].WeightedTotal < bestScore {
			best = allocator.Outcome{Points: s.Front}
			bestScore = ranked[0].WeightedTotal
			found = true
		}
	}
	if !found {
		return allocator.Outcome{Failed: true}
	}
	return best
}

func timeoutDuration(seconds int) time.Duration {
	if seconds <= 0 {
		return 365 * 24 * time.Hour
	}
	return time.Duration(seconds) * time.Second
}

func openInput(path string) (*os.File, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("vmcwm: opening input: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func openOutput(path string) (*os.File, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("vmcwm: opening output: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func exportOPB(path string, model *encoder.Model) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("vmcwm: opening opb export: %w", err)
	}
	defer f.Close()
	objectives := []pbopt.Objective{model.Energy, model.Wastage}
	if model.HasMigration {
		objectives = append(objectives, model.Migration)
	}
	return vmio.ExportOPB(f, model.Solver, objectives, false)
}

// setupTracing installs a global otel TracerProvider. With no endpoint
// configured it installs the no-op default and returns a no-op shutdown,
// so tracing is entirely optional for a bare local run.
func setupTracing(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger klog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	logger.Info("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error(err, "metrics server exited")
	}
}
