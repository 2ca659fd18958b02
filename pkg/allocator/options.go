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

// Package allocator is the shared frame spec.md §4.9 describes: a
// monotonic clock driving cooperative timeouts, a plain configuration
// struct, progress logging, a multi-seed driver, solution decoding, and a
// validity check run against every hard constraint before a solution is
// emitted. It dispatches to whichever constraint-based algorithm package
// (paretomcs, gia, hashenum, pbopt) or reference seeder
// (seeder) the selected Options.Algorithm names.
package allocator

import "github.com/vmcwm/allocator/pkg/encoder"

// Algorithm selects which search strategy Run drives. Names match the
// single-letter CLI selector values of spec.md §6 ("a" key) spelled out.
type Algorithm string

const (
	AlgoLocalSearch          Algorithm = "LS"
	AlgoMCS                  Algorithm = "MCS"
	AlgoPBO                  Algorithm = "PBO"
	AlgoFFD                  Algorithm = "FFD"
	AlgoBFD                  Algorithm = "BFD"
	AlgoDifferentialEvo      Algorithm = "DE"
	AlgoGeneticAlgorithm     Algorithm = "GA"
	AlgoMOEAD                Algorithm = "MOEAD"
	AlgoBBO                  Algorithm = "BBO"
	AlgoGGA                  Algorithm = "GGA"
	AlgoGIA                  Algorithm = "GIA"
	AlgoHashEnumeration      Algorithm = "HE"
	AlgoParetoCLD            Algorithm = "PCLD"
	AlgoParetoLBX            Algorithm = "PLBX"
)

// ReductionAlgorithm selects the bin-packer the heuristic reducer seeds
// with (spec.md §6 "ra" key).
type ReductionAlgorithm string

const (
	ReductionFFD ReductionAlgorithm = "FFD"
	ReductionBFD ReductionAlgorithm = "BFD"
)

// StratificationStrategy selects stratify.Strategy by its CLI name
// (spec.md §6 "st" key).
type StratificationStrategy string

const (
	StratificationMerged StratificationStrategy = "MERGED"
	StratificationSplit  StratificationStrategy = "SPLIT"
)

// Options is the plain configuration struct reifying spec.md §6's CLI
// table -- never a mutable builder, per the REDESIGN FLAGS' "plain config
// struct over mutable builder" decision.
type Options struct {
	Algorithm Algorithm // a

	TimeoutSeconds int // t

	MigrationPercentile float64 // m, default 1.0

	EnableReduction    bool               // r
	ReductionAlgorithm ReductionAlgorithm // ra, default BFD

	SymmetryBreaking bool // s

	IgnorePlatform          bool // ip
	IgnoreAntiColocation    bool // ic
	IgnoreDenominatorsEval  bool // ide
	IgnoreDenominatorsAlloc bool // ida

	HashFunctions       bool // h
	PathDiversification bool // pd

	Stratification     StratificationStrategy // st
	LiteralWeightRatio float64                 // lwr
	Partitions         int                     // pn

	MultiSeed int // ms

	DumpModel           bool // dm
	DumpPopulation      bool // dp
	ComparePopulations  bool // cp
	AnalyzePopulation   bool // ap
	LogProgress         bool // lp
	PrintAnalysis       bool // pa
}

// EncoderOptions projects the subset of Options that affects encoder.Build
// (spec.md §6's s/ip/ic/ida flags) into encoder.Options; package encoder
// cannot import allocator (which already imports encoder), so this
// conversion lives on the allocator side of the boundary.
func (o Options) EncoderOptions() encoder.Options {
	return encoder.Options{
		SymmetryBreaking:        o.SymmetryBreaking,
		IgnorePlatform:          o.IgnorePlatform,
		IgnoreAntiColocation:    o.IgnoreAntiColocation,
		IgnoreDenominatorsAlloc: o.IgnoreDenominatorsAlloc,
	}
}

// DefaultOptions returns the CLI's documented defaults: PCLD, full
// migration percentile, BFD reduction.
func DefaultOptions() Options {
	return Options{
		Algorithm:          AlgoParetoCLD,
		MigrationPercentile: 1.0,
		ReductionAlgorithm: ReductionBFD,
	}
}
