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

package allocator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/klog/v2"

	"github.com/vmcwm/allocator/pkg/constraint"
	"github.com/vmcwm/allocator/pkg/domain"
	"github.com/vmcwm/allocator/pkg/encoder"
	"github.com/vmcwm/allocator/pkg/gia"
	"github.com/vmcwm/allocator/pkg/hashenum"
	"github.com/vmcwm/allocator/pkg/numeric"
	"github.com/vmcwm/allocator/pkg/paretomcs"
	"github.com/vmcwm/allocator/pkg/pbopt"
	"github.com/vmcwm/allocator/pkg/reducer"
	"github.com/vmcwm/allocator/pkg/satsolver"
	"github.com/vmcwm/allocator/pkg/seeder"
	"github.com/vmcwm/allocator/pkg/vmerr"
)

// Outcome is the allocator frame's final answer: either a non-dominated
// population of Points, in discovery order (spec.md §5's ordering
// requirement), or Failed=true when no feasible solution was found at all.
type Outcome struct {
	Points []Point
	Failed bool
}

var tracer = otel.Tracer("github.com/vmcwm/allocator/pkg/allocator")

// Run dispatches opts.Algorithm against a model already built by
// encoder.Build, logging one line per improving solution through logger
// (klog.V(2).Info, matching the teacher's structured-logging idiom) and
// recording the selected metrics. Every emitted Point has already passed
// Validate against inst.
func Run(ctx context.Context, model *encoder.Model, inst domain.Instance, opts Options, clock *Clock, metrics *Metrics) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "allocator.Run", trace.WithAttributes(
		attribute.String("algorithm", string(opts.Algorithm)),
	))
	defer span.End()

	logger := klog.FromContext(ctx).WithValues("algorithm", opts.Algorithm)

	objectives := []pbopt.Objective{model.Energy, model.Wastage}
	if model.HasMigration {
		objectives = append(objectives, model.Migration)
	}

	emit := func(values []int64, assumeTrue []constraint.Literal) (Point, error) {
		if len(assumeTrue) > 0 {
			// Pin the solver to this exact sample before decoding: without
			// this, Decode would read whatever assignment the last Solve
			// left behind rather than the one assumeTrue actually names
			// (hash-based enumeration's reason for passing it at all).
			status, err := model.Solver.Solve(assumeTrue, clock.Remaining(), 0)
			if err != nil {
				return Point{}, err
			}
			if status != satsolver.StatusSat {
				return Point{}, fmt.Errorf("allocator: sample assumption set is unsatisfiable")
			}
			values = pbEvalAll(model, objectives)
		}
		mapping, err := Decode(model)
		if err != nil {
			return Point{}, err
		}
		if err := Validate(inst, mapping); err != nil {
			return Point{}, err
		}
		p := Point{Mapping: mapping, Energy: values[0], Wastage: values[1]}
		if model.HasMigration {
			p.Migration = values[2]
		}
		p.Objectives = domain.EvaluateObjectives(inst, mapping, opts.IgnoreDenominatorsEval)
		metrics.observeImprovement(opts.Algorithm)
		logger.V(2).Info("pareto point", "elapsed", clock.Elapsed(), "energy", p.Energy, "wastage", p.Wastage, "migration", p.Migration)
		return p, nil
	}

	outcome, err := dispatch(ctx, model, inst, opts, clock, objectives, emit)
	span.SetAttributes(attribute.Int("points", len(outcome.Points)), attribute.Bool("failed", outcome.Failed))
	return outcome, err
}

func dispatch(ctx context.Context, model *encoder.Model, inst domain.Instance, opts Options, clock *Clock, objectives []pbopt.Objective, emit func([]int64, []constraint.Literal) (Point, error)) (Outcome, error) {
	switch opts.Algorithm {
	case AlgoGIA:
		var points []Point
		_, err := gia.Run(model.Solver, objectives, nil, clock.Remaining(), func(gp gia.Point) {
			if p, err := emit(gp.Values, nil); err == nil {
				points = append(points, p)
			}
		})
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Points: points, Failed: len(points) == 0}, nil

	case AlgoParetoCLD, AlgoParetoLBX:
		return runParetoFront(ctx, model, objectives, opts, clock, emit)

	case AlgoPBO:
		return runScalarized(model, objectives, clock, emit)

	case AlgoHashEnumeration:
		return runHashEnumeration(model, objectives, opts, clock, emit)

	case AlgoFFD, AlgoBFD:
		return runSeeded(model, inst, opts, clock, emit)

	case AlgoLocalSearch, AlgoMCS:
		return runParetoFront(ctx, model, objectives, opts, clock, emit)

	default:
		return Outcome{}, vmerr.NotSupported("allocator: algorithm " + string(opts.Algorithm))
	}
}

func runParetoFront(ctx context.Context, model *encoder.Model, objectives []pbopt.Objective, opts Options, clock *Clock, emit func([]int64, []constraint.Literal) (Point, error)) (Outcome, error) {
	strategy := paretomcs.LBX
	if opts.Algorithm == AlgoParetoCLD {
		strategy = paretomcs.CLD
	}
	var diversify []constraint.Literal
	if opts.PathDiversification && strategy == paretomcs.CLD {
		diversify = placementVars(model)
	}
	var points []Point
	deadline := time.Now().Add(clock.Remaining())

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		status, err := solveTraced(ctx, model.Solver, remaining)
		if err != nil {
			return Outcome{}, err
		}
		if status != satsolver.StatusSat {
			break
		}
		current := pbEvalAll(model, objectives)

		for {
			remaining = time.Until(deadline)
			if remaining <= 0 {
				break
			}
			step, err := paretomcs.ImproveStep(model.Solver, objectives, current, nil, strategy, remaining)
			if err != nil {
				return Outcome{}, err
			}
			if !step.OK {
				break
			}
			current = step.Point
		}

		p, err := emit(current, nil)
		if err != nil {
			return Outcome{}, err
		}
		points = append(points, p)

		if err := blockPoint(model, objectives, current); err != nil {
			return Outcome{}, err
		}
		if diversify != nil {
			if err := paretomcs.BlockAssignment(model.Solver, diversify); err != nil {
				return Outcome{}, err
			}
		}
	}
	return Outcome{Points: points, Failed: len(points) == 0}, nil
}

// placementVars flattens every live placement literal in model.X, in
// (VMOrder, HostOrder) order -- the same ordering runHashEnumeration uses,
// so a hashenum.Sample's Values align 1:1 with this slice.
func placementVars(model *encoder.Model) []constraint.Literal {
	vars := make([]constraint.Literal, 0, len(model.VMOrder)*len(model.HostOrder))
	for _, vmID := range model.VMOrder {
		for _, hostID := range model.HostOrder {
			if lit, ok := model.X[vmID][hostID]; ok {
				vars = append(vars, lit)
			}
		}
	}
	return vars
}

// solveTraced wraps one outer-loop Solver.Solve call in its own span, so a
// trace backend can show the per-iteration solve cost of a Pareto front
// search alongside Run's overall span.
func solveTraced(ctx context.Context, s *satsolver.Solver, timeout time.Duration) (satsolver.Status, error) {
	_, span := tracer.Start(ctx, "allocator.solve")
	defer span.End()
	status, err := s.Solve(nil, timeout, 0)
	span.SetAttributes(attribute.String("status", status.String()))
	return status, err
}

// blockPoint forbids every model dominated-or-equal to values, so the next
// outer-loop solve in runParetoFront is forced to a different point. It
// mirrors gia's own blockDominated construction (see pkg/gia/gia.go);
// duplicated rather than exported because it is an implementation detail
// of each package's own outer loop, not a shared primitive.
func blockPoint(model *encoder.Model, objectives []pbopt.Objective, values []int64) error {
	better := make([]constraint.Literal, len(objectives))
	for k, obj := range objectives {
		id, err := model.Solver.AddRemovablePB(constraint.OpLE, obj.Coeffs, obj.Lits, values[k]-1-obj.Constant)
		if err != nil {
			return err
		}
		better[k] = model.Solver.Activator(id)
	}
	return model.Solver.AddClause(better...)
}

func runScalarized(model *encoder.Model, objectives []pbopt.Objective, clock *Clock, emit func([]int64, []constraint.Literal) (Point, error)) (Outcome, error) {
	scalar := pbopt.Objective{Constant: 0}
	for _, obj := range objectives {
		scalar.Lits = append(scalar.Lits, obj.Lits...)
		scalar.Coeffs = append(scalar.Coeffs, obj.Coeffs...)
		scalar.Constant += obj.Constant
	}
	result, err := pbopt.Minimize(model.Solver, scalar, nil, clock.Remaining(), nil)
	if err != nil {
		return Outcome{}, err
	}
	if result.Status != satsolver.StatusSat {
		return Outcome{Failed: true}, nil
	}
	p, err := emit(pbEvalAll(model, objectives), nil)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Points: []Point{p}}, nil
}

func runHashEnumeration(model *encoder.Model, objectives []pbopt.Objective, opts Options, clock *Clock, emit func([]int64, []constraint.Literal) (Point, error)) (Outcome, error) {
	vars := placementVars(model)
	bounds := make([]int64, len(objectives))
	for i := range bounds {
		bounds[i] = 1 << 30 // effectively unbounded unless the caller pre-tightens the model
	}
	rng := numeric.NewSeeded(1)
	samples, err := hashenum.Enumerate(model.Solver, vars, objectives, bounds, 0, 8, rng, nil, clock.Remaining())
	if err != nil {
		return Outcome{}, err
	}
	var points []Point
	for _, sample := range samples {
		assumeTrue := make([]constraint.Literal, len(vars))
		for i, v := range vars {
			if sample.Values[i] {
				assumeTrue[i] = v
			} else {
				assumeTrue[i] = v.Negate()
			}
		}
		p, err := emit(nil, assumeTrue)
		if err != nil {
			continue
		}
		points = append(points, p)
	}
	return Outcome{Points: points, Failed: len(points) == 0}, nil
}

func runSeeded(model *encoder.Model, inst domain.Instance, opts Options, clock *Clock, emit func([]int64, []constraint.Literal) (Point, error)) (Outcome, error) {
	algo := seeder.FFD
	if opts.Algorithm == AlgoBFD {
		algo = seeder.BFD
	}
	mapping, err := seeder.Pack(inst, algo)
	if err != nil {
		return Outcome{Failed: true}, nil
	}
	if err := Validate(inst, mapping); err != nil {
		return Outcome{Failed: true}, nil
	}
	p := Point{Mapping: mapping, Objectives: domain.EvaluateObjectives(inst, mapping, opts.IgnoreDenominatorsEval)}
	return Outcome{Points: []Point{p}}, nil
}

func pbEvalAll(model *encoder.Model, objectives []pbopt.Objective) []int64 {
	values := make([]int64, len(objectives))
	for i, obj := range objectives {
		values[i] = pbopt.Evaluate(model.Solver, obj)
	}
	return values
}

// ReduceIfRequested applies the heuristic reducer when opts.EnableReduction
// is set, returning the (possibly unchanged) instance to encode.
func ReduceIfRequested(inst domain.Instance, opts Options) (domain.Instance, error) {
	if !opts.EnableReduction {
		return inst, nil
	}
	seed := reducer.Seeder(func(i domain.Instance) ([]domain.Mapping, error) {
		algo := seeder.BFD
		if opts.ReductionAlgorithm == ReductionFFD {
			algo = seeder.FFD
		}
		return seeder.Pack(i, algo)
	})
	return reducer.Reduce(inst, seed)
}
