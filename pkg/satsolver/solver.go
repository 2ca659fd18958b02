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

// Package satsolver wraps github.com/Prior-IT/gophersat/solver behind
// constraint.Aggregator, adding the removable-constraint layer (see
// removable.go) that gophersat itself has no native support for.
package satsolver

import (
	"fmt"
	"math/big"
	"time"

	gophersat "github.com/Prior-IT/gophersat/solver"
	"github.com/vmcwm/allocator/pkg/constraint"
	"github.com/vmcwm/allocator/pkg/vmerr"
)

// Status is the outcome of a Solve call.
type Status int

const (
	StatusUnknown Status = iota
	StatusSat
	StatusUnsat
)

func (s Status) String() string {
	switch s {
	case StatusSat:
		return "sat"
	case StatusUnsat:
		return "unsat"
	default:
		return "unknown"
	}
}

// ConstraintID identifies a previously added removable constraint. IDs are
// handed out in strictly increasing order (see AddRemovable* in
// removable.go), so callers may use plain integer comparison to recover
// insertion order without keeping a side index.
type ConstraintID int64

// pbTerm is one physical pseudo-Boolean constraint queued for compilation.
// A single logical constraint (AddRemovablePB with OpEQ, a removable
// conjunction, ...) may expand to more than one pbTerm sharing an
// activator.
type pbTerm struct {
	lits      []constraint.Literal
	coeffs    []int64 // len(coeffs) == len(lits); nil means implicit all-1
	rhs       int64   // GtEq rhs: sum(coeffs[i]*lits[i]) >= rhs
	activator constraint.Literal
}

// Solver is the removable-constraint PB-SAT aggregator. It is not safe for
// concurrent use; callers needing concurrent search (Pareto-MCS workers,
// the GIA driver) each own a private Solver built from the same Encoder
// output.
type Solver struct {
	nextVar int32
	nextID  int64

	hard  []pbTerm
	byID  map[ConstraintID][]pbTerm
	order []ConstraintID // insertion order, for deterministic rebuilds
	dead  map[ConstraintID]bool

	lastModel []bool
}

// New returns an empty Solver.
func New() *Solver {
	return &Solver{
		byID: make(map[ConstraintID][]pbTerm),
		dead: make(map[ConstraintID]bool),
	}
}

var _ constraint.Aggregator = (*Solver)(nil)

// NewVar allocates a fresh Boolean variable.
func (s *Solver) NewVar() constraint.Literal {
	s.nextVar++
	return constraint.Literal(s.nextVar)
}

// AddClause asserts the disjunction of lits as a hard (non-removable)
// constraint: sum(lits) >= 1 with implicit unit coefficients.
func (s *Solver) AddClause(lits ...constraint.Literal) error {
	if len(lits) == 0 {
		return fmt.Errorf("satsolver: empty clause")
	}
	s.hard = append(s.hard, pbTerm{lits: append([]constraint.Literal(nil), lits...), rhs: 1})
	return nil
}

// AddCardinality asserts op(sum(lits), k) as a hard constraint.
func (s *Solver) AddCardinality(op constraint.Op, lits []constraint.Literal, k int) error {
	coeffs := make([]int64, len(lits))
	for i := range coeffs {
		coeffs[i] = 1
	}
	return s.AddPB(op, coeffs, lits, int64(k))
}

// AddPB asserts op(sum(coeffs[i]*lits[i]), rhs) as a hard constraint,
// expanding OpEQ into a >= and a <= half and OpLT/OpGT into their
// non-strict equivalents.
func (s *Solver) AddPB(op constraint.Op, coeffs []int64, lits []constraint.Literal, rhs int64) error {
	if len(coeffs) != len(lits) {
		return fmt.Errorf("satsolver: %d coeffs for %d literals", len(coeffs), len(lits))
	}
	terms, err := expandOp(op, coeffs, lits, rhs, 0)
	if err != nil {
		return err
	}
	s.hard = append(s.hard, terms...)
	return nil
}

func (s *Solver) AddRationalPB(op constraint.Op, coeffs []*big.Rat, lits []constraint.Literal, rhs *big.Rat) error {
	return constraint.AddRationalPBDefault(s, op, coeffs, lits, rhs)
}

func (s *Solver) AddConjunction(lits ...constraint.Literal) error {
	return constraint.AddConjunctionDefault(s, lits...)
}

func (s *Solver) AddXOR(lits []constraint.Literal, parity bool) error {
	return constraint.EncodeXOR(s, lits, parity)
}

// expandOp turns a single logical op(sum(coeffs*lits), rhs) constraint into
// one or two GtEq-shaped pbTerms, optionally attaching activator to each
// (activator == 0 means hard / non-removable).
func expandOp(op constraint.Op, coeffs []int64, lits []constraint.Literal, rhs int64, activator constraint.Literal) ([]pbTerm, error) {
	op, rhs = constraint.AdjustedRHS(op, rhs)
	switch op {
	case constraint.OpGE:
		return []pbTerm{{lits: append([]constraint.Literal(nil), lits...), coeffs: append([]int64(nil), coeffs...), rhs: rhs, activator: activator}}, nil
	case constraint.OpLE:
		neg := negate(coeffs)
		return []pbTerm{{lits: append([]constraint.Literal(nil), lits...), coeffs: neg, rhs: -rhs, activator: activator}}, nil
	case constraint.OpEQ:
		ge, err := expandOp(constraint.OpGE, coeffs, lits, rhs, activator)
		if err != nil {
			return nil, err
		}
		le, err := expandOp(constraint.OpLE, coeffs, lits, rhs, activator)
		if err != nil {
			return nil, err
		}
		return append(ge, le...), nil
	default:
		return nil, fmt.Errorf("satsolver: unexpected op %v after AdjustedRHS", op)
	}
}

func negate(coeffs []int64) []int64 {
	out := make([]int64, len(coeffs))
	for i, c := range coeffs {
		out[i] = -c
	}
	return out
}

// Solve compiles every hard constraint plus every still-live removable
// constraint (each passed as a true assumption on its activator, spec.md
// §4.1) plus the caller's own assumptions into a fresh gophersat problem
// and solves it, honoring timeout and conflictBudget on a best-effort
// basis: gophersat exposes no cancellation hook and no way to read
// Stats.NbConflicts safely while Solve() is still running in its own
// goroutine (the field is a plain int with no synchronization on
// gophersat's side -- see DESIGN.md's pkg/satsolver entry), so conflictBudget
// cannot abort a search already in flight. It can only be checked once the
// search has actually finished: the channel receive from done establishes a
// happens-before edge with every write gophersat's own goroutine made to
// gs.Stats, so the read below is race-free, but a search that blows the
// budget is only ever caught after the fact, as StatusUnknown, never
// pre-empted mid-solve. An expired wall-clock timeout still abandons the
// goroutine and reports StatusUnknown rather than blocking past it.
func (s *Solver) Solve(assumptions []constraint.Literal, timeout time.Duration, conflictBudget int) (Status, error) {
	live := s.liveActivators()
	assume := make([]constraint.Literal, 0, len(assumptions)+len(live))
	assume = append(assume, assumptions...)
	assume = append(assume, live...)

	terms := s.compileTerms(assume)
	pbConstrs, nbVars, err := toGophersatConstrs(terms)
	if err != nil {
		return StatusUnknown, err
	}
	prob := gophersat.ParsePBConstrs(pbConstrs)
	if prob.NbVars < nbVars {
		// gophersat derives NbVars from the highest literal it saw; pad
		// explicitly in case trailing variables never appear in a clause
		// (e.g. a freshly allocated activator for a constraint about to be
		// removed before its first solve).
		prob.NbVars = nbVars
	}
	gs := gophersat.New(prob)

	type result struct {
		status gophersat.Status
	}
	done := make(chan result, 1)
	go func() {
		done <- result{status: gs.Solve()}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		if conflictBudget > 0 && gs.Stats.NbConflicts >= conflictBudget {
			return StatusUnknown, nil
		}
		return s.finish(gs, r.status)
	case <-timer.C:
		return StatusUnknown, nil
	}
}

func (s *Solver) finish(gs *gophersat.Solver, status gophersat.Status) (Status, error) {
	switch status {
	case gophersat.Sat:
		s.lastModel = gs.Model()
		return StatusSat, nil
	case gophersat.Unsat:
		return StatusUnsat, nil
	default:
		return StatusUnknown, nil
	}
}

// Value returns l's binding in the most recent Sat model.
func (s *Solver) Value(l constraint.Literal) bool {
	if s.lastModel == nil {
		return false
	}
	idx := int(l.Var()) - 1
	if idx < 0 || idx >= len(s.lastModel) {
		return false
	}
	bound := s.lastModel[idx]
	if !l.Positive() {
		return !bound
	}
	return bound
}

// compileTerms gathers every hard term, every still-live soft term
// (removed ones are excluded; their activator is instead hardened false),
// and one unit term per entry of assume.
func (s *Solver) compileTerms(assume []constraint.Literal) []pbTerm {
	terms := make([]pbTerm, 0, len(s.hard)+len(assume)+8)
	terms = append(terms, s.hard...)
	for _, id := range s.order {
		ts := s.byID[id]
		if s.dead[id] {
			if len(ts) == 0 {
				continue
			}
			terms = append(terms, pbTerm{lits: []constraint.Literal{ts[0].activator.Negate()}, coeffs: []int64{1}, rhs: 1})
			continue
		}
		terms = append(terms, ts...)
	}
	for _, lit := range assume {
		terms = append(terms, pbTerm{lits: []constraint.Literal{lit}, coeffs: []int64{1}, rhs: 1})
	}
	return terms
}

func (s *Solver) liveActivators() []constraint.Literal {
	out := make([]constraint.Literal, 0, len(s.order))
	seen := make(map[constraint.Literal]bool)
	for _, id := range s.order {
		if s.dead[id] {
			continue
		}
		ts := s.byID[id]
		if len(ts) == 0 {
			continue
		}
		a := ts[0].activator
		if a == 0 || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}

func toGophersatConstrs(terms []pbTerm) ([]gophersat.PBConstr, int, error) {
	out := make([]gophersat.PBConstr, len(terms))
	maxVar := int32(0)
	for i, t := range terms {
		lits := make([]int, len(t.lits))
		for j, l := range t.lits {
			lits[j] = int(l)
			if v := l.Var(); v > maxVar {
				maxVar = v
			}
		}
		var coeffs []int
		if t.coeffs != nil {
			coeffs = make([]int, len(t.coeffs))
			for j, c := range t.coeffs {
				coeffs[j] = int(c)
			}
		}
		out[i] = gophersat.GtEq(lits, coeffs, int(t.rhs))
	}
	return out, int(maxVar), nil
}

// NotSupported reports the operations the activator-literal backend has no
// way to honor (native constraint handles, true incremental assumption
// backtracking) rather than silently approximating them.
func NotSupported(feature string) error {
	return vmerr.NotSupported("satsolver: " + feature)
}
