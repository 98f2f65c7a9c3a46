// Package suspicion converts transaction attributes into suspicion scores
// and inverse edge weights for shortest-path search.
package suspicion

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/opensource-finance/heron/internal/domain"
)

// Weigher maps (amount, frequency) to a suspicion score and an edge weight.
// Higher suspicion yields lower weight, so minimum-weight path search favors
// the most suspicious routes. A Weigher is stateless after construction and
// safe for concurrent use.
type Weigher struct {
	k       float64
	program cel.Program
	expr    string
}

// Option configures a Weigher.
type Option func(*options)

type options struct {
	expr string
}

// WithExpression replaces the built-in amount*frequency suspicion score
// with a CEL expression over the variables `amount` (double) and
// `frequency` (int). The expression must return a numeric value.
func WithExpression(expr string) Option {
	return func(o *options) { o.expr = expr }
}

// New creates a Weigher with the given inversion constant K
// (weight = K / suspicionScore). K must be positive.
func New(k float64, opts ...Option) (*Weigher, error) {
	if k <= 0 {
		return nil, fmt.Errorf("suspicion constant K must be positive, got %v", k)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	w := &Weigher{k: k, expr: o.expr}

	if o.expr != "" {
		program, err := compileExpression(o.expr)
		if err != nil {
			return nil, err
		}
		w.program = program
	}

	return w, nil
}

// K returns the inversion constant.
func (w *Weigher) K() float64 { return w.k }

// Score computes the suspicion score and edge weight for a transaction.
// Both amount and frequency must be positive; a zero score would make the
// inverse weight undefined, so invalid inputs are rejected here rather than
// surfacing as Inf downstream.
func (w *Weigher) Score(amount float64, frequency int) (suspicionScore, weight float64, err error) {
	if amount <= 0 {
		return 0, 0, fmt.Errorf("%w: amount must be positive, got %v", domain.ErrInvalidTransaction, amount)
	}
	if frequency <= 0 {
		return 0, 0, fmt.Errorf("%w: frequency must be positive, got %d", domain.ErrInvalidTransaction, frequency)
	}

	if w.program != nil {
		suspicionScore, err = w.evalExpression(amount, frequency)
		if err != nil {
			return 0, 0, err
		}
	} else {
		suspicionScore = amount * float64(frequency)
	}

	if suspicionScore <= 0 {
		return 0, 0, fmt.Errorf("%w: suspicion score must be positive, got %v", domain.ErrInvalidTransaction, suspicionScore)
	}

	return suspicionScore, w.k / suspicionScore, nil
}

func (w *Weigher) evalExpression(amount float64, frequency int) (float64, error) {
	out, _, err := w.program.Eval(map[string]any{
		"amount":    amount,
		"frequency": int64(frequency),
	})
	if err != nil {
		return 0, fmt.Errorf("suspicion expression %q: %w", w.expr, err)
	}
	return toScore(out), nil
}

// toScore converts a CEL value to a numeric score.
func toScore(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	case types.Uint:
		return float64(v)
	default:
		return 0.0
	}
}

func compileExpression(expr string) (cel.Program, error) {
	env, err := cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("frequency", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile suspicion expression: %w", issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.DoubleType && outputType != cel.IntType && outputType != cel.UintType {
		return nil, fmt.Errorf("suspicion expression must return a numeric value, got %s", outputType)
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for suspicion expression: %w", err)
	}

	return program, nil
}
