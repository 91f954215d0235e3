// Package eval provides the pluggable expression evaluator the interpreter
// uses to resolve ValueItem expressions and evaluate If comparisons.
// Expression evaluation proper is out of the execution core's scope (the
// core only needs eval(expr, env) -> value | error as a dependency it can
// be handed); this package supplies the default implementation the facade
// wires in automatically, built from expr-lang/expr (general expressions),
// itchyny/gojq (leading-dot path queries against nested output), and
// golang.org/x/text/collate (locale-aware string comparison).
package eval

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/itchyny/gojq"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/sakura-lang/sakura/pkg/ast"
	"github.com/sakura-lang/sakura/pkg/sakuraerr"
	"github.com/sakura-lang/sakura/pkg/value"
)

// Evaluator resolves a ValueItem's expression against an environment and
// compares two resolved values for an If node. Implementations must be
// safe for concurrent use (one Evaluator is shared by every worker).
type Evaluator interface {
	Eval(ctx context.Context, expression string, env *value.Environment) (value.Value, error)
	Compare(lhs, rhs value.Value, op ast.CompareOp) (bool, error)
}

var templatePattern = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)

// Default is the evaluator wired in by the facade when the host does not
// supply its own. It treats an expression as:
//   - a leading-dot gojq query (".foo.bar[0]") run against the whole
//     environment snapshot, returning the query's first result typed;
//   - a single `{{ expr }}` wrapping the entire string, whose inner expr
//     is compiled and run through expr-lang against the environment,
//     returning the typed result directly;
//   - a string containing one or more embedded `{{ expr }}` placeholders
//     among literal text, each substituted with its stringified result;
//   - otherwise a literal string.
type Default struct {
	exprCache *programCache
	jqCache   *jqCache
	collator  *collate.Collator
}

// NewDefault returns the default evaluator with a 256-entry compiled
// expression cache.
func NewDefault() *Default {
	return &Default{
		exprCache: newProgramCache(256),
		jqCache:   newJQCache(256),
		collator:  collate.New(language.Und),
	}
}

// Eval implements Evaluator.
func (d *Default) Eval(ctx context.Context, expression string, env *value.Environment) (value.Value, error) {
	trimmed := strings.TrimSpace(expression)
	if trimmed == "" {
		return value.Null(), nil
	}

	if strings.HasPrefix(trimmed, ".") {
		return d.evalJQ(ctx, trimmed, env)
	}

	if m := templatePattern.FindStringSubmatch(trimmed); m != nil && m[0] == trimmed {
		return d.evalExpr(m[1], env)
	}

	if templatePattern.MatchString(trimmed) {
		var substErr error
		out := templatePattern.ReplaceAllStringFunc(trimmed, func(match string) string {
			inner := templatePattern.FindStringSubmatch(match)[1]
			v, err := d.evalExpr(inner, env)
			if err != nil {
				substErr = err
				return ""
			}
			return v.String()
		})
		if substErr != nil {
			return value.Null(), substErr
		}
		return value.String(out), nil
	}

	return value.String(trimmed), nil
}

func (d *Default) evalExpr(inner string, env *value.Environment) (value.Value, error) {
	envMap := snapshotToMap(env)

	program, ok := d.exprCache.get(inner)
	if !ok {
		compiled, err := expr.Compile(inner, expr.Env(envMap))
		if err != nil {
			return value.Null(), &sakuraerr.EvalError{Expression: inner, Err: err}
		}
		d.exprCache.put(inner, compiled)
		program = compiled
	}

	result, err := expr.Run(program, envMap)
	if err != nil {
		return value.Null(), &sakuraerr.EvalError{Expression: inner, Err: err}
	}
	return value.FromInterface(result), nil
}

func (d *Default) evalJQ(ctx context.Context, query string, env *value.Environment) (value.Value, error) {
	code, ok := d.jqCache.get(query)
	if !ok {
		parsed, err := gojq.Parse(query)
		if err != nil {
			return value.Null(), &sakuraerr.EvalError{Expression: query, Err: err}
		}
		compiled, err := gojq.Compile(parsed)
		if err != nil {
			return value.Null(), &sakuraerr.EvalError{Expression: query, Err: err}
		}
		d.jqCache.put(query, compiled)
		code = compiled
	}

	input := snapshotToMap(env)
	iter := code.RunWithContext(ctx, input)
	result, ok := iter.Next()
	if !ok {
		return value.Null(), nil
	}
	if err, isErr := result.(error); isErr {
		return value.Null(), &sakuraerr.EvalError{Expression: query, Err: err}
	}
	return value.FromInterface(result), nil
}

// Compare implements Evaluator with type-aware semantics: numeric kinds
// compare numerically regardless of int/float mix, strings compare via
// locale-aware collation, and booleans only support EQ/NE.
func (d *Default) Compare(lhs, rhs value.Value, op ast.CompareOp) (bool, error) {
	if lf, lok := lhs.AsFloat(); lok {
		if rf, rok := rhs.AsFloat(); rok {
			return compareOrdered(lf, rf, op)
		}
	}
	if ls, lok := lhs.AsString(); lok {
		if rs, rok := rhs.AsString(); rok {
			c := d.collator.CompareString(ls, rs)
			return compareOrdered(c, 0, op)
		}
	}
	if lb, lok := lhs.AsBool(); lok {
		if rb, rok := rhs.AsBool(); rok {
			switch op {
			case ast.OpEQ:
				return lb == rb, nil
			case ast.OpNE:
				return lb != rb, nil
			default:
				return false, fmt.Errorf("%w: boolean values only support eq/ne", sakuraerr.ErrTypeMismatch)
			}
		}
	}
	if lhs.IsNull() && rhs.IsNull() {
		return op == ast.OpEQ, nil
	}
	return false, fmt.Errorf("%w: incomparable operand kinds %v/%v", sakuraerr.ErrTypeMismatch, lhs.Kind(), rhs.Kind())
}

func compareOrdered[T int | float64](a, b T, op ast.CompareOp) (bool, error) {
	switch op {
	case ast.OpEQ:
		return a == b, nil
	case ast.OpNE:
		return a != b, nil
	case ast.OpLT:
		return a < b, nil
	case ast.OpLE:
		return a <= b, nil
	case ast.OpGT:
		return a > b, nil
	case ast.OpGE:
		return a >= b, nil
	}
	return false, fmt.Errorf("%w: unknown compare op", sakuraerr.ErrTypeMismatch)
}

func snapshotToMap(env *value.Environment) map[string]interface{} {
	flat := env.Flatten()
	out := make(map[string]interface{}, len(flat))
	for k, v := range flat {
		out[k] = value.ToInterface(v)
	}
	return out
}
