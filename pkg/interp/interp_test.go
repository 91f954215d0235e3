package interp

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sakura-lang/sakura/pkg/ast"
	"github.com/sakura-lang/sakura/pkg/blossom"
	"github.com/sakura-lang/sakura/pkg/garden"
	"github.com/sakura-lang/sakura/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// literalEvaluator resolves `{{ name }}` against the environment and
// otherwise returns the expression as a literal string, without pulling in
// expr-lang/gojq, keeping these tests about the dispatcher, not eval.
type literalEvaluator struct{}

func (literalEvaluator) Eval(_ context.Context, expression string, env *value.Environment) (value.Value, error) {
	if len(expression) > 4 && expression[:2] == "{{" && expression[len(expression)-2:] == "}}" {
		name := expression[2 : len(expression)-2]
		for len(name) > 0 && name[0] == ' ' {
			name = name[1:]
		}
		for len(name) > 0 && name[len(name)-1] == ' ' {
			name = name[:len(name)-1]
		}
		v, ok := env.Get(name)
		if !ok {
			return value.Null(), fmt.Errorf("name not found: %s", name)
		}
		return v, nil
	}
	return value.String(expression), nil
}

func (literalEvaluator) Compare(lhs, rhs value.Value, op ast.CompareOp) (bool, error) {
	li, _ := lhs.AsInt()
	ri, _ := rhs.AsInt()
	switch op {
	case ast.OpEQ:
		return li == ri, nil
	case ast.OpLT:
		return li < ri, nil
	default:
		return false, nil
	}
}

func setHandler(counter *int32) blossom.Handler {
	inputs := value.NewItemMap()
	inputs.Set("value", value.NewAssigned("value", value.KindInput))
	outputs := value.NewItemMap()
	outputs.Set("out", value.NewAssigned("out", value.KindOutput))
	return blossom.Handler{
		DeclaredInputs:  inputs,
		DeclaredOutputs: outputs,
		Run: func(ctx context.Context, in map[string]value.Value) (map[string]value.Value, error) {
			if counter != nil {
				atomic.AddInt32(counter, 1)
			}
			return map[string]value.Value{"out": in["value"]}, nil
		},
	}
}

func failHandler() blossom.Handler {
	return blossom.Handler{
		DeclaredInputs:  value.NewItemMap(),
		DeclaredOutputs: value.NewItemMap(),
		Run: func(ctx context.Context, in map[string]value.Value) (map[string]value.Value, error) {
			return nil, fmt.Errorf("boom")
		},
	}
}

func newTestInterpreter(reg *blossom.Registry) *Interpreter {
	return New(Options{
		Registry:      reg,
		Garden:        garden.New(),
		Evaluator:     literalEvaluator{},
		WorkerCount:   4,
		QueueCapacity: 16,
	})
}

func TestExecuteLeaf_MergesOutputIntoEnv(t *testing.T) {
	t.Parallel()

	reg := blossom.NewRegistry()
	reg.AddBlossom("std", "set", setHandler(nil))
	ip := newTestInterpreter(reg)
	defer ip.Stop()

	env := value.NewEnvironment(nil)
	env.Set("x", value.Int(7))
	inputs := value.NewItemMap()
	inputs.Set("value", value.NewAssigned("{{ x }}", value.KindInput))
	leaf := &ast.Leaf{Group: "std", Name: "set", Inputs: inputs}

	err := ip.execute(context.Background(), leaf, env, "root")
	require.NoError(t, err)

	out, ok := env.Get("out")
	require.True(t, ok)
	i, _ := out.AsInt()
	assert.Equal(t, int64(7), i)
	assert.True(t, leaf.Result.Success)
}

func TestExecuteLeaf_UnregisteredHandler(t *testing.T) {
	t.Parallel()

	ip := newTestInterpreter(blossom.NewRegistry())
	defer ip.Stop()

	leaf := &ast.Leaf{Group: "std", Name: "missing", Inputs: value.NewItemMap()}
	err := ip.execute(context.Background(), leaf, value.NewEnvironment(nil), "root")
	assert.Error(t, err)
}

func TestExecuteSequential_AbortsOnFirstError(t *testing.T) {
	t.Parallel()

	reg := blossom.NewRegistry()
	reg.AddBlossom("std", "fail", failHandler())
	var calls int32
	reg.AddBlossom("std", "set", setHandler(&calls))
	ip := newTestInterpreter(reg)
	defer ip.Stop()

	seq := &ast.Sequential{Children: []ast.Node{
		&ast.Leaf{Group: "std", Name: "fail", Inputs: value.NewItemMap()},
		&ast.Leaf{Group: "std", Name: "set", Inputs: value.NewItemMap()},
	}}

	err := ip.execute(context.Background(), seq, value.NewEnvironment(nil), "root")
	assert.Error(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls), "second leaf must not run after the first fails")
}

func TestExecuteParallel_AllSucceed(t *testing.T) {
	t.Parallel()

	reg := blossom.NewRegistry()
	var calls int32
	reg.AddBlossom("std", "set", setHandler(&calls))
	ip := newTestInterpreter(reg)
	defer ip.Stop()

	targetA, targetB, targetC := "a", "b", "c"
	inputsA := value.NewItemMap()
	inputsA.Set("value", value.NewAssigned("{{ av }}", value.KindInput))
	inputsB := value.NewItemMap()
	inputsB.Set("value", value.NewAssigned("{{ bv }}", value.KindInput))
	inputsC := value.NewItemMap()
	inputsC.Set("value", value.NewAssigned("{{ cv }}", value.KindInput))

	par := &ast.Parallel{Child: &ast.Sequential{Children: []ast.Node{
		&ast.Leaf{Group: "std", Name: "set", Inputs: inputsA, OutputTarget: &targetA},
		&ast.Leaf{Group: "std", Name: "set", Inputs: inputsB, OutputTarget: &targetB},
		&ast.Leaf{Group: "std", Name: "set", Inputs: inputsC, OutputTarget: &targetC},
	}}}

	env := value.NewEnvironment(nil)
	env.Set("av", value.Int(1))
	env.Set("bv", value.Int(2))
	env.Set("cv", value.Int(3))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := ip.execute(ctx, par, env, "root")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	a, ok := env.Get("a")
	require.True(t, ok, "parallel child output 'a' must be merged into the caller's environment")
	av, _ := a.AsInt()
	assert.Equal(t, int64(1), av)

	b, ok := env.Get("b")
	require.True(t, ok, "parallel child output 'b' must be merged into the caller's environment")
	bv, _ := b.AsInt()
	assert.Equal(t, int64(2), bv)

	c, ok := env.Get("c")
	require.True(t, ok, "parallel child output 'c' must be merged into the caller's environment")
	cv, _ := c.AsInt()
	assert.Equal(t, int64(3), cv)
}

func TestExecuteParallel_OneFailurePropagates(t *testing.T) {
	t.Parallel()

	reg := blossom.NewRegistry()
	reg.AddBlossom("std", "fail", failHandler())
	ip := newTestInterpreter(reg)
	defer ip.Stop()

	par := &ast.Parallel{Child: &ast.Sequential{Children: []ast.Node{
		&ast.Leaf{Group: "std", Name: "fail", Inputs: value.NewItemMap()},
	}}}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := ip.execute(ctx, par, value.NewEnvironment(nil), "root")
	assert.Error(t, err)
}

func TestExecuteParallel_NestedFallsBackToInline(t *testing.T) {
	t.Parallel()

	reg := blossom.NewRegistry()
	var calls int32
	reg.AddBlossom("std", "set", setHandler(&calls))

	// A small pool with a nested Parallel forces the inline fallback; if it
	// weren't there, this would deadlock instead of completing.
	ip := New(Options{
		Registry:      reg,
		Garden:        garden.New(),
		Evaluator:     literalEvaluator{},
		WorkerCount:   1,
		QueueCapacity: 1,
	})
	defer ip.Stop()

	inner := &ast.Parallel{Child: &ast.Sequential{Children: []ast.Node{
		&ast.Leaf{Group: "std", Name: "set", Inputs: value.NewItemMap()},
		&ast.Leaf{Group: "std", Name: "set", Inputs: value.NewItemMap()},
	}}}
	outer := &ast.Parallel{Child: &ast.Sequential{Children: []ast.Node{inner}}}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- ip.execute(ctx, outer, value.NewEnvironment(nil), "root")
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("nested parallel deadlocked instead of falling back to inline execution")
	}
}

func TestExecuteIf_BranchesOnComparison(t *testing.T) {
	t.Parallel()

	reg := blossom.NewRegistry()
	var calls int32
	reg.AddBlossom("std", "set", setHandler(&calls))
	ip := newTestInterpreter(reg)
	defer ip.Stop()

	env := value.NewEnvironment(nil)
	env.Set("a", value.Int(1))
	env.Set("b", value.Int(1))

	ifNode := &ast.If{
		Lhs:  value.NewAssigned("{{ a }}", value.KindCompare),
		Op:   ast.OpEQ,
		Rhs:  value.NewAssigned("{{ b }}", value.KindCompare),
		Then: &ast.Leaf{Group: "std", Name: "set", Inputs: value.NewItemMap()},
	}

	err := ip.execute(context.Background(), ifNode, env, "root")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestExecuteForEach_Sequential(t *testing.T) {
	t.Parallel()

	reg := blossom.NewRegistry()
	var calls int32
	reg.AddBlossom("std", "set", setHandler(&calls))
	ip := newTestInterpreter(reg)
	defer ip.Stop()

	env := value.NewEnvironment(nil)
	env.Set("items", value.Array([]value.Value{value.Int(1), value.Int(2), value.Int(3)}))

	iterable := value.NewItemMap()
	iterable.Set("source", value.NewAssigned("{{ items }}", value.KindInput))

	forEach := &ast.ForEach{
		VarName:  "it",
		Iterable: iterable,
		Body:     &ast.Leaf{Group: "std", Name: "set", Inputs: value.NewItemMap()},
	}

	err := ip.execute(context.Background(), forEach, env, "root")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestExecuteSubtreeRef_ResolvesFromGarden(t *testing.T) {
	t.Parallel()

	reg := blossom.NewRegistry()
	var calls int32
	reg.AddBlossom("std", "set", setHandler(&calls))

	g := garden.New()
	sub := &ast.Tree{
		ID:             "helper",
		DeclaredInputs: value.NewItemMap(),
		Body:           &ast.Leaf{Group: "std", Name: "set", Inputs: value.NewItemMap()},
	}
	require.NoError(t, g.AddTree(sub))

	ip := New(Options{
		Registry:      reg,
		Garden:        g,
		Evaluator:     literalEvaluator{},
		WorkerCount:   4,
		QueueCapacity: 16,
	})
	defer ip.Stop()

	ref := &ast.SubtreeRef{NameOrPath: "helper", InternalOverrides: map[string]*value.ItemMap{}}
	err := ip.execute(context.Background(), ref, value.NewEnvironment(nil), "root")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRunTree_UndeclaredInputRejected(t *testing.T) {
	t.Parallel()

	ip := newTestInterpreter(blossom.NewRegistry())
	defer ip.Stop()

	tree := &ast.Tree{
		ID:             "t",
		DeclaredInputs: value.NewItemMap(),
		Body:           &ast.Sequential{},
	}

	_, err := ip.RunTree(context.Background(), tree, map[string]value.Value{"extra": value.Int(1)})
	assert.Error(t, err)
}
