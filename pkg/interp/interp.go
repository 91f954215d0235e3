// Package interp implements Sakura's tree-walking interpreter: the
// dispatcher that executes an AST fragment node by node, merging results
// back into the environment and routing Leaf invocations to the handler
// registry. A fixed worker pool drains a bounded queue to fan out
// Parallel subtrees, however deeply nested.
package interp

import (
	"context"
	"fmt"
	"time"

	"github.com/sakura-lang/sakura/pkg/ast"
	"github.com/sakura-lang/sakura/pkg/barrier"
	"github.com/sakura-lang/sakura/pkg/blossom"
	"github.com/sakura-lang/sakura/pkg/eval"
	"github.com/sakura-lang/sakura/pkg/garden"
	"github.com/sakura-lang/sakura/pkg/queue"
	"github.com/sakura-lang/sakura/pkg/sakuraerr"
	"github.com/sakura-lang/sakura/pkg/value"
)

type insideWorkerKey struct{}

// runMetaKey tags a context with the identifiers of the RunTree call it
// originated from, so a Listener invoked deep in the queued worker pool
// can still attribute its events to the right execution.
type runMetaKey struct{}

// RunMeta identifies the execution a context's node evaluation belongs
// to.
type RunMeta struct {
	ExecutionID string
	TreeID      string
}

// ContextWithRunMeta attaches meta to ctx for Listener attribution.
func ContextWithRunMeta(ctx context.Context, meta RunMeta) context.Context {
	return context.WithValue(ctx, runMetaKey{}, meta)
}

// RunMetaFromContext retrieves the RunMeta attached by ContextWithRunMeta.
func RunMetaFromContext(ctx context.Context) (RunMeta, bool) {
	meta, ok := ctx.Value(runMetaKey{}).(RunMeta)
	return meta, ok
}

// Listener receives leaf-invocation lifecycle events. It is the
// interpreter's only observability hook; pkg/stream adapts it into a
// broadcastable event for progress-streaming observers. A nil Listener
// disables the hook entirely.
type Listener interface {
	OnLeafStart(ctx context.Context, hierarchy, group, name string)
	OnLeafDone(ctx context.Context, hierarchy, group, name string, success bool, errMsg string, durationMs int64)
}

// Interpreter executes AST fragments against the handler registry and
// garden it was built with.
type Interpreter struct {
	registry  *blossom.Registry
	garden    *garden.Garden
	evaluator eval.Evaluator
	queue     *queue.Queue
	pool      *workerPool
	listener  Listener
}

// Options configures a new Interpreter.
type Options struct {
	Registry      *blossom.Registry
	Garden        *garden.Garden
	Evaluator     eval.Evaluator
	WorkerCount   int
	QueueCapacity int
	// Listener optionally receives leaf start/done events for progress
	// streaming. May be nil.
	Listener Listener
}

// New builds and starts an Interpreter's worker pool. Stop must be called
// to release the pool's goroutines.
func New(opts Options) *Interpreter {
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 4
	}
	q := queue.New(opts.QueueCapacity)
	ip := &Interpreter{
		registry:  opts.Registry,
		garden:    opts.Garden,
		evaluator: opts.Evaluator,
		queue:     q,
		listener:  opts.Listener,
	}
	ip.pool = newWorkerPool(q, opts.WorkerCount, ip.runQueuedTask)
	ip.pool.Start()
	return ip
}

// Stop drains and shuts down the worker pool.
func (ip *Interpreter) Stop() {
	ip.pool.Stop()
}

// RunTree executes tree's body against a root environment seeded from
// inputs, after checking inputs against the tree's declared inputs and
// filling any declared defaults. It returns the root environment (for
// callers that want to inspect produced outputs) and the first error.
func (ip *Interpreter) RunTree(ctx context.Context, tree *ast.Tree, inputs map[string]value.Value) (*value.Environment, error) {
	if undeclared := value.CheckInput(tree.DeclaredInputs, inputs); len(undeclared) > 0 {
		return nil, &sakuraerr.ValidationError{
			Hierarchy: tree.ID,
			Message:   fmt.Sprintf("undeclared input names: %v", undeclared),
		}
	}

	env := value.NewEnvironment(nil)
	for name, v := range inputs {
		env.Set(name, v)
	}

	defaults := make(map[string]value.Value)
	for _, name := range tree.DeclaredInputs.Names() {
		item, _ := tree.DeclaredInputs.Get(name)
		if item.Flag == value.FlagDefault {
			v, err := ip.evaluator.Eval(ctx, item.Expression, env)
			if err != nil {
				return env, &sakuraerr.EvalError{Expression: item.Expression, Err: err}
			}
			defaults[name] = v
		}
	}
	value.Merge(env, defaults, value.OnlyNonExisting)

	clone := tree.Body.Clone()
	err := ip.execute(ctx, clone, env, tree.ID)
	return env, err
}

// execute dispatches on node's concrete type. It is the single switch the
// whole interpreter funnels through; every node type above must have a
// case here.
func (ip *Interpreter) execute(ctx context.Context, node ast.Node, env *value.Environment, hierarchy string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	switch n := node.(type) {
	case *ast.Leaf:
		return ip.executeLeaf(ctx, n, env, hierarchy)
	case *ast.Group:
		return ip.executeGroup(ctx, n, env, hierarchy)
	case *ast.Sequential:
		return ip.executeSequential(ctx, n, env, hierarchy)
	case *ast.Parallel:
		return ip.executeParallel(ctx, n, env, hierarchy)
	case *ast.If:
		return ip.executeIf(ctx, n, env, hierarchy)
	case *ast.ForEach:
		return ip.executeForEach(ctx, n, env, hierarchy)
	case *ast.For:
		return ip.executeFor(ctx, n, env, hierarchy)
	case *ast.SubtreeRef:
		return ip.executeSubtreeRef(ctx, n, env, hierarchy)
	case *ast.Tree:
		return ip.execute(ctx, n.Body, env, hierarchy)
	case *boundBody:
		boundEnv := env.Child()
		boundEnv.Set(n.varName, n.value)
		return ip.execute(ctx, n.body, boundEnv, hierarchy)
	default:
		return fmt.Errorf("%w: unhandled node type %T", sakuraerr.ErrTypeMismatch, node)
	}
}

func (ip *Interpreter) executeLeaf(ctx context.Context, leaf *ast.Leaf, env *value.Environment, hierarchy string) error {
	if ip.listener != nil {
		ip.listener.OnLeafStart(ctx, hierarchy, leaf.Group, leaf.Name)
	}
	started := time.Now()

	handler, ok := ip.registry.GetBlossom(leaf.Group, leaf.Name)
	if !ok {
		err := fmt.Errorf("%w: %s.%s", sakuraerr.ErrHandlerNotFound, leaf.Group, leaf.Name)
		ip.notifyLeafDone(ctx, hierarchy, leaf.Group, leaf.Name, started, err)
		return err
	}

	inputs := make(map[string]value.Value, leaf.Inputs.Len())
	for _, name := range leaf.Inputs.Names() {
		item, _ := leaf.Inputs.Get(name)
		v, err := ip.evaluator.Eval(ctx, item.Expression, env)
		if err != nil {
			evalErr := &sakuraerr.EvalError{Expression: item.Expression, Err: err}
			ip.notifyLeafDone(ctx, hierarchy, leaf.Group, leaf.Name, started, evalErr)
			return evalErr
		}
		inputs[name] = v
	}

	produced, err := handler.Run(ctx, inputs)
	if err != nil {
		leaf.Result = ast.LeafResult{Success: false, Message: err.Error()}
		handlerErr := &sakuraerr.HandlerError{Group: leaf.Group, Name: leaf.Name, Message: err.Error()}
		ip.notifyLeafDone(ctx, hierarchy, leaf.Group, leaf.Name, started, handlerErr)
		return handlerErr
	}

	out := value.NewObject()
	for _, name := range handler.DeclaredOutputs.Names() {
		if v, ok := produced[name]; ok {
			out.Set(name, v)
			if leaf.OutputTarget != nil {
				env.Set(*leaf.OutputTarget, v)
			} else {
				env.Set(name, v)
			}
		}
	}
	leaf.Result = ast.LeafResult{Success: true, Produced: out}
	ip.notifyLeafDone(ctx, hierarchy, leaf.Group, leaf.Name, started, nil)
	return nil
}

func (ip *Interpreter) notifyLeafDone(ctx context.Context, hierarchy, group, name string, started time.Time, err error) {
	if ip.listener == nil {
		return
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	ip.listener.OnLeafDone(ctx, hierarchy, group, name, err == nil, msg, time.Since(started).Milliseconds())
}

func (ip *Interpreter) executeGroup(ctx context.Context, g *ast.Group, env *value.Environment, hierarchy string) error {
	for _, leaf := range g.Children {
		if err := ip.executeLeaf(ctx, leaf, env, hierarchy+"/"+g.ID); err != nil {
			return err
		}
	}
	return nil
}

func (ip *Interpreter) executeSequential(ctx context.Context, s *ast.Sequential, env *value.Environment, hierarchy string) error {
	for _, child := range s.Children {
		if err := ip.execute(ctx, child, env, hierarchy); err != nil {
			return err
		}
	}
	return nil
}

// executeParallel schedules child through the shared work queue and
// blocks on a barrier for its completion. When already running inside a
// worker goroutine (insideWorkerKey set), it instead fans out inline with
// raw goroutines: scheduling a nested Parallel onto the same bounded queue
// from within a worker can deadlock once the pool is saturated by workers
// all waiting on queue slots the busy workers themselves would need to
// free.
func (ip *Interpreter) executeParallel(ctx context.Context, p *ast.Parallel, env *value.Environment, hierarchy string) error {
	children := flattenParallelChildren(p.Child)
	if len(children) == 0 {
		return nil
	}

	if ctx.Value(insideWorkerKey{}) != nil {
		return ip.executeInline(ctx, children, env, hierarchy)
	}
	return ip.executeQueued(ctx, children, env, hierarchy)
}

// flattenParallelChildren treats a Parallel wrapping a Sequential as the
// list of its independent elements; a Parallel wrapping any other node is
// a single-element fan-out.
func flattenParallelChildren(n ast.Node) []ast.Node {
	if seq, ok := n.(*ast.Sequential); ok {
		return seq.Children
	}
	return []ast.Node{n}
}

func (ip *Interpreter) executeQueued(ctx context.Context, children []ast.Node, env *value.Environment, hierarchy string) error {
	b := barrier.New(len(children))
	workerCtx := context.WithValue(ctx, insideWorkerKey{}, true)

	for _, child := range children {
		childEnv := env.Child()
		ip.queue.Enqueue(queue.Task{
			Ctx:       workerCtx,
			Node:      child,
			Env:       childEnv,
			Barrier:   b,
			Hierarchy: hierarchy,
		})
	}

	ok, msg, err := b.Wait(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return &sakuraerr.SchedulerError{Message: msg}
	}
	mergeBarrierResults(env, b)
	return nil
}

// runQueuedTask is the function the worker pool invokes for each dequeued
// task.
func (ip *Interpreter) runQueuedTask(t queue.Task) {
	err := ip.execute(t.Ctx, t.Node, t.Env, t.Hierarchy)
	if err != nil {
		t.Barrier.Increment(false, err.Error(), nil)
	} else {
		t.Barrier.Increment(true, "", t.Env.Snapshot())
	}
}

// executeInline runs children with one goroutine each, bypassing the
// shared queue entirely (the fallback path for nested Parallel).
func (ip *Interpreter) executeInline(ctx context.Context, children []ast.Node, env *value.Environment, hierarchy string) error {
	b := barrier.New(len(children))
	for _, child := range children {
		childEnv := env.Child()
		go func(n ast.Node, e *value.Environment) {
			err := ip.execute(ctx, n, e, hierarchy)
			if err != nil {
				b.Increment(false, err.Error(), nil)
			} else {
				b.Increment(true, "", e.Snapshot())
			}
		}(child, childEnv)
	}
	ok, msg, err := b.Wait(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return &sakuraerr.SchedulerError{Message: msg}
	}
	mergeBarrierResults(env, b)
	return nil
}

// mergeBarrierResults folds every completed task's produced output map into
// env, in the order the tasks finished, once a barrier has released
// successfully. Later entries win over earlier ones on a colliding name.
func mergeBarrierResults(env *value.Environment, b *barrier.Barrier) {
	for _, result := range b.Results() {
		value.Merge(env, result, value.All)
	}
}

func (ip *Interpreter) executeIf(ctx context.Context, n *ast.If, env *value.Environment, hierarchy string) error {
	lhs, err := ip.evaluator.Eval(ctx, n.Lhs.Expression, env)
	if err != nil {
		return &sakuraerr.EvalError{Expression: n.Lhs.Expression, Err: err}
	}
	rhs, err := ip.evaluator.Eval(ctx, n.Rhs.Expression, env)
	if err != nil {
		return &sakuraerr.EvalError{Expression: n.Rhs.Expression, Err: err}
	}
	cond, err := ip.evaluator.Compare(lhs, rhs, n.Op)
	if err != nil {
		return err
	}
	if cond {
		return ip.execute(ctx, n.Then, env, hierarchy)
	}
	if n.Else != nil {
		return ip.execute(ctx, n.Else, env, hierarchy)
	}
	return nil
}

func (ip *Interpreter) executeForEach(ctx context.Context, n *ast.ForEach, env *value.Environment, hierarchy string) error {
	nameExpr, ok := n.Iterable.Get("source")
	if !ok {
		return &sakuraerr.ValidationError{Hierarchy: hierarchy, Message: "foreach requires a 'source' item"}
	}
	iterableVal, err := ip.evaluator.Eval(ctx, nameExpr.Expression, env)
	if err != nil {
		return &sakuraerr.EvalError{Expression: nameExpr.Expression, Err: err}
	}
	items, ok := iterableVal.AsArray()
	if !ok {
		return fmt.Errorf("%w: foreach source did not resolve to an array", sakuraerr.ErrNotArray)
	}

	if !n.Parallel {
		for _, item := range items {
			iterEnv := env.Child()
			iterEnv.Set(n.VarName, item)
			if err := ip.execute(ctx, n.Body.Clone(), iterEnv, hierarchy); err != nil {
				return err
			}
		}
		return nil
	}

	children := make([]ast.Node, len(items))
	for i, item := range items {
		children[i] = &boundBody{varName: n.VarName, value: item, body: n.Body.Clone()}
	}
	if ctx.Value(insideWorkerKey{}) != nil {
		return ip.executeInline(ctx, children, env, hierarchy)
	}
	return ip.executeQueued(ctx, children, env, hierarchy)
}

func (ip *Interpreter) executeFor(ctx context.Context, n *ast.For, env *value.Environment, hierarchy string) error {
	startVal, err := ip.evaluator.Eval(ctx, n.Start.Expression, env)
	if err != nil {
		return &sakuraerr.EvalError{Expression: n.Start.Expression, Err: err}
	}
	endVal, err := ip.evaluator.Eval(ctx, n.End.Expression, env)
	if err != nil {
		return &sakuraerr.EvalError{Expression: n.End.Expression, Err: err}
	}
	start, ok := startVal.AsInt()
	if !ok {
		return fmt.Errorf("%w: for start must be an integer", sakuraerr.ErrNotInteger)
	}
	end, ok := endVal.AsInt()
	if !ok {
		return fmt.Errorf("%w: for end must be an integer", sakuraerr.ErrNotInteger)
	}

	step := int64(1)
	if end < start {
		step = -1
	}

	var indices []int64
	for i := start; ; i += step {
		indices = append(indices, i)
		if i == end {
			break
		}
	}

	if !n.Parallel {
		for _, i := range indices {
			iterEnv := env.Child()
			iterEnv.Set(n.VarName, value.Int(i))
			if err := ip.execute(ctx, n.Body.Clone(), iterEnv, hierarchy); err != nil {
				return err
			}
		}
		return nil
	}

	children := make([]ast.Node, len(indices))
	for idx, i := range indices {
		children[idx] = &boundBody{varName: n.VarName, value: value.Int(i), body: n.Body.Clone()}
	}
	if ctx.Value(insideWorkerKey{}) != nil {
		return ip.executeInline(ctx, children, env, hierarchy)
	}
	return ip.executeQueued(ctx, children, env, hierarchy)
}

func (ip *Interpreter) executeSubtreeRef(ctx context.Context, n *ast.SubtreeRef, env *value.Environment, hierarchy string) error {
	tree, err := ip.garden.GetTree(n.NameOrPath)
	if err != nil {
		tree, err = ip.garden.GetTemplate(n.NameOrPath)
		if err != nil {
			return err
		}
	}

	declaredNames := tree.DeclaredInputs.Names()

	// Pre-seed every declared name so the ONLY_EXISTING merge below can
	// recognize it; a declared input with neither a caller argument nor a
	// default resolves to null inside the subtree rather than erroring.
	callEnv := value.NewEnvironment(nil)
	for _, name := range declaredNames {
		callEnv.Set(name, value.Null())
	}

	callerArgs := make(map[string]value.Value, len(declaredNames))
	for _, name := range declaredNames {
		if v, ok := env.Get(name); ok {
			callerArgs[name] = v
		}
	}
	value.Merge(callEnv, callerArgs, value.OnlyExisting)

	defaults := make(map[string]value.Value)
	for _, name := range declaredNames {
		if _, supplied := callerArgs[name]; supplied {
			continue
		}
		item, _ := tree.DeclaredInputs.Get(name)
		if item.Flag != value.FlagDefault {
			continue
		}
		v, err := ip.evaluator.Eval(ctx, item.Expression, callEnv)
		if err != nil {
			return &sakuraerr.EvalError{Expression: item.Expression, Err: err}
		}
		defaults[name] = v
	}
	value.Merge(callEnv, defaults, value.All)

	body := tree.Body.Clone()
	if overrides, ok := n.InternalOverrides[tree.ID]; ok {
		for _, name := range overrides.Names() {
			item, _ := overrides.Get(name)
			v, err := ip.evaluator.Eval(ctx, item.Expression, env)
			if err != nil {
				return &sakuraerr.EvalError{Expression: item.Expression, Err: err}
			}
			callEnv.Set(name, v)
		}
	}

	if err := ip.execute(ctx, body, callEnv, hierarchy+"/"+tree.ID); err != nil {
		return err
	}

	// On success, copy everything the subtree produced beyond its declared
	// inputs back into the caller's environment.
	produced := callEnv.Snapshot()
	for _, name := range declaredNames {
		delete(produced, name)
	}
	value.Merge(env, produced, value.All)
	return nil
}

// boundBody is a synthetic node wrapping a ForEach/For loop body with its
// per-iteration binding, so queued/inline fan-out can treat loop
// iterations exactly like any other Parallel child.
type boundBody struct {
	// The embedded ast.Node is left nil; it only supplies ast.Node's
	// unexported marker method, which a type outside package ast cannot
	// declare itself. The loop body lives in body.
	ast.Node
	varName string
	value   value.Value
	body    ast.Node
}

func (b *boundBody) Clone() ast.Node {
	return &boundBody{varName: b.varName, value: b.value, body: b.body.Clone()}
}

