// Package sakura is the facade package: the one entry point a host
// program imports to register handlers, populate the garden with trees
// and templates, and trigger execution. A run is in-memory and
// non-persistent: it returns a completed execution record directly to
// the caller rather than writing it anywhere durable.
package sakura

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sakura-lang/sakura/pkg/ast"
	"github.com/sakura-lang/sakura/pkg/blossom"
	"github.com/sakura-lang/sakura/pkg/eval"
	"github.com/sakura-lang/sakura/pkg/garden"
	"github.com/sakura-lang/sakura/pkg/interp"
	"github.com/sakura-lang/sakura/pkg/sakuraerr"
	"github.com/sakura-lang/sakura/pkg/value"
)

// Listener mirrors interp.Listener so callers can wire progress
// streaming (pkg/stream.InterpListener) without sakura importing it.
type Listener = interp.Listener

// Sakura is the host-facing facade: handler registration, garden
// population, and tree execution.
type Sakura struct {
	registry  *blossom.Registry
	garden    *garden.Garden
	evaluator eval.Evaluator
	interp    *interp.Interpreter
}

// Config configures a new Sakura instance.
type Config struct {
	// Evaluator overrides the default expr-lang/gojq evaluator. Expression
	// evaluation itself is a pluggable collaborator, not part of the core.
	Evaluator eval.Evaluator
	// WorkerCount sizes the fixed worker pool backing Parallel execution.
	WorkerCount int
	// QueueCapacity bounds the work queue (0 = unbounded).
	QueueCapacity int
	// Listener optionally receives leaf lifecycle events for progress
	// streaming (see pkg/stream). May be nil.
	Listener Listener
}

// New builds a Sakura instance with its own registry, garden, and running
// worker pool. Call Close when done to release pool goroutines.
func New(cfg Config) *Sakura {
	if cfg.Evaluator == nil {
		cfg.Evaluator = eval.NewDefault()
	}
	registry := blossom.NewRegistry()
	g := garden.New()
	ip := interp.New(interp.Options{
		Registry:      registry,
		Garden:        g,
		Evaluator:     cfg.Evaluator,
		WorkerCount:   cfg.WorkerCount,
		QueueCapacity: cfg.QueueCapacity,
		Listener:      cfg.Listener,
	})
	return &Sakura{registry: registry, garden: g, evaluator: cfg.Evaluator, interp: ip}
}

// Close shuts down the worker pool.
func (s *Sakura) Close() {
	s.interp.Stop()
}

// AddBlossom registers a native handler under (group, name). It returns
// false if the pair was already registered.
func (s *Sakura) AddBlossom(group, name string, handler blossom.Handler) bool {
	return s.registry.AddBlossom(group, name, handler)
}

// AddTree inserts a parsed tree into the garden.
func (s *Sakura) AddTree(tree *ast.Tree) error {
	return s.garden.AddTree(tree)
}

// AddTemplate inserts a reusable subtree template into the garden.
func (s *Sakura) AddTemplate(template *ast.Tree) error {
	return s.garden.AddTemplate(template)
}

// AddFile registers a loaded data file's content under path.
func (s *Sakura) AddFile(path string, content []byte) error {
	return s.garden.AddFile(path, content)
}

// GetTemplate returns the template registered under id.
func (s *Sakura) GetTemplate(id string) (*ast.Tree, error) {
	return s.garden.GetTemplate(id)
}

// GetFile returns the file registered under path.
func (s *Sakura) GetFile(path string) (garden.File, error) {
	return s.garden.GetFile(path)
}

// Execution is the record returned by RunTree/TriggerTree: a snapshot of
// how a single invocation went.
type Execution struct {
	ID         string
	TreeID     string
	StartedAt  time.Time
	FinishedAt time.Time
	Success    bool
	Error      string
	Output     map[string]value.Value
}

// RunTree executes treeID synchronously with the given inputs and returns
// a completed Execution record.
func (s *Sakura) RunTree(ctx context.Context, treeID string, inputs map[string]value.Value) (*Execution, error) {
	return s.runTreeWithID(ctx, uuid.New().String(), treeID, inputs)
}

// runTreeWithID runs treeID under a caller-supplied execution ID, so the ID
// returned to the caller and the ID attached to ctx for stream-event
// attribution are always the same value.
func (s *Sakura) runTreeWithID(ctx context.Context, id, treeID string, inputs map[string]value.Value) (*Execution, error) {
	tree, err := s.garden.GetTree(treeID)
	if err != nil {
		return nil, err
	}

	exec := &Execution{ID: id, TreeID: treeID, StartedAt: time.Now()}
	ctx = interp.ContextWithRunMeta(ctx, interp.RunMeta{ExecutionID: exec.ID, TreeID: treeID})

	env, runErr := s.interp.RunTree(ctx, tree, inputs)
	exec.FinishedAt = time.Now()

	if runErr != nil {
		exec.Success = false
		exec.Error = runErr.Error()
		return exec, runErr
	}

	exec.Success = true
	if env != nil {
		exec.Output = env.Snapshot()
	}
	return exec, nil
}

// TriggerTree is RunTree with an asynchronous contract: it launches
// execution on its own goroutine and returns the execution ID immediately,
// delivering the completed Execution to onComplete (nil is permitted when
// the caller only wants fire-and-forget semantics).
func (s *Sakura) TriggerTree(ctx context.Context, treeID string, inputs map[string]value.Value, onComplete func(*Execution, error)) (string, error) {
	if _, err := s.garden.GetTree(treeID); err != nil {
		return "", err
	}

	id := uuid.New().String()
	go func() {
		exec, err := s.runTreeWithID(ctx, id, treeID, inputs)
		if onComplete != nil {
			onComplete(exec, err)
		}
	}()
	return id, nil
}

// ReadFiles registers the given path/content pairs with the garden in one
// call, surfacing the first IOError-shaped conflict encountered.
func (s *Sakura) ReadFiles(files map[string][]byte) error {
	for path, content := range files {
		if err := s.AddFile(path, content); err != nil {
			return &sakuraerr.IOError{Path: path, Err: fmt.Errorf("registering file: %w", err)}
		}
	}
	return nil
}
