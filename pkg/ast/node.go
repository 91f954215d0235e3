// Package ast defines Sakura's tagged AST node variants: the tree shapes
// the parser collaborator produces and the interpreter walks. Trees are
// owned by the garden once inserted; each invocation executes a deep clone
// of the tree body, so the result state a Leaf accumulates never touches
// the garden's copy.
package ast

import "github.com/sakura-lang/sakura/pkg/value"

// CompareOp is the comparison operator for an If node.
type CompareOp int

const (
	OpEQ CompareOp = iota
	OpNE
	OpLT
	OpLE
	OpGT
	OpGE
)

// Node is implemented by every executable construct. It is a closed tagged
// variant: the interpreter switches on concrete type, never on a Kind enum.
// A node type the interpreter's switch does not handle fails at run time
// in its default case.
type Node interface {
	node()
	// Clone returns a deep copy suitable for per-invocation mutation.
	Clone() Node
}

// Leaf invokes a native handler. Source form carries only the schema;
// Result is populated by the interpreter during dispatch and is therefore
// the one fragment of a Leaf that must be cloned per invocation.
type Leaf struct {
	Group        string
	Name         string
	Hierarchy    string
	Inputs       *value.ItemMap
	OutputTarget *string // nil means outputs are merged under their declared names
	Result       LeafResult
}

// LeafResult holds the interpreter-populated outcome of a Leaf dispatch.
type LeafResult struct {
	Success  bool
	Message  string
	Produced *value.Object
}

func (*Leaf) node() {}

// Clone deep-copies the leaf, resetting Result to zero value (a leaf's
// result belongs to one invocation and is never inherited).
func (l *Leaf) Clone() Node {
	return &Leaf{
		Group:        l.Group,
		Name:         l.Name,
		Hierarchy:    l.Hierarchy,
		Inputs:       l.Inputs.Clone(),
		OutputTarget: l.OutputTarget,
	}
}

// Group is a named collection of leaves executed in declared order; its
// hierarchy breadcrumb is prepended to each child's for diagnostics.
type Group struct {
	ID        string
	GroupType string
	Hierarchy string
	Children  []*Leaf
}

func (*Group) node() {}

func (g *Group) Clone() Node {
	children := make([]*Leaf, len(g.Children))
	for i, c := range g.Children {
		children[i] = c.Clone().(*Leaf)
	}
	return &Group{ID: g.ID, GroupType: g.GroupType, Hierarchy: g.Hierarchy, Children: children}
}

// Sequential executes children left to right against the same environment,
// aborting on the first error.
type Sequential struct {
	Children []Node
}

func (*Sequential) node() {}

func (s *Sequential) Clone() Node {
	children := make([]Node, len(s.Children))
	for i, c := range s.Children {
		children[i] = c.Clone()
	}
	return &Sequential{Children: children}
}

// Parallel schedules its child (typically a Sequential whose elements are
// independent) through the work queue, and the calling worker blocks on a
// barrier until all complete or one fails.
type Parallel struct {
	Child Node
}

func (*Parallel) node() {}

func (p *Parallel) Clone() Node {
	return &Parallel{Child: p.Child.Clone()}
}

// If evaluates Lhs/Rhs and compares by Op with type-aware semantics.
type If struct {
	Lhs  value.Item
	Op   CompareOp
	Rhs  value.Item
	Then Node
	Else Node // nil means no else branch
}

func (*If) node() {}

func (i *If) Clone() Node {
	out := &If{Lhs: i.Lhs, Op: i.Op, Rhs: i.Rhs, Then: i.Then.Clone()}
	if i.Else != nil {
		out.Else = i.Else.Clone()
	}
	return out
}

// ForEach evaluates Iterable (must resolve to an array), binds VarName in a
// fresh child environment per element, and executes Body. If Parallel is
// true, each iteration is scheduled as a separate task.
type ForEach struct {
	VarName  string
	Iterable *value.ItemMap
	Parallel bool
	Body     Node
}

func (*ForEach) node() {}

func (f *ForEach) Clone() Node {
	return &ForEach{VarName: f.VarName, Iterable: f.Iterable.Clone(), Parallel: f.Parallel, Body: f.Body.Clone()}
}

// For evaluates Start/End as integers; step is +1 when End >= Start, else
// -1. Body executes once when Start == End.
type For struct {
	VarName  string
	Start    value.Item
	End      value.Item
	Parallel bool
	Body     Node
}

func (*For) node() {}

func (f *For) Clone() Node {
	return &For{VarName: f.VarName, Start: f.Start, End: f.End, Parallel: f.Parallel, Body: f.Body.Clone()}
}

// SubtreeRef resolves NameOrPath in the garden and executes it with a fresh
// environment seeded from the caller's arguments.
type SubtreeRef struct {
	NameOrPath        string
	InternalOverrides map[string]*value.ItemMap // subtree id -> overrides
}

func (*SubtreeRef) node() {}

func (s *SubtreeRef) Clone() Node {
	overrides := make(map[string]*value.ItemMap, len(s.InternalOverrides))
	for k, v := range s.InternalOverrides {
		overrides[k] = v.Clone()
	}
	return &SubtreeRef{NameOrPath: s.NameOrPath, InternalOverrides: overrides}
}

// Tree is a named, parseable workflow unit with declared inputs. Trees are
// immutable once inserted into the garden.
type Tree struct {
	ID              string
	RelativePath    string
	RootPath        string
	Body            Node
	DeclaredInputs  *value.ItemMap
}

func (*Tree) node() {}

func (t *Tree) Clone() Node {
	return &Tree{
		ID:             t.ID,
		RelativePath:   t.RelativePath,
		RootPath:       t.RootPath,
		Body:           t.Body.Clone(),
		DeclaredInputs: t.DeclaredInputs.Clone(),
	}
}
