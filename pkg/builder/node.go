// Package builder provides a fluent, functional-options API for
// constructing Sakura AST fragments in Go code, covering the full tagged
// node set: Leaf, Sequential, Parallel, If, ForEach, For, SubtreeRef, and
// Tree. It exists for host programs and tests that want to assemble
// trees without writing out a parser-facing source format.
package builder

import (
	"fmt"

	"github.com/sakura-lang/sakura/pkg/ast"
	"github.com/sakura-lang/sakura/pkg/value"
)

// LeafBuilder builds a single handler invocation.
type LeafBuilder struct {
	leaf *ast.Leaf
	err  error
}

// Leaf starts building a Leaf invoking (group, name).
func Leaf(group, name string) *LeafBuilder {
	return &LeafBuilder{leaf: &ast.Leaf{
		Group:  group,
		Name:   name,
		Inputs: value.NewItemMap(),
	}}
}

// LeafOption configures a LeafBuilder.
type LeafOption func(*LeafBuilder) error

// With applies opts in order, short-circuiting on the first error.
func (lb *LeafBuilder) With(opts ...LeafOption) *LeafBuilder {
	for _, opt := range opts {
		if lb.err != nil {
			return lb
		}
		if err := opt(lb); err != nil {
			lb.err = err
		}
	}
	return lb
}

// Input declares an assigned input item by expression.
func Input(name, expression string) LeafOption {
	return func(lb *LeafBuilder) error {
		if name == "" {
			return fmt.Errorf("builder: input name cannot be empty")
		}
		lb.leaf.Inputs.Set(name, value.NewAssigned(expression, value.KindInput))
		return nil
	}
}

// OutputTarget overrides the environment name a Leaf's declared outputs
// are merged under (by default each output is merged under its own
// declared name).
func OutputTarget(name string) LeafOption {
	return func(lb *LeafBuilder) error {
		lb.leaf.OutputTarget = &name
		return nil
	}
}

// Hierarchy sets the diagnostic breadcrumb prefix for this leaf.
func Hierarchy(h string) LeafOption {
	return func(lb *LeafBuilder) error {
		lb.leaf.Hierarchy = h
		return nil
	}
}

// Build returns the constructed Leaf node.
func (lb *LeafBuilder) Build() (*ast.Leaf, error) {
	if lb.err != nil {
		return nil, lb.err
	}
	return lb.leaf, nil
}

// Seq builds a Sequential node from children executed in order.
func Seq(children ...ast.Node) *ast.Sequential {
	return &ast.Sequential{Children: children}
}

// Par wraps children in a Parallel node; they are fanned out together and
// joined at a barrier.
func Par(children ...ast.Node) *ast.Parallel {
	return &ast.Parallel{Child: Seq(children...)}
}

// IfBuilder builds a conditional branch.
type IfBuilder struct {
	node *ast.If
}

// If starts an If comparing lhs op rhs.
func If(lhsExpr string, op ast.CompareOp, rhsExpr string) *IfBuilder {
	return &IfBuilder{node: &ast.If{
		Lhs: value.NewAssigned(lhsExpr, value.KindCompare),
		Op:  op,
		Rhs: value.NewAssigned(rhsExpr, value.KindCompare),
	}}
}

// Then sets the branch taken when the comparison holds.
func (ib *IfBuilder) Then(n ast.Node) *IfBuilder {
	ib.node.Then = n
	return ib
}

// Else sets the branch taken when the comparison does not hold.
func (ib *IfBuilder) Else(n ast.Node) *IfBuilder {
	ib.node.Else = n
	return ib
}

// Build returns the constructed If node. It errors if Then was never set.
func (ib *IfBuilder) Build() (*ast.If, error) {
	if ib.node.Then == nil {
		return nil, fmt.Errorf("builder: if requires a then branch")
	}
	return ib.node, nil
}

// ForEachLoop builds a ForEach node iterating varName over sourceExpr's
// array result, executing body per element.
func ForEachLoop(varName, sourceExpr string, parallel bool, body ast.Node) *ast.ForEach {
	iterable := value.NewItemMap()
	iterable.Set("source", value.NewAssigned(sourceExpr, value.KindInput))
	return &ast.ForEach{VarName: varName, Iterable: iterable, Parallel: parallel, Body: body}
}

// ForLoop builds a For node ranging startExpr..endExpr inclusive.
func ForLoop(varName, startExpr, endExpr string, parallel bool, body ast.Node) *ast.For {
	return &ast.For{
		VarName:  varName,
		Start:    value.NewAssigned(startExpr, value.KindCompare),
		End:      value.NewAssigned(endExpr, value.KindCompare),
		Parallel: parallel,
		Body:     body,
	}
}

// RefSubtree builds a SubtreeRef resolving nameOrPath in the garden.
func RefSubtree(nameOrPath string) *ast.SubtreeRef {
	return &ast.SubtreeRef{NameOrPath: nameOrPath, InternalOverrides: make(map[string]*value.ItemMap)}
}

// TreeBuilder builds a named Tree with declared inputs.
type TreeBuilder struct {
	tree *ast.Tree
	err  error
}

// NewTree starts building a tree identified by id.
func NewTree(id string) *TreeBuilder {
	return &TreeBuilder{tree: &ast.Tree{ID: id, DeclaredInputs: value.NewItemMap()}}
}

// DeclareInput adds a required input with no default.
func (tb *TreeBuilder) DeclareInput(name string) *TreeBuilder {
	if tb.err != nil {
		return tb
	}
	if tb.tree.DeclaredInputs.Has(name) {
		tb.err = fmt.Errorf("builder: duplicate declared input %q", name)
		return tb
	}
	tb.tree.DeclaredInputs.Set(name, value.NewAssigned("", value.KindInput))
	return tb
}

// DeclareDefault adds an input with a default expression, used to fill the
// name when the caller does not supply it.
func (tb *TreeBuilder) DeclareDefault(name, defaultExpr string) *TreeBuilder {
	if tb.err != nil {
		return tb
	}
	if tb.tree.DeclaredInputs.Has(name) {
		tb.err = fmt.Errorf("builder: duplicate declared input %q", name)
		return tb
	}
	tb.tree.DeclaredInputs.Set(name, value.NewDefault(defaultExpr, value.KindInput))
	return tb
}

// Body sets the tree's executable body.
func (tb *TreeBuilder) Body(n ast.Node) *TreeBuilder {
	tb.tree.Body = n
	return tb
}

// RootPath sets the root directory the tree was loaded relative to.
func (tb *TreeBuilder) RootPath(path string) *TreeBuilder {
	tb.tree.RootPath = path
	return tb
}

// RelativePath sets the tree's path relative to RootPath.
func (tb *TreeBuilder) RelativePath(path string) *TreeBuilder {
	tb.tree.RelativePath = path
	return tb
}

// Build returns the constructed Tree.
func (tb *TreeBuilder) Build() (*ast.Tree, error) {
	if tb.err != nil {
		return nil, tb.err
	}
	if tb.tree.Body == nil {
		return nil, fmt.Errorf("builder: tree %q has no body", tb.tree.ID)
	}
	return tb.tree, nil
}
