package httpapi

import (
	"encoding/json"
	"fmt"

	"github.com/sakura-lang/sakura/pkg/ast"
	"github.com/sakura-lang/sakura/pkg/value"
)

// itemDTO is the wire form of a value.Item: a scalar/template expression
// tagged with how it's used. Kind/Flag default to "input"/"assigned" when
// omitted, matching the common case of an author-supplied leaf argument.
type itemDTO struct {
	Expression string `json:"expression" binding:"required"`
	Kind       string `json:"kind,omitempty"`       // input|output|compare
	Default    bool   `json:"is_default,omitempty"` // true marks a handler-declared default
}

func (d itemDTO) toItem() (value.Item, error) {
	var kind value.ItemKind
	switch d.Kind {
	case "", "input":
		kind = value.KindInput
	case "output":
		kind = value.KindOutput
	case "compare":
		kind = value.KindCompare
	default:
		return value.Item{}, fmt.Errorf("unknown item kind %q", d.Kind)
	}
	if d.Default {
		return value.NewDefault(d.Expression, kind), nil
	}
	return value.NewAssigned(d.Expression, kind), nil
}

func itemMapFromDTO(items map[string]itemDTO) (*value.ItemMap, error) {
	m := value.NewItemMap()
	for name, dto := range items {
		item, err := dto.toItem()
		if err != nil {
			return nil, fmt.Errorf("item %q: %w", name, err)
		}
		m.Set(name, item)
	}
	return m, nil
}

// nodeDTO is a discriminated-union JSON shape for ast.Node. Only the fields
// relevant to Type are read; the rest are ignored.
type nodeDTO struct {
	Type string `json:"type" binding:"required"`

	// leaf
	Group        string             `json:"group,omitempty"`
	Name         string             `json:"name,omitempty"`
	Inputs       map[string]itemDTO `json:"inputs,omitempty"`
	OutputTarget *string            `json:"output_target,omitempty"`

	// sequential / parallel
	Children []nodeDTO `json:"children,omitempty"`
	Child    *nodeDTO  `json:"child,omitempty"`

	// if
	Lhs  *itemDTO `json:"lhs,omitempty"`
	Op   string   `json:"op,omitempty"`
	Rhs  *itemDTO `json:"rhs,omitempty"`
	Then *nodeDTO `json:"then,omitempty"`
	Else *nodeDTO `json:"else,omitempty"`

	// forEach
	VarName  string             `json:"var_name,omitempty"`
	Iterable map[string]itemDTO `json:"iterable,omitempty"`
	Parallel bool               `json:"parallel,omitempty"`
	Body     *nodeDTO           `json:"body,omitempty"`

	// for
	Start *itemDTO `json:"start,omitempty"`
	End   *itemDTO `json:"end,omitempty"`

	// subtreeRef
	NameOrPath string `json:"name_or_path,omitempty"`
}

var compareOps = map[string]ast.CompareOp{
	"eq": ast.OpEQ, "ne": ast.OpNE,
	"lt": ast.OpLT, "le": ast.OpLE,
	"gt": ast.OpGT, "ge": ast.OpGE,
}

func (d *nodeDTO) toNode() (ast.Node, error) {
	switch d.Type {
	case "leaf":
		inputs, err := itemMapFromDTO(d.Inputs)
		if err != nil {
			return nil, err
		}
		return &ast.Leaf{Group: d.Group, Name: d.Name, Inputs: inputs, OutputTarget: d.OutputTarget}, nil

	case "sequential":
		children, err := nodesFromDTO(d.Children)
		if err != nil {
			return nil, err
		}
		return &ast.Sequential{Children: children}, nil

	case "parallel":
		if d.Child == nil {
			return nil, fmt.Errorf("parallel node requires child")
		}
		child, err := d.Child.toNode()
		if err != nil {
			return nil, err
		}
		return &ast.Parallel{Child: child}, nil

	case "if":
		if d.Lhs == nil || d.Rhs == nil || d.Then == nil {
			return nil, fmt.Errorf("if node requires lhs, rhs, then")
		}
		op, ok := compareOps[d.Op]
		if !ok {
			return nil, fmt.Errorf("unknown comparison op %q", d.Op)
		}
		lhs, err := d.Lhs.toItem()
		if err != nil {
			return nil, err
		}
		rhs, err := d.Rhs.toItem()
		if err != nil {
			return nil, err
		}
		then, err := d.Then.toNode()
		if err != nil {
			return nil, err
		}
		out := &ast.If{Lhs: lhs, Op: op, Rhs: rhs, Then: then}
		if d.Else != nil {
			elseNode, err := d.Else.toNode()
			if err != nil {
				return nil, err
			}
			out.Else = elseNode
		}
		return out, nil

	case "forEach":
		if d.Body == nil {
			return nil, fmt.Errorf("forEach node requires body")
		}
		iterable, err := itemMapFromDTO(d.Iterable)
		if err != nil {
			return nil, err
		}
		body, err := d.Body.toNode()
		if err != nil {
			return nil, err
		}
		return &ast.ForEach{VarName: d.VarName, Iterable: iterable, Parallel: d.Parallel, Body: body}, nil

	case "for":
		if d.Start == nil || d.End == nil || d.Body == nil {
			return nil, fmt.Errorf("for node requires start, end, body")
		}
		start, err := d.Start.toItem()
		if err != nil {
			return nil, err
		}
		end, err := d.End.toItem()
		if err != nil {
			return nil, err
		}
		body, err := d.Body.toNode()
		if err != nil {
			return nil, err
		}
		return &ast.For{VarName: d.VarName, Start: start, End: end, Parallel: d.Parallel, Body: body}, nil

	case "subtreeRef":
		return &ast.SubtreeRef{NameOrPath: d.NameOrPath}, nil

	default:
		return nil, fmt.Errorf("unknown node type %q", d.Type)
	}
}

func nodesFromDTO(dtos []nodeDTO) ([]ast.Node, error) {
	out := make([]ast.Node, len(dtos))
	for i := range dtos {
		node, err := dtos[i].toNode()
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}
		out[i] = node
	}
	return out, nil
}

// treeRequest is the POST /trees request body.
type treeRequest struct {
	ID             string             `json:"id" binding:"required"`
	DeclaredInputs map[string]itemDTO `json:"declared_inputs,omitempty"`
	Body           nodeDTO            `json:"body" binding:"required"`
}

func (r *treeRequest) toTree() (*ast.Tree, error) {
	declared, err := itemMapFromDTO(r.DeclaredInputs)
	if err != nil {
		return nil, fmt.Errorf("declared_inputs: %w", err)
	}
	body, err := r.Body.toNode()
	if err != nil {
		return nil, fmt.Errorf("body: %w", err)
	}
	return &ast.Tree{ID: r.ID, Body: body, DeclaredInputs: declared}, nil
}

// TreeFromJSON decodes the same wire shape POST /trees accepts (an AST
// tree described as nested type-tagged nodes) directly from raw bytes, for
// hosts that load tree definitions from disk rather than over HTTP.
func TreeFromJSON(data []byte) (*ast.Tree, error) {
	var req treeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode tree json: %w", err)
	}
	return req.toTree()
}
