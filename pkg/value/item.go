package value

// ItemKind tags what a ValueItem is used for: an input fed to a handler, an
// output produced by one, or a value compared in an If node.
type ItemKind int

const (
	KindInput ItemKind = iota
	KindOutput
	KindCompare
)

// ItemFlag tags whether a ValueItem was explicitly assigned by the author
// or stands in for a handler-declared default.
type ItemFlag int

const (
	FlagAssigned ItemFlag = iota
	FlagDefault
)

// Item is `{ expression, kind, flag }`. Expression is either a literal, a
// name reference into the environment, or a `{{ name }}` template string
// resolved at evaluation time. The core never mutates an Item; evaluation
// is a pure read against an Environment.
type Item struct {
	Expression string
	Kind       ItemKind
	Flag       ItemFlag
}

// NewAssigned builds an explicitly-authored Item.
func NewAssigned(expr string, kind ItemKind) Item {
	return Item{Expression: expr, Kind: kind, Flag: FlagAssigned}
}

// NewDefault builds an Item standing in for a handler-declared default.
func NewDefault(expr string, kind ItemKind) Item {
	return Item{Expression: expr, Kind: kind, Flag: FlagDefault}
}

// ItemMap is an ordered mapping from name to Item. Insertion order governs
// evaluation order where a handler declares a positional schema.
type ItemMap struct {
	keys  []string
	items map[string]Item
}

// NewItemMap returns an empty ordered item map.
func NewItemMap() *ItemMap {
	return &ItemMap{items: make(map[string]Item)}
}

// Set inserts or overwrites name, preserving first-insertion order.
func (m *ItemMap) Set(name string, item Item) {
	if _, exists := m.items[name]; !exists {
		m.keys = append(m.keys, name)
	}
	m.items[name] = item
}

// Get returns the item bound to name and whether it exists.
func (m *ItemMap) Get(name string) (Item, bool) {
	it, ok := m.items[name]
	return it, ok
}

// Has reports whether name is bound.
func (m *ItemMap) Has(name string) bool {
	_, ok := m.items[name]
	return ok
}

// Names returns bound names in insertion order. A nil map has no names.
func (m *ItemMap) Names() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of bound names.
func (m *ItemMap) Len() int { return len(m.keys) }

// Duplicates returns names appearing more than once among candidateNames,
// for callers assembling an ItemMap from a possibly-duplicated source
// list.
func Duplicates(candidateNames []string) []string {
	seen := make(map[string]int, len(candidateNames))
	var dups []string
	for _, n := range candidateNames {
		seen[n]++
		if seen[n] == 2 {
			dups = append(dups, n)
		}
	}
	return dups
}

// Clone deep-copies the item map (Items are themselves immutable value
// types, so this only needs a structural copy).
func (m *ItemMap) Clone() *ItemMap {
	out := NewItemMap()
	for _, k := range m.keys {
		out.Set(k, m.items[k])
	}
	return out
}
