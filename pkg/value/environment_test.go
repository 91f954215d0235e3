package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironment_ParentReadThrough(t *testing.T) {
	t.Parallel()

	parent := NewEnvironment(nil)
	parent.Set("x", Int(1))

	child := parent.Child()
	child.Set("y", Int(2))

	v, ok := child.Get("x")
	require.True(t, ok)
	i, _ := v.AsInt()
	assert.Equal(t, int64(1), i)

	_, okLocal := parent.Get("y")
	assert.False(t, okLocal, "writes on the child must not leak to the parent")
}

func TestEnvironment_FlattenMergesParentChainChildWins(t *testing.T) {
	t.Parallel()

	root := NewEnvironment(nil)
	root.Set("x", Int(1))
	root.Set("y", Int(2))

	child := root.Child()
	child.Set("y", Int(99))
	child.Set("z", Int(3))

	flat := child.Flatten()
	require.Len(t, flat, 3)
	xv, _ := flat["x"].AsInt()
	yv, _ := flat["y"].AsInt()
	zv, _ := flat["z"].AsInt()
	assert.Equal(t, int64(1), xv)
	assert.Equal(t, int64(99), yv, "child binding overrides the parent's")
	assert.Equal(t, int64(3), zv)
}

func TestMerge_All_Unconditional(t *testing.T) {
	t.Parallel()

	dst := NewEnvironment(nil)
	dst.Set("a", Int(1))

	Merge(dst, map[string]Value{"a": Int(99), "b": Int(2)}, All)

	a, _ := dst.Get("a")
	b, _ := dst.Get("b")
	av, _ := a.AsInt()
	bv, _ := b.AsInt()
	assert.Equal(t, int64(99), av)
	assert.Equal(t, int64(2), bv)
}

func TestMerge_OnlyExisting(t *testing.T) {
	t.Parallel()

	dst := NewEnvironment(nil)
	dst.Set("a", Int(1))

	Merge(dst, map[string]Value{"a": Int(99), "b": Int(2)}, OnlyExisting)

	a, _ := dst.Get("a")
	av, _ := a.AsInt()
	assert.Equal(t, int64(99), av, "existing name is overwritten")

	_, ok := dst.Get("b")
	assert.False(t, ok, "undeclared name must not be injected")
}

func TestMerge_OnlyNonExisting(t *testing.T) {
	t.Parallel()

	dst := NewEnvironment(nil)
	dst.Set("a", Int(1))

	Merge(dst, map[string]Value{"a": Int(99), "b": Int(2)}, OnlyNonExisting)

	a, _ := dst.Get("a")
	av, _ := a.AsInt()
	assert.Equal(t, int64(1), av, "existing value is not overwritten")

	b, ok := dst.Get("b")
	require.True(t, ok)
	bv, _ := b.AsInt()
	assert.Equal(t, int64(2), bv, "absent name is inserted")
}

func TestMerge_OnlyNonExisting_Idempotent(t *testing.T) {
	t.Parallel()

	dst := NewEnvironment(nil)
	src := map[string]Value{"a": Int(1), "b": Int(2)}

	Merge(dst, src, OnlyNonExisting)
	once := dst.Snapshot()

	Merge(dst, src, OnlyNonExisting)
	twice := dst.Snapshot()

	assert.Equal(t, len(once), len(twice))
	for k, v := range once {
		ov, _ := v.AsInt()
		tv, _ := twice[k].AsInt()
		assert.Equal(t, ov, tv)
	}
}

func TestMerge_All_Idempotent(t *testing.T) {
	t.Parallel()

	dst := NewEnvironment(nil)
	src := map[string]Value{"a": Int(1)}

	Merge(dst, src, All)
	Merge(dst, src, All)

	a, _ := dst.Get("a")
	av, _ := a.AsInt()
	assert.Equal(t, int64(1), av)
}

func TestCheckInput(t *testing.T) {
	t.Parallel()

	declared := NewItemMap()
	declared.Set("key", NewAssigned("x", KindInput))
	declared.Set("value", NewAssigned("42", KindInput))

	empty := CheckInput(declared, map[string]Value{"key": String("x")})
	assert.Empty(t, empty)

	undeclared := CheckInput(declared, map[string]Value{"extra": String("y")})
	assert.Equal(t, []string{"extra"}, undeclared)
}

func TestItemMap_Duplicates(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Duplicates([]string{"a", "b", "c"}))
	assert.Equal(t, []string{"a"}, Duplicates([]string{"a", "b", "a"}))
}
