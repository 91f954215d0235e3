// Package garden implements the thread-safe container of trees,
// templates, and files the facade populates at startup and the
// interpreter reads from during execution. A single top-level RWMutex
// guards the whole struct, since garden mutation (insertion) and garden
// reads (SubtreeRef resolution) are the only two access patterns.
package garden

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/sakura-lang/sakura/pkg/ast"
	"github.com/sakura-lang/sakura/pkg/sakuraerr"
)

// File is a loaded non-tree file (e.g. a data file read via readFiles),
// kept alongside a content fingerprint for dedup detection.
type File struct {
	Path        string
	Content     []byte
	Fingerprint [32]byte
}

// Garden holds every tree, template, and file known to a running facade.
// All mutation goes through a single lock; reads during execution take
// the read half of the same lock, so insertion can never race a read of
// a half-populated map.
type Garden struct {
	mu        sync.RWMutex
	trees     map[string]*ast.Tree
	templates map[string]*ast.Tree
	files     map[string]File
}

// New returns an empty garden.
func New() *Garden {
	return &Garden{
		trees:     make(map[string]*ast.Tree),
		templates: make(map[string]*ast.Tree),
		files:     make(map[string]File),
	}
}

// AddTree inserts tree under its ID. It returns sakuraerr.ErrContentConflict
// if a different tree is already registered under the same ID with a
// different content fingerprint, and silently succeeds (idempotent) if the
// fingerprints match: re-inserting an unchanged tree (e.g. re-reading a
// directory) is not an error.
func (g *Garden) AddTree(tree *ast.Tree) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return insert(g.trees, tree.ID, tree)
}

// AddTemplate inserts a reusable subtree template under its ID, with the
// same conflict semantics as AddTree.
func (g *Garden) AddTemplate(template *ast.Tree) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return insert(g.templates, template.ID, template)
}

func insert(dst map[string]*ast.Tree, id string, tree *ast.Tree) error {
	existing, ok := dst[id]
	if !ok {
		dst[id] = tree
		return nil
	}
	if fingerprint(existing) != fingerprint(tree) {
		return fmt.Errorf("%w: %q already registered with different content", sakuraerr.ErrContentConflict, id)
	}
	return nil
}

// GetTree returns the tree registered under id.
func (g *Garden) GetTree(id string) (*ast.Tree, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	t, ok := g.trees[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", sakuraerr.ErrTreeNotFound, id)
	}
	return t, nil
}

// GetTemplate returns the template registered under id.
func (g *Garden) GetTemplate(id string) (*ast.Tree, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	t, ok := g.templates[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", sakuraerr.ErrTemplateNotFound, id)
	}
	return t, nil
}

// AddFile inserts a file's content, fingerprinting it with blake2b for
// cheap dedup detection across repeated directory scans.
func (g *Garden) AddFile(path string, content []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	sum := blake2b.Sum256(content)
	if existing, ok := g.files[path]; ok && existing.Fingerprint != sum {
		return fmt.Errorf("%w: %q already registered with different content", sakuraerr.ErrContentConflict, path)
	}
	g.files[path] = File{Path: path, Content: content, Fingerprint: sum}
	return nil
}

// GetFile returns the file registered under path.
func (g *Garden) GetFile(path string) (File, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	f, ok := g.files[path]
	if !ok {
		return File{}, fmt.Errorf("%w: %q", sakuraerr.ErrFileNotFound, path)
	}
	return f, nil
}

// TreeIDs returns every registered tree ID.
func (g *Garden) TreeIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.trees))
	for id := range g.trees {
		out = append(out, id)
	}
	return out
}

// fingerprint derives a stable content hash for a tree by hashing its
// canonical identity fields; this is deliberately not a deep structural
// hash of Body since two parses of the same source text are the only
// case this needs to distinguish from a genuine content change, and the
// source text dominates the ID/path pair already used to key the garden.
func fingerprint(t *ast.Tree) [32]byte {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(t.ID))
	h.Write([]byte(t.RelativePath))
	h.Write([]byte(t.RootPath))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
