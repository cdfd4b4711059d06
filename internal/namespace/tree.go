// Package namespace keeps the user-editable show/hide tree keyed by
// hierarchical layer path.
//
// Trees are persistent: an edit returns a new Tree that shares every subtree
// off the edited path with the old one. The tree grows as new layer paths are
// observed and never shrinks on its own.
package namespace

import (
	"sort"
	"strings"

	"github.com/xiaq/persistent/hash"
	"github.com/xiaq/persistent/hashmap"
)

// Separator splits a layer path into segments.
const Separator = "/"

type node struct {
	visible  bool
	children hashmap.Map
}

var emptyChildren = hashmap.New(
	func(a, b any) bool { return a.(string) == b.(string) },
	func(k any) uint32 { return hash.String(k.(string)) },
)

// Tree is an immutable visibility tree. The zero value is an empty tree.
type Tree struct {
	root hashmap.Map
}

// New returns an empty tree.
func New() Tree {
	return Tree{root: emptyChildren}
}

func (t Tree) top() hashmap.Map {
	if t.root == nil {
		return emptyChildren
	}
	return t.root
}

// Split breaks a layer path into its non-empty segments.
func Split(path string) []string {
	parts := strings.Split(path, Separator)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Observe inserts every path that is not in the tree yet, with visible set
// on each created node. Existing nodes keep their visibility. The receiver
// is returned unchanged when every path was already known.
func (t Tree) Observe(paths []string) Tree {
	root := t.top()
	changed := false
	for _, p := range paths {
		segs := Split(p)
		if len(segs) == 0 {
			continue
		}
		var c bool
		root, c = assoc(root, segs, true, false)
		changed = changed || c
	}
	if !changed {
		return t
	}
	return Tree{root: root}
}

// SetVisible sets the visibility of the node at segs, creating it and any
// missing ancestors. Created ancestors are visible.
func (t Tree) SetVisible(segs []string, visible bool) Tree {
	if len(segs) == 0 {
		return t
	}
	root, changed := assoc(t.top(), segs, visible, true)
	if !changed {
		return t
	}
	return Tree{root: root}
}

// assoc returns children with the node at segs created (visible) or, when
// force is set, with its visibility set to v. Only nodes along segs are
// rebuilt.
func assoc(children hashmap.Map, segs []string, v, force bool) (hashmap.Map, bool) {
	name := segs[0]
	var cur *node
	if existing, ok := children.Index(name); ok {
		cur = existing.(*node)
	}

	if len(segs) == 1 {
		if cur != nil && (!force || cur.visible == v) {
			return children, false
		}
		n := &node{visible: true, children: emptyChildren}
		if cur != nil {
			n.children = cur.children
		}
		if force {
			n.visible = v
		}
		return children.Assoc(name, n), true
	}

	kids, visible := emptyChildren, true
	if cur != nil {
		kids, visible = cur.children, cur.visible
	}
	newKids, changed := assoc(kids, segs[1:], v, force)
	if !changed && cur != nil {
		return children, false
	}
	return children.Assoc(name, &node{visible: visible, children: newKids}), true
}

func (t Tree) lookup(segs []string) (*node, bool) {
	children := t.top()
	var n *node
	for _, s := range segs {
		v, ok := children.Index(s)
		if !ok {
			return nil, false
		}
		n = v.(*node)
		children = n.children
	}
	return n, n != nil
}

// IsVisible reports the node's own visibility flag for a full layer path.
// Ancestors are not consulted. Paths not in the tree are visible.
func (t Tree) IsVisible(path string) bool {
	n, ok := t.lookup(Split(path))
	if !ok {
		return true
	}
	return n.visible
}

// Lookup returns the visibility of the node at segs and whether it exists.
func (t Tree) Lookup(segs []string) (visible, ok bool) {
	n, ok := t.lookup(segs)
	if !ok {
		return false, false
	}
	return n.visible, true
}

// Len returns the number of nodes in the tree.
func (t Tree) Len() int {
	count := 0
	t.Walk(func([]string, bool) { count++ })
	return count
}

// Walk calls fn for every node, depth first, siblings in name order.
// segs is only valid for the duration of the call.
func (t Tree) Walk(fn func(segs []string, visible bool)) {
	walk(t.top(), nil, fn)
}

func walk(children hashmap.Map, prefix []string, fn func([]string, bool)) {
	for _, name := range sortedKeys(children) {
		v, _ := children.Index(name)
		n := v.(*node)
		segs := append(prefix[:len(prefix):len(prefix)], name)
		fn(segs, n.visible)
		walk(n.children, segs, fn)
	}
}

func sortedKeys(m hashmap.Map) []string {
	keys := make([]string, 0, m.Len())
	for it := m.Iterator(); it.HasElem(); it.Next() {
		k, _ := it.Elem()
		keys = append(keys, k.(string))
	}
	sort.Strings(keys)
	return keys
}

// Filter returns the entries of layers whose path is visible, and the
// sorted paths that were hidden.
func Filter[V any](t Tree, layers map[string]V) (map[string]V, []string) {
	visible := make(map[string]V, len(layers))
	var hidden []string
	for path, v := range layers {
		if t.IsVisible(path) {
			visible[path] = v
		} else {
			hidden = append(hidden, path)
		}
	}
	sort.Strings(hidden)
	return visible, hidden
}
