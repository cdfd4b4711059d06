package namespace

import "github.com/xiaq/persistent/hashmap"

// NodeConfig is the persisted form of one node: its own flag and its
// children by name.
type NodeConfig struct {
	Visible  bool                  `yaml:"visible" json:"visible"`
	Children map[string]NodeConfig `yaml:"children,omitempty" json:"children,omitempty"`
}

// Config converts the tree to its persisted form.
func (t Tree) Config() map[string]NodeConfig {
	return toConfig(t.top())
}

func toConfig(children hashmap.Map) map[string]NodeConfig {
	if children.Len() == 0 {
		return nil
	}
	out := make(map[string]NodeConfig, children.Len())
	for it := children.Iterator(); it.HasElem(); it.Next() {
		k, v := it.Elem()
		n := v.(*node)
		out[k.(string)] = NodeConfig{Visible: n.visible, Children: toConfig(n.children)}
	}
	return out
}

// FromConfig builds a tree from its persisted form.
func FromConfig(cfg map[string]NodeConfig) Tree {
	return Tree{root: fromConfig(cfg)}
}

func fromConfig(cfg map[string]NodeConfig) hashmap.Map {
	m := emptyChildren
	for name, c := range cfg {
		if name == "" {
			continue
		}
		m = m.Assoc(name, &node{visible: c.Visible, children: fromConfig(c.Children)})
	}
	return m
}
