// Package nav holds the navigable-item registry shapes and the permission
// filter that prunes them down to what a principal may see. The registry is
// immutable configuration injected at call time; the filter is pure.
package nav

import (
	"encoding/json"
	"fmt"
)

// Gate is the permission requirement attached to a navigable item: absent
// (nil pointer) means public, a single code requires that code, and multiple
// codes mean any one of them grants access.
type Gate struct {
	Codes []string
}

// UnmarshalJSON accepts null, a string, or an array of strings, matching the
// registry configuration format.
func (g *Gate) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		g.Codes = []string{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		g.Codes = many
		return nil
	}
	return fmt.Errorf("nav: permission gate must be null, string, or string array")
}

// MarshalJSON renders the gate back in its source form.
func (g Gate) MarshalJSON() ([]byte, error) {
	if len(g.Codes) == 1 {
		return json.Marshal(g.Codes[0])
	}
	return json.Marshal(g.Codes)
}

// Open reports whether the gate passes for the granted code set.
func (g *Gate) Open(granted map[string]struct{}) bool {
	if g == nil || len(g.Codes) == 0 {
		return true
	}
	for _, code := range g.Codes {
		if _, ok := granted[code]; ok {
			return true
		}
	}
	return false
}

// Node is one navigable item: a menu entry or dashboard widget, optionally
// gated and optionally nested.
type Node struct {
	Key        string
	Label      string
	Title      string
	Path       string
	Icon       string
	Permission *Gate
	Children   []Node

	// hasChildren records whether the source declared a children list, so a
	// filtered parent keeps an (possibly empty) list while leaves never gain
	// one.
	hasChildren bool
}

// UnmarshalJSON tracks children-field presence alongside the node fields.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw struct {
		Key        string          `json:"key"`
		Label      string          `json:"label"`
		Title      string          `json:"title"`
		Path       string          `json:"path"`
		Icon       string          `json:"icon"`
		Permission *Gate           `json:"permission"`
		Children   json.RawMessage `json:"children"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	n.Key = raw.Key
	n.Label = raw.Label
	n.Title = raw.Title
	n.Path = raw.Path
	n.Icon = raw.Icon
	n.Permission = raw.Permission
	if raw.Children != nil {
		n.hasChildren = true
		if err := json.Unmarshal(raw.Children, &n.Children); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON emits the children field only when the source node declared
// one, even if the filtered list is empty.
func (n Node) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"key":        n.Key,
		"permission": n.Permission,
	}
	if n.Label != "" {
		out["label"] = n.Label
	}
	if n.Title != "" {
		out["title"] = n.Title
	}
	if n.Path != "" {
		out["path"] = n.Path
	}
	if n.Icon != "" {
		out["icon"] = n.Icon
	}
	if n.hasChildren {
		children := n.Children
		if children == nil {
			children = []Node{}
		}
		out["children"] = children
	}
	return json.Marshal(out)
}

// WithChildren returns a copy of the node declaring the given children list.
// Used when building registries in code rather than from JSON.
func (n Node) WithChildren(children ...Node) Node {
	n.Children = children
	n.hasChildren = true
	return n
}

// HasChildren reports whether the source node declared a children list.
func (n Node) HasChildren() bool {
	return n.hasChildren
}

// Gated returns a copy of the node gated by the given codes (any-of).
func (n Node) Gated(codes ...string) Node {
	n.Permission = &Gate{Codes: codes}
	return n
}
