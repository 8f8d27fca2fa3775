package nav

// GrantSet converts a list of permission codes into a membership set.
func GrantSet(codes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		set[code] = struct{}{}
	}
	return set
}

// Filter prunes nodes down to those the granted set authorizes, recursively.
// A node survives when its own gate passes or at least one descendant
// survives, so parents keep providing navigational context for authorized
// children. Sibling order is preserved; nothing is deduplicated. When
// allowAll is set (superusers) every gate passes.
func Filter(nodes []Node, granted map[string]struct{}, allowAll bool) []Node {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]Node, 0, len(nodes))
	for _, node := range nodes {
		gatePasses := allowAll || node.Permission.Open(granted)

		var filteredChildren []Node
		if node.hasChildren {
			filteredChildren = Filter(node.Children, granted, allowAll)
		}

		if !gatePasses && len(filteredChildren) == 0 {
			continue
		}
		if node.hasChildren {
			node.Children = filteredChildren
		}
		out = append(out, node)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
