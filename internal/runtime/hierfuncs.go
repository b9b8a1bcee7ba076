package runtime

import (
	"context"

	"github.com/risor-io/risor/object"

	"github.com/jward/scopetree/hierarchy"
)

// scope_hierarchy(file, line, col) returns the ascendant hierarchy of a
// position as nested maps, or nil when the position has no scope.
func makeScopeHierarchyFn(h Hierarchies) *object.Builtin {
	return object.NewBuiltin("scope_hierarchy", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 3 {
			return object.NewArgsError("scope_hierarchy", 3, len(args))
		}
		root, errObj := hierarchyAt("scope_hierarchy", h, args)
		if errObj != nil {
			return errObj
		}
		if root == nil {
			return object.Nil
		}
		return nodeToMap(root, true)
	})
}

// find_node(file, line, col, value, depth[, levels]) searches the hierarchy
// of a position. With levels true, depth counts edges below the root;
// otherwise a node at depth k needs depth k+1.
func makeFindNodeFn(h Hierarchies) *object.Builtin {
	return object.NewBuiltin("find_node", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 5 && len(args) != 6 {
			return object.Errorf("find_node: expected 5 or 6 arguments, got %d", len(args))
		}
		root, errObj := hierarchyAt("find_node", h, args[:3])
		if errObj != nil {
			return errObj
		}
		value, err := toString(args[3])
		if err != nil {
			return object.Errorf("find_node: value: %v", err)
		}
		depth, err := toInt64(args[4])
		if err != nil {
			return object.Errorf("find_node: depth: %v", err)
		}
		levels := false
		if len(args) == 6 {
			if levels, err = toBool(args[5]); err != nil {
				return object.Errorf("find_node: levels: %v", err)
			}
		}
		if root == nil {
			return object.Nil
		}

		var found *hierarchy.Node
		if levels {
			found = root.FindNode(value, int(depth))
		} else {
			found = root.TryFindNode(value, int(depth))
		}
		if found == nil {
			return object.Nil
		}
		m := nodeToMap(found, false)
		path := found.Path()
		items := make([]object.Object, len(path))
		for i, p := range path {
			items[i] = object.NewString(p)
		}
		m.Set("path", object.NewList(items))
		return m
	})
}

func hierarchyAt(name string, h Hierarchies, args []object.Object) (*hierarchy.Node, object.Object) {
	file, err := toString(args[0])
	if err != nil {
		return nil, object.Errorf("%s: file: %v", name, err)
	}
	line, err := toInt64(args[1])
	if err != nil {
		return nil, object.Errorf("%s: line: %v", name, err)
	}
	col, err := toInt64(args[2])
	if err != nil {
		return nil, object.Errorf("%s: col: %v", name, err)
	}
	root, err := h.ScopeHierarchyAt(file, int(line), int(col))
	if err != nil {
		return nil, object.Errorf("%s: %v", name, err)
	}
	return root, nil
}

func nodeToMap(n *hierarchy.Node, withChildren bool) *object.Map {
	kind := "declaration"
	if n.IsScope() {
		kind = "scope"
	}
	m := object.NewMap(map[string]object.Object{
		"label":    object.NewString(n.Label()),
		"kind":     object.NewString(kind),
		"depth":    object.NewInt(int64(n.Depth())),
		"expanded": object.NewBool(n.Expanded()),
	})
	if withChildren {
		children := make([]object.Object, 0, len(n.Children()))
		for _, c := range n.Children() {
			children = append(children, nodeToMap(c, true))
		}
		m.Set("children", object.NewList(children))
	}
	return m
}
