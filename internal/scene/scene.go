// Package scene models the element tree a component invocation produces.
// Rendering surfaces walk this tree; they never see Starlark values.
package scene

import (
	"fmt"

	"github.com/frameloom-labs/frameloom/internal/sandbox"
	"go.starlark.net/starlark"
)

// Node is one element of a rendered tree.
type Node struct {
	// Type is the element kind: frame, group, rect, circle, text, path, img.
	Type string
	// Props are the element attributes.
	Props map[string]any
	// Children are nested elements, in paint order.
	Children []*Node
}

// Float reads a numeric prop, falling back when absent or non-numeric.
func (n *Node) Float(key string, fallback float64) float64 {
	switch v := n.Props[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return fallback
}

// String reads a string prop, falling back when absent.
func (n *Node) String(key, fallback string) string {
	if v, ok := n.Props[key].(string); ok {
		return v
	}
	return fallback
}

// FromValue converts a component invocation result into a scene tree.
// None converts to nil (nothing to draw). Anything else must be an
// element dict of the shape the ui capability constructs.
func FromValue(v starlark.Value) (*Node, error) {
	if v == nil || v == starlark.None {
		return nil, nil
	}

	dict, ok := v.(*starlark.Dict)
	if !ok {
		return nil, fmt.Errorf("component returned %s, expected an element", v.Type())
	}

	typVal, found, err := dict.Get(starlark.String("type"))
	if err != nil || !found {
		return nil, fmt.Errorf("element has no type")
	}
	typ, ok := starlark.AsString(typVal)
	if !ok {
		return nil, fmt.Errorf("element type must be a string")
	}

	node := &Node{Type: typ, Props: map[string]any{}}

	if propsVal, found, _ := dict.Get(starlark.String("props")); found {
		goProps, err := sandbox.ToGo(propsVal)
		if err != nil {
			return nil, fmt.Errorf("element %s props: %w", typ, err)
		}
		if m, ok := goProps.(map[string]any); ok {
			node.Props = m
		}
	}

	if childVal, found, _ := dict.Get(starlark.String("children")); found {
		list, ok := childVal.(*starlark.List)
		if !ok {
			return nil, fmt.Errorf("element %s children must be a list", typ)
		}
		for i := 0; i < list.Len(); i++ {
			item := list.Index(i)
			if item == starlark.None {
				continue
			}
			child, err := FromValue(item)
			if err != nil {
				return nil, fmt.Errorf("element %s child %d: %w", typ, i, err)
			}
			if child != nil {
				node.Children = append(node.Children, child)
			}
		}
	}

	return node, nil
}
