package gelf

import (
	"sort"
	"strconv"
	"strings"
)

// Nested expansion turns dotted field names into container structures:
// `toto.titi` becomes an object, `foo.0`/`foo.1` become an array. The
// array/object choice is inherently ambiguous in a schema-less stream, so
// the tree is built from tagged nodes with an explicit coercion rule: a
// non-numeric key landing on an array converts that array to an object
// keyed by the stringified original indices. That handles the common
// collision of numeric siblings with a field like `length` under the same
// prefix.

type nodeKind int

const (
	kindScalar nodeKind = iota
	kindObject
	kindArray
)

// node is one tagged tree position. Exactly one of value/obj/arr is
// meaningful, selected by kind. Array slots may be nil (absent elements,
// rendered as JSON null).
type node struct {
	kind  nodeKind
	value any
	obj   map[string]*node
	arr   []*node
}

func scalarNode(v any) *node { return &node{kind: kindScalar, value: v} }
func objectNode() *node      { return &node{kind: kindObject, obj: map[string]*node{}} }
func arrayNode() *node       { return &node{kind: kindArray} }

// maxArrayIndex bounds array growth from a single field name. A datagram
// could otherwise name an arbitrary index and force allocation of that many
// slots. Larger numeric segments are treated as object keys.
const maxArrayIndex = 10000

// arrayIndex interprets s as an array index candidate: entirely numeric
// digits within the allocation bound. Empty segments (from a trailing dot)
// are object keys, not indices.
func arrayIndex(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	idx, err := strconv.Atoi(s)
	if err != nil || idx > maxArrayIndex {
		return 0, false
	}
	return idx, true
}

// expandNested rewrites every dotted field of ev into nested containers.
// All dotted fields of one event share a working tree keyed by the first
// path segment, so `a.b` and `a.c` build one object. Fields are processed
// in sorted name order for deterministic results. Originals are removed and
// each first-segment root replaces whatever the event held under that name.
func expandNested(ev *Event) {
	var dotted []string
	for k := range ev.Fields {
		if strings.Contains(k, ".") {
			dotted = append(dotted, k)
		}
	}
	if len(dotted) == 0 {
		return
	}
	sort.Strings(dotted)

	tree := make(map[string]*node)
	for _, key := range dotted {
		segs := strings.Split(key, ".")
		root := segs[0]
		if _, ok := tree[root]; !ok {
			if existing, present := ev.Fields[root]; present {
				tree[root] = nodeFromValue(existing)
			}
		}
		tree[root] = insertPath(tree[root], segs[1:], ev.Fields[key])
	}

	for _, key := range dotted {
		delete(ev.Fields, key)
	}
	for root, n := range tree {
		ev.Fields[root] = nodeToValue(n)
	}
}

// insertPath writes value at the remaining path segments below cur,
// returning the (possibly replaced) node for that position. An empty path
// means cur itself is the target and is replaced by the scalar.
func insertPath(cur *node, path []string, value any) *node {
	if len(path) == 0 {
		return scalarNode(value)
	}

	seg := path[0]
	idx, segIsIndex := arrayIndex(seg)

	// cur must be a container that can hold seg: create one when absent or
	// scalar, coerce array to object when seg is not an index.
	switch {
	case cur == nil || cur.kind == kindScalar:
		if segIsIndex {
			cur = arrayNode()
		} else {
			cur = objectNode()
		}
	case cur.kind == kindArray && !segIsIndex:
		cur = arrayToObject(cur)
	}

	if cur.kind == kindArray {
		for len(cur.arr) <= idx {
			cur.arr = append(cur.arr, nil)
		}
		cur.arr[idx] = insertPath(cur.arr[idx], path[1:], value)
		return cur
	}

	cur.obj[seg] = insertPath(cur.obj[seg], path[1:], value)
	return cur
}

// arrayToObject converts an array node in place to an object keyed by the
// stringified original indices, dropping absent elements.
func arrayToObject(n *node) *node {
	obj := objectNode()
	for i, el := range n.arr {
		if el != nil {
			obj.obj[strconv.Itoa(i)] = el
		}
	}
	return obj
}

// nodeFromValue seeds a tree position from an existing event value, so
// dotted fields merge into containers the payload already carried.
func nodeFromValue(v any) *node {
	switch val := v.(type) {
	case map[string]any:
		n := objectNode()
		for k, el := range val {
			n.obj[k] = nodeFromValue(el)
		}
		return n
	case []any:
		n := arrayNode()
		for _, el := range val {
			n.arr = append(n.arr, nodeFromValue(el))
		}
		return n
	default:
		return scalarNode(v)
	}
}

// nodeToValue renders a tree back into plain Go values for the field set.
func nodeToValue(n *node) any {
	switch n.kind {
	case kindObject:
		out := make(map[string]any, len(n.obj))
		for k, child := range n.obj {
			out[k] = nodeToValue(child)
		}
		return out
	case kindArray:
		out := make([]any, len(n.arr))
		for i, child := range n.arr {
			if child != nil {
				out[i] = nodeToValue(child)
			}
		}
		return out
	default:
		return n.value
	}
}
