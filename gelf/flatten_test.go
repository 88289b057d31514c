package gelf_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/logstream/gelf"
)

// expand runs only the nested-expansion pass over a hand-built field set and
// returns the resulting fields.
func expand(t *testing.T, fields map[string]any) map[string]any {
	t.Helper()
	tr := gelf.NewTransformer(gelf.TransformConfig{NestedObjects: true})
	ev := &gelf.Event{Fields: fields}
	require.NoError(t, tr.Transform(ev))
	return ev.Fields
}

func TestExpand_DottedKeyBecomesObject(t *testing.T) {
	got := expand(t, map[string]any{"toto.titi": "objectValue"})

	want := map[string]any{
		"toto": map[string]any{"titi": "objectValue"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("field mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_NumericSegmentsBecomeArray(t *testing.T) {
	got := expand(t, map[string]any{
		"foo.0": "first",
		"foo.1": "second",
	})

	want := map[string]any{
		"foo": []any{"first", "second"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("field mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_NonNumericSiblingCoercesArrayToObject(t *testing.T) {
	got := expand(t, map[string]any{
		"not_an_array.0":      "bob",
		"not_an_array.1":      "alice",
		"not_an_array.length": "carol",
	})

	want := map[string]any{
		"not_an_array": map[string]any{
			"0":      "bob",
			"1":      "alice",
			"length": "carol",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("field mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_DeepPath(t *testing.T) {
	got := expand(t, map[string]any{"a.b.c.d": true})

	want := map[string]any{
		"a": map[string]any{
			"b": map[string]any{
				"c": map[string]any{"d": true},
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("field mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_TrailingDotMakesEmptyKey(t *testing.T) {
	got := expand(t, map[string]any{"weird.": "v"})

	want := map[string]any{
		"weird": map[string]any{"": "v"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("field mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_MergesIntoExistingObject(t *testing.T) {
	got := expand(t, map[string]any{
		"app":         map[string]any{"name": "billing"},
		"app.version": "2.4",
	})

	want := map[string]any{
		"app": map[string]any{"name": "billing", "version": "2.4"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("field mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_ReplacesExistingScalar(t *testing.T) {
	got := expand(t, map[string]any{
		"app":      "just a string",
		"app.name": "billing",
	})

	want := map[string]any{
		"app": map[string]any{"name": "billing"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("field mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_ArrayHolesRenderAsNull(t *testing.T) {
	got := expand(t, map[string]any{
		"foo.0": "first",
		"foo.2": "third",
	})

	want := map[string]any{
		"foo": []any{"first", nil, "third"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("field mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_CoercionDropsHoles(t *testing.T) {
	got := expand(t, map[string]any{
		"foo.0":   "first",
		"foo.2":   "third",
		"foo.bar": "x",
	})

	// Index 1 was never assigned, so the coerced object has no "1" key.
	want := map[string]any{
		"foo": map[string]any{"0": "first", "2": "third", "bar": "x"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("field mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_SharedPrefixBuildsOneTree(t *testing.T) {
	got := expand(t, map[string]any{
		"svc.name":         "billing",
		"svc.region":       "eu",
		"svc.replicas.0":   "a",
		"svc.replicas.1":   "b",
		"svc.meta.version": "1",
	})

	want := map[string]any{
		"svc": map[string]any{
			"name":     "billing",
			"region":   "eu",
			"replicas": []any{"a", "b"},
			"meta":     map[string]any{"version": "1"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("field mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_NumericKeyIntoExistingObjectStaysObject(t *testing.T) {
	got := expand(t, map[string]any{
		"obj":   map[string]any{"a": "1"},
		"obj.0": "v",
	})

	// Arrays are only created for containers that do not exist yet.
	want := map[string]any{
		"obj": map[string]any{"a": "1", "0": "v"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("field mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_MergesIntoExistingArray(t *testing.T) {
	got := expand(t, map[string]any{
		"list":   []any{"a", "b"},
		"list.3": "d",
	})

	want := map[string]any{
		"list": []any{"a", "b", nil, "d"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("field mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_OversizedIndexFallsBackToObject(t *testing.T) {
	got := expand(t, map[string]any{"big.999999999": "v"})

	// Indices beyond the array bound are treated as object keys rather than
	// allocating enormous slices.
	want := map[string]any{
		"big": map[string]any{"999999999": "v"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("field mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_OverlappingPathsResolveInSortedOrder(t *testing.T) {
	got := expand(t, map[string]any{
		"a.b":   "scalar",
		"a.b.c": "deep",
	})

	// Keys apply in sorted order, so the deeper path lands last and wins.
	want := map[string]any{
		"a": map[string]any{
			"b": map[string]any{"c": "deep"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("field mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_UndottedFieldsUntouched(t *testing.T) {
	got := expand(t, map[string]any{
		"plain": "value",
		"n":     42,
		"a.b":   "nested",
	})

	assert.Equal(t, "value", got["plain"])
	assert.Equal(t, 42, got["n"])
	_, dotted := got["a.b"]
	assert.False(t, dotted, "dotted original removed")
}

func TestExpand_NoDottedFieldsIsNoop(t *testing.T) {
	fields := map[string]any{"message": "hi", "level": 6}
	got := expand(t, fields)

	want := map[string]any{"message": "hi", "level": 6}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("field mismatch (-want +got):\n%s", diff)
	}
}
