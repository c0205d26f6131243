package hashmap

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mtots-lang/mtots/internal/value"
)

var testStrings = NewStringPool()

func str(s string) value.Value { return value.Str(testStrings.Intern(s)) }

func TestSetGetOverwritesReturnIsNewFlag(t *testing.T) {
	tbl := NewTable()

	isNew, err := tbl.Set(str("a"), value.Number(1))
	require.NoError(t, err)
	require.True(t, isNew)

	isNew, err = tbl.Set(str("a"), value.Number(2))
	require.NoError(t, err)
	require.False(t, isNew, "re-setting an existing key is not a new insertion")

	v, ok, err := tbl.Get(str("a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, float64(2), v.Num)
	require.Equal(t, 1, tbl.Len())
}

func TestGetMissingKeyOnEmptyAndNonEmptyTable(t *testing.T) {
	tbl := NewTable()
	_, ok, err := tbl.Get(str("missing"))
	require.NoError(t, err)
	require.False(t, ok)

	_, _ = tbl.Set(str("present"), value.Number(1))
	_, ok, err = tbl.Get(str("missing"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeleteThenReinsertIsTombstoneSafe(t *testing.T) {
	tbl := NewTable()
	_, _ = tbl.Set(str("a"), value.Number(1))
	_, _ = tbl.Set(str("b"), value.Number(2))

	deleted, err := tbl.Delete(str("a"))
	require.NoError(t, err)
	require.True(t, deleted)
	require.Equal(t, 1, tbl.Len())

	deleted, err = tbl.Delete(str("a"))
	require.NoError(t, err)
	require.False(t, deleted, "deleting an already-absent key reports false")

	isNew, err := tbl.Set(str("a"), value.Number(3))
	require.NoError(t, err)
	require.True(t, isNew)

	v, ok, err := tbl.Get(str("a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, float64(3), v.Num)
}

func TestRGetFindsFirstMatchingValue(t *testing.T) {
	tbl := NewTable()
	_, _ = tbl.Set(str("a"), value.Number(1))
	_, _ = tbl.Set(str("b"), value.Number(2))

	k, ok := tbl.RGet(value.Number(2))
	require.True(t, ok)
	require.Equal(t, "b", k.Str.Value)

	_, ok = tbl.RGet(value.Number(99))
	require.False(t, ok)
}

func TestUnhashableKeyErrorsOnGetSetDelete(t *testing.T) {
	tbl := NewTable()
	list := value.Obj(value.NewList(nil))

	_, err := tbl.Set(list, value.Number(1))
	require.Error(t, err)
	require.Contains(t, err.Error(), "not hashable")

	_, _, err = tbl.Get(list)
	require.Error(t, err)

	_, err = tbl.Delete(list)
	require.Error(t, err)
}

// TestIterationOrderSurvivesRehashAndUnrelatedDeletes exercises testable
// invariant 4: map iteration order equals insertion order, even after
// rehashes and deletions of *other* keys.
func TestIterationOrderSurvivesRehashAndUnrelatedDeletes(t *testing.T) {
	tbl := NewTable()

	const n = 40
	var inserted []string
	for i := 0; i < n; i++ {
		k := fmt.Sprintf("key%02d", i)
		isNew, err := tbl.Set(str(k), value.Number(float64(i)))
		require.NoError(t, err)
		require.True(t, isNew)
		inserted = append(inserted, k)
	}

	// Delete every third key; the rest must keep their original relative order.
	var expected []string
	for i, k := range inserted {
		if i%3 == 0 {
			deleted, err := tbl.Delete(str(k))
			require.NoError(t, err)
			require.True(t, deleted)
			continue
		}
		expected = append(expected, k)
	}

	var seen []string
	tbl.Each(func(k, v value.Value) {
		seen = append(seen, k.Str.Value)
	})
	require.Equal(t, expected, seen)
	require.Equal(t, len(expected), tbl.Len())
}

func TestEachOnEmptyTableVisitsNothing(t *testing.T) {
	tbl := NewTable()
	count := 0
	tbl.Each(func(k, v value.Value) { count++ })
	require.Equal(t, 0, count)
}
