package grocery

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlattenFacet(t *testing.T) {
	facet := Facet{
		Name:   "category",
		Config: FacetConfig{ParameterName: "categoryTree"},
		Values: []FacetValue{
			{
				Key:      "produce",
				DocCount: 120,
				Children: []FacetValue{
					{Key: "produce/fruit", DocCount: 70},
					{Key: "produce/vegetables", DocCount: 50},
				},
			},
			{Key: "dairy", DocCount: 40},
		},
	}

	flat := FlattenFacet(facet)
	require.Len(t, flat, 4)

	byId := map[string]FacetFlat{}
	for _, f := range flat {
		byId[f.Id()] = f
	}

	produce := byId["categoryTree=produce"]
	require.Equal(t, 120, produce.NumItems)
	require.Equal(t, []string{"produce/fruit", "produce/vegetables"}, produce.Children)

	fruit := byId["categoryTree=produce/fruit"]
	require.Equal(t, 70, fruit.NumItems)
	require.Empty(t, fruit.Children)

	require.Contains(t, byId, "categoryTree=dairy")
}

func TestRankFilters(t *testing.T) {
	filters := []FacetFlat{
		{Key: "a", Value: "1", NumItems: 10},
		{Key: "b", Value: "2", NumItems: 300},
		{Key: "c", Value: "3", NumItems: 40},
		// the null filter should rank first
		{NumItems: 1000},
	}
	ranked := RankFilters(filters)

	require.Equal(t, "=", ranked[0].Id())
	require.Equal(t, 300, ranked[1].NumItems)
	require.Equal(t, 40, ranked[2].NumItems)
	require.Equal(t, 10, ranked[3].NumItems)

	// input must not be reordered in place
	require.Equal(t, 10, filters[0].NumItems)
}

func TestPerturb(t *testing.T) {
	var filters []FacetFlat
	for i := 0; i < 50; i++ {
		filters = append(filters, FacetFlat{Key: "k", Value: string(rune('a' + i)), NumItems: i})
	}

	out := Perturb(filters, 2, 0.5)
	require.Len(t, out, len(filters))

	// the same filters come back, just possibly reordered
	ids := func(fs []FacetFlat) []string {
		var out []string
		for _, f := range fs {
			out = append(out, f.Id())
		}
		sort.Strings(out)
		return out
	}
	require.Equal(t, ids(filters), ids(out))
}

func TestPerturbZeroProbability(t *testing.T) {
	filters := []FacetFlat{
		{Key: "a", Value: "1"},
		{Key: "b", Value: "2"},
		{Key: "c", Value: "3"},
	}
	require.Equal(t, filters, Perturb(filters, 2, 0))
}
