package grocery

import (
	"sort"

	"github.com/mazen160/go-random"
)

// FacetFlat is one usable filter flattened out of the facet value tree.
type FacetFlat struct {
	// query parameter name, e.g. usaSnapEligible
	Key string
	// parameter value, e.g. "true"
	Value string
	// number of items the api reports behind this filter
	NumItems int
	// value keys of this filter's children in the facet tree
	Children []string
}

// Id uniquely identifies a filter across facets.
func (f FacetFlat) Id() string {
	return f.Key + "=" + f.Value
}

func flattenFacetValue(value FacetValue) []FacetValue {
	out := []FacetValue{value}
	for _, child := range value.Children {
		out = append(out, flattenFacetValue(child)...)
	}
	return out
}

// FlattenFacet turns a facet's value tree into a flat filter list.
func FlattenFacet(facet Facet) []FacetFlat {
	key := facet.Config.ParameterName

	var all []FacetValue
	for _, value := range facet.Values {
		all = append(all, flattenFacetValue(value)...)
	}

	out := make([]FacetFlat, 0, len(all))
	for _, value := range all {
		children := make([]string, 0, len(value.Children))
		for _, child := range value.Children {
			children = append(children, child.Key)
		}
		out = append(out, FacetFlat{
			Key:      key,
			Value:    value.Key,
			NumItems: value.DocCount,
			Children: children,
		})
	}
	return out
}

// RankFilters orders filters by how many items they unlock, biggest first.
// The null filter (crawl everything) should already be in the list.
func RankFilters(filters []FacetFlat) []FacetFlat {
	out := make([]FacetFlat, len(filters))
	copy(out, filters)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].NumItems > out[j].NumItems
	})
	return out
}

// Perturb randomly swaps nearby elements so successive runs don't hit the
// api in exactly the same filter order.
func Perturb(filters []FacetFlat, radius int, prob float64) []FacetFlat {
	n := len(filters)
	out := make([]FacetFlat, n)
	copy(out, filters)

	threshold := int(prob * 1000)
	for i := 0; i < n; i++ {
		roll, err := random.IntRange(0, 1000)
		if err != nil || roll >= threshold {
			continue
		}

		lo := i - radius
		if lo < 0 {
			lo = 0
		}
		hi := i + radius
		if hi > n-1 {
			hi = n - 1
		}
		j, err := random.IntRange(lo, hi+1)
		if err != nil {
			continue
		}
		if j > n-1 {
			j = n - 1
		}
		out[i], out[j] = out[j], out[i]
	}
	return out
}
