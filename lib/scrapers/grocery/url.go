package grocery

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

type SortBy string

const (
	SortRelevance SortBy = "relevance"
	SortNameAsc   SortBy = "name_asc"
	SortNameDesc  SortBy = "name_desc"
	SortPriceAsc  SortBy = "price_asc"
	SortPriceDesc SortBy = "price_desc"
)

// sort orders that can be walked from both ends
var sortDuals = map[SortBy]SortBy{
	SortNameAsc:   SortNameDesc,
	SortNameDesc:  SortNameAsc,
	SortPriceAsc:  SortPriceDesc,
	SortPriceDesc: SortPriceAsc,
}

// Dual returns the opposite sort order, if there is one. Crawling a result
// window forward under a sort and then again under its dual doubles the
// number of reachable items under the api's offset cap.
func (s SortBy) Dual() (SortBy, bool) {
	d, ok := sortDuals[s]
	return d, ok
}

func DualSorts() []SortBy {
	out := make([]SortBy, 0, len(sortDuals))
	for s := range sortDuals {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// the query parameter order the webapp emits, matched so that scraper
// requests are indistinguishable from browser requests
var paramsOrder = []string{
	"currency",
	"serviceType",
	"q",
	"limit",
	"offset",
	"brandName",
	"categoryTree",
	"usaSnapEligible",
	"sort",
	"testVariant",
	"servicePoint",
}

// FormatServicePoint renders the region/store pair the way the webapp's
// session cookie carries it, e.g. region 479 store 30 -> "479-030".
func FormatServicePoint(region, store int) string {
	return fmt.Sprintf("%03d-%03d", region, store)
}

// buildSearchPath assembles the search query string with known parameters
// in webapp order and anything else (facet filters) after them.
func (c *Client) buildSearchPath(parameters map[string]string) string {
	known := map[string]bool{}
	for _, k := range paramsOrder {
		known[k] = true
	}

	ordered := make([][2]string, 0, len(parameters))
	for _, key := range paramsOrder {
		if v, ok := parameters[key]; ok {
			ordered = append(ordered, [2]string{key, v})
		}
	}
	var unknown []string
	for key := range parameters {
		if !known[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		ordered = append(ordered, [2]string{key, parameters[key]})
	}

	var query strings.Builder
	for i, kv := range ordered {
		if i == 0 {
			query.WriteByte('?')
		} else {
			query.WriteByte('&')
		}
		query.WriteString(url.QueryEscape(kv[0]))
		query.WriteByte('=')
		query.WriteString(url.QueryEscape(kv[1]))
	}

	return c.opts.Path + query.String()
}
