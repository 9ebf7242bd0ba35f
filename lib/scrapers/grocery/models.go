package grocery

import (
	"time"
)

// Pagination is the window bookkeeping the api reports on every page.
type Pagination struct {
	Offset     int `json:"offset"`
	Limit      int `json:"limit"`
	TotalCount int `json:"totalCount"`
}

// Facet is one filterable dimension of the catalog (brand, category,
// snap eligibility, ...) together with its value tree.
type Facet struct {
	Name          string       `json:"name"`
	LocalizedName string       `json:"localizedName"`
	DocCount      int          `json:"docCount"`
	Config        FacetConfig  `json:"config"`
	Values        []FacetValue `json:"values"`
}

type FacetConfig struct {
	ParameterName string `json:"parameterName"`
	Type          string `json:"type"`
	IsMultiValue  bool   `json:"isMultiValue"`
}

type FacetValue struct {
	Key      string       `json:"key"`
	DocCount int          `json:"docCount"`
	Label    string       `json:"label"`
	Children []FacetValue `json:"children"`
}

// searchEnvelope is the minimal slice of the response schema the scraper
// has to understand to paginate. Everything else is passed through as
// opaque bytes, the whole point of the bronze layer is to not depend on
// the upstream schema at capture time.
type searchEnvelope struct {
	Data []struct {
		Sku string `json:"sku"`
	} `json:"data"`
	Meta struct {
		Pagination Pagination `json:"pagination"`
		Facets     []Facet    `json:"facets"`
	} `json:"meta"`
}

// Page is one captured result page: the verbatim payload plus the little
// bits of parsed structure pagination needs.
type Page struct {
	// Body is the payload exactly as the api returned it.
	Body []byte
	// FetchedAt is when the response was received, in UTC.
	FetchedAt time.Time
	// Offset is the item offset this page was requested at.
	Offset int
	// Skus lists the product skus present on this page.
	Skus []string
	// Pagination echoes the api's reported window for this page.
	Pagination Pagination
}
