package grocery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func uniqueSkus(pages []Page) map[string]struct{} {
	out := map[string]struct{}{}
	for _, p := range pages {
		for _, sku := range p.Skus {
			out[sku] = struct{}{}
		}
	}
	return out
}

func TestCrawlStoreSmallCatalog(t *testing.T) {
	upstream := &searchServer{total: 100}
	server := newSearchTestServer(t, upstream)

	client := newTestClient(t, server.URL, ClientOptions{PageLimit: 60, MaxPageItems: 1000})

	var pages []Page
	err := client.CrawlStore(context.Background(), 479, 30, func(p Page) error {
		pages = append(pages, p)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	require.Len(t, uniqueSkus(pages), 100)
}

func TestCrawlStoreDualSortCatalog(t *testing.T) {
	// more products than the offset cap can reach under one sort order,
	// but within reach of a sort and its inverse
	upstream := &searchServer{total: 150}
	server := newSearchTestServer(t, upstream)

	client := newTestClient(t, server.URL, ClientOptions{PageLimit: 60, MaxPageItems: 100})

	var pages []Page
	err := client.CrawlStore(context.Background(), 479, 30, func(p Page) error {
		pages = append(pages, p)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	require.Len(t, uniqueSkus(pages), 150)
}

func TestCrawlStoreFacetedCatalog(t *testing.T) {
	upstream := &searchServer{
		total: 300,
		facets: []Facet{{
			Name:   "snap",
			Config: FacetConfig{ParameterName: "usaSnapEligible"},
			Values: []FacetValue{{Key: "true", DocCount: 80}},
		}},
	}
	server := newSearchTestServer(t, upstream)

	client := newTestClient(t, server.URL, ClientOptions{PageLimit: 60, MaxPageItems: 100})

	var pages []Page
	err := client.CrawlStore(context.Background(), 479, 30, func(p Page) error {
		pages = append(pages, p)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	// the crawl keeps working filters until every reported sku shows up
	require.Len(t, uniqueSkus(pages), 300)
}

func TestCrawlStorePropagatesCallbackError(t *testing.T) {
	upstream := &searchServer{total: 100}
	server := newSearchTestServer(t, upstream)

	client := newTestClient(t, server.URL, ClientOptions{PageLimit: 60})

	boom := context.DeadlineExceeded
	err := client.CrawlStore(context.Background(), 479, 30, func(p Page) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
}
