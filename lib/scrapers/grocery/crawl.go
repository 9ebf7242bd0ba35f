package grocery

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// errCrawlDone is the internal signal that every reported product has been
// observed and the remaining plan can be skipped.
var errCrawlDone = errors.New("crawl complete")

// CrawlStore captures every reachable product page for a store, choosing a
// strategy based on how the catalog size compares to the api's offset cap:
//
//	n <= cap    walk straight through
//	n <= 2*cap  walk under a random dual sort, then again under its inverse
//	otherwise   plan a facet-filtered crawl and track seen skus
//
// fn is called once per captured page, in fetch order.
func (c *Client) CrawlStore(ctx context.Context, region, store int, fn func(Page) error) error {
	ctx, span := tracer.Start(ctx, "CrawlStore")
	defer span.End()

	total, err := c.TotalProductCount(ctx, region, store)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(attribute.Int("total_products", total))
	slog.Info("store catalog size reported", "region", region, "store", store, "total", total)

	seen := map[string]struct{}{}
	observe := func(page Page) error {
		err := fn(page)
		if err != nil {
			return err
		}
		for _, sku := range page.Skus {
			seen[sku] = struct{}{}
		}
		if total > c.opts.MaxPageItems && len(seen) >= total {
			return errCrawlDone
		}
		return nil
	}

	switch {
	case total <= c.opts.MaxPageItems:
		err = c.CrawlResults(ctx, CrawlOptions{Region: region, Store: store}, observe)
	case total <= 2*c.opts.MaxPageItems:
		err = c.crawlDual(ctx, region, store, nil, observe)
	default:
		err = c.crawlFaceted(ctx, region, store, total, observe)
	}
	if errors.Is(err, errCrawlDone) {
		err = nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetAttributes(attribute.Int("skus_seen", len(seen)))
	return nil
}

// crawlDual walks the same result window forward under a random sort order
// and then again under its inverse, reaching up to twice the offset cap.
func (c *Client) crawlDual(ctx context.Context, region, store int, filter map[string]string, fn func(Page) error) error {
	sortBy := randomDualSort()
	inverse, _ := sortBy.Dual()
	slog.Info("dual-sort crawl", "first", sortBy, "second", inverse)

	err := c.CrawlResults(ctx, CrawlOptions{
		Region: region, Store: store, Sort: sortBy, Filter: filter,
	}, fn)
	if err != nil {
		return err
	}
	return c.CrawlResults(ctx, CrawlOptions{
		Region: region, Store: store, Sort: inverse, Filter: filter,
	}, fn)
}

// crawlFaceted plans a crawl over facet filters when even dual sorting
// cannot reach the whole catalog. Filters are ranked by the number of items
// they unlock, perturbed a little so runs differ, and walked until every
// reported product has shown up. Child filters of an exhausted filter are
// skipped, their items were already covered by the parent.
func (c *Client) crawlFaceted(ctx context.Context, region, store, total int, fn func(Page) error) error {
	facets, err := c.Facets(ctx, region, store)
	if err != nil {
		return err
	}

	var filters []FacetFlat
	for _, facet := range facets {
		filters = append(filters, FlattenFacet(facet)...)
	}
	// the null filter crawls with no facet applied at all
	filters = append(filters, FacetFlat{NumItems: total})

	filters = Perturb(RankFilters(filters), 2, 0.3)

	exhausted := map[string]bool{}
	for _, filter := range filters {
		if exhausted[filter.Id()] {
			continue
		}
		slog.Info("crawling filter", "filter", filter.Id(), "items", filter.NumItems)

		var params map[string]string
		if filter.Key != "" {
			params = map[string]string{filter.Key: filter.Value}
		}

		if filter.NumItems >= c.opts.MaxPageItems {
			err = c.crawlDual(ctx, region, store, params, fn)
		} else {
			err = c.CrawlResults(ctx, CrawlOptions{
				Region: region, Store: store,
				Sort:   randomWeightedSort(),
				Filter: params,
			}, fn)
		}
		if err != nil {
			return err
		}

		exhausted[filter.Id()] = true
		for _, child := range filter.Children {
			exhausted[filter.Key+"="+child] = true
		}
	}
	return nil
}

func randomDualSort() SortBy {
	sorts := DualSorts()
	i, err := random.IntRange(0, len(sorts))
	if err != nil {
		return sorts[0]
	}
	return sorts[i%len(sorts)]
}

// randomWeightedSort picks a sort order roughly the way a person browsing
// would: mostly relevance, sometimes price ascending, rarely the rest.
func randomWeightedSort() SortBy {
	roll, err := random.IntRange(0, 1000)
	if err != nil {
		return SortRelevance
	}
	switch {
	case roll < 700:
		return SortRelevance
	case roll < 900:
		return SortPriceAsc
	case roll < 933:
		return SortPriceDesc
	case roll < 966:
		return SortNameAsc
	default:
		return SortNameDesc
	}
}
