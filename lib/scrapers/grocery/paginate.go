package grocery

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

func baseParams(region, store int) map[string]string {
	return map[string]string{
		"currency":     "USD",
		"testVariant":  "A",
		"servicePoint": FormatServicePoint(region, store),
		"q":            "",
	}
}

// searchPage issues one search request and splits the response into the
// verbatim payload and the parsed envelope pagination needs. A response
// that isn't json at all is treated as a block, not a payload.
func (c *Client) searchPage(ctx context.Context, params map[string]string) (Page, error) {
	res, err := c.get(ctx, c.buildSearchPath(params))
	if err != nil {
		return Page{}, err
	}
	fetchedAt := time.Now().UTC()

	contentType := res.Header().Get("content-type")
	if !strings.Contains(contentType, "application/json") {
		return Page{}, fmt.Errorf("%w: did not get json, got %q instead", ErrBlocked, contentType)
	}

	var envelope searchEnvelope
	err = json.Unmarshal(res.Body(), &envelope)
	if err != nil {
		return Page{}, fmt.Errorf("%w: endpoint sent back json that wasn't json: %v", ErrBlocked, err)
	}

	skus := make([]string, 0, len(envelope.Data))
	for _, datum := range envelope.Data {
		skus = append(skus, datum.Sku)
	}

	return Page{
		Body:       res.Body(),
		FetchedAt:  fetchedAt,
		Skus:       skus,
		Pagination: envelope.Meta.Pagination,
	}, nil
}

type CrawlOptions struct {
	Region int
	Store  int
	// Sort defaults to relevance, which the webapp never sends explicitly
	Sort SortBy
	// Filter holds extra facet query parameters, e.g. {"brandName": "Simply Nature"}
	Filter map[string]string
}

func donePaging(current, end, pageLimit, maxPageItems int) bool {
	unknownEnd := end < 0
	pastEnd := !unknownEnd && current >= end
	pastReachable := current > maxPageItems+pageLimit
	return pastReachable || pastEnd
}

// CrawlResults walks result pages sequentially, calling fn once per page,
// until the reported total is exhausted or the api's offset cap is hit.
//
// The end of the walk is learned from the first page's totalCount. If a
// later page reports a different total, the upstream catalog changed under
// us: the walk re-anchors on the new total and refetches the same offset.
func (c *Client) CrawlResults(ctx context.Context, opts CrawlOptions, fn func(Page) error) error {
	ctx, span := tracer.Start(ctx, "CrawlResults")
	defer span.End()
	span.SetAttributes(
		attribute.Int("region", opts.Region),
		attribute.Int("store", opts.Store),
		attribute.String("sort", string(opts.Sort)),
	)

	params := baseParams(opts.Region, opts.Store)
	if opts.Sort != "" && opts.Sort != SortRelevance {
		params["sort"] = string(opts.Sort)
	}
	for k, v := range opts.Filter {
		params[k] = v
	}

	end := -1
	current := 0
	for !donePaging(current, end, c.opts.PageLimit, c.opts.MaxPageItems) {
		offset := current
		if offset > c.opts.MaxPageItems {
			offset = c.opts.MaxPageItems
		}

		pageParams := make(map[string]string, len(params)+2)
		for k, v := range params {
			pageParams[k] = v
		}
		pageParams["limit"] = strconv.Itoa(c.opts.PageLimit)
		pageParams["offset"] = strconv.Itoa(offset)

		page, err := c.searchPage(ctx, pageParams)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		page.Offset = offset

		if end < 0 {
			end = page.Pagination.TotalCount
		}

		err = fn(page)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}

		if page.Pagination.TotalCount != end {
			end = -1
			continue
		}
		current += c.opts.PageLimit
	}

	return nil
}

// TotalProductCount probes the store's reported catalog size without
// walking any pages.
func (c *Client) TotalProductCount(ctx context.Context, region, store int) (int, error) {
	ctx, span := tracer.Start(ctx, "TotalProductCount")
	defer span.End()

	page, err := c.searchPage(ctx, baseParams(region, store))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	return page.Pagination.TotalCount, nil
}

// Facets fetches the filterable dimensions the api advertises for a store.
func (c *Client) Facets(ctx context.Context, region, store int) ([]Facet, error) {
	ctx, span := tracer.Start(ctx, "Facets")
	defer span.End()

	res, err := c.get(ctx, c.buildSearchPath(baseParams(region, store)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	contentType := res.Header().Get("content-type")
	if !strings.Contains(contentType, "application/json") {
		err = fmt.Errorf("%w: did not get json, got %q instead", ErrBlocked, contentType)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var envelope searchEnvelope
	err = json.Unmarshal(res.Body(), &envelope)
	if err != nil {
		err = fmt.Errorf("%w: facet response did not parse: %v", ErrBlocked, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return envelope.Meta.Facets, nil
}
