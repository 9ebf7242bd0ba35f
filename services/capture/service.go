package capture

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"pricelake/lib/scrapers/grocery"
	"pricelake/services/capture/bronze"
	"pricelake/services/capture/db"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/capture")

type Request struct {
	Region int
	Store  int
	// OutputDir is the root of the bronze tree
	OutputDir string
	Compress  bool
}

type Summary struct {
	JobId     string
	OutputDir string
	Pages     int
	Skus      int
	Duration  time.Duration
}

type Service struct {
	client *grocery.Client
	qry    *db.Queries
}

// NewService wires a search api client to the bronze writer. database may
// be nil, in which case runs are not recorded in a catalog.
func NewService(client *grocery.Client, database *sql.DB) Service {
	s := Service{client: client}
	if database != nil {
		s.qry = db.New(database)
	}
	return s
}

// Capture runs one full store capture: crawl every reachable page and
// persist each payload verbatim under a fresh run directory. The first
// hard error aborts the run, there is no partial-failure recovery.
func (s Service) Capture(ctx context.Context, req Request) (Summary, error) {
	ctx, span := tracer.Start(ctx, "Capture")
	defer span.End()

	jobId := uuid.NewString()
	start := time.Now().UTC()
	span.SetAttributes(
		attribute.String("job_id", jobId),
		attribute.Int("region", req.Region),
		attribute.Int("store", req.Store),
	)

	manifest := bronze.Manifest{
		Id:        jobId,
		Region:    fmt.Sprintf("%03d", req.Region),
		Store:     fmt.Sprintf("%03d", req.Store),
		Host:      s.client.Host(),
		Path:      s.client.SearchPath(),
		Start:     start,
		PageLimit: s.client.PageLimit(),
	}
	writer, err := bronze.NewRunWriter(req.OutputDir, manifest, req.Compress)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Summary{}, err
	}
	defer writer.Close()

	if s.qry != nil {
		err = s.qry.CreateCaptureRun(ctx, db.CreateCaptureRunParams{
			ID:        jobId,
			Region:    manifest.Region,
			Store:     manifest.Store,
			Host:      manifest.Host,
			OutputDir: writer.Dir(),
			StartedAt: start.Unix(),
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return Summary{}, err
		}
	}

	pages := 0
	skus := map[string]struct{}{}
	err = s.client.CrawlStore(ctx, req.Region, req.Store, func(page grocery.Page) error {
		path, err := writer.WritePage(page.Offset, page.FetchedAt, page.Body)
		if err != nil {
			return err
		}
		pages++
		for _, sku := range page.Skus {
			skus[sku] = struct{}{}
		}

		if s.qry == nil {
			return nil
		}
		return s.qry.CreateCapturePage(ctx, db.CreateCapturePageParams{
			RunID:      jobId,
			Path:       path,
			ItemOffset: int64(page.Offset),
			FetchedAt:  page.FetchedAt.Unix(),
			SizeBytes:  int64(len(page.Body)),
		})
	})
	if err != nil {
		s.finishRun(ctx, jobId, pages, len(skus), "failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Summary{}, err
	}

	err = s.finishRun(ctx, jobId, pages, len(skus), "complete")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Summary{}, err
	}

	summary := Summary{
		JobId:     jobId,
		OutputDir: writer.Dir(),
		Pages:     pages,
		Skus:      len(skus),
		Duration:  time.Since(start),
	}
	slog.Info(
		"capture complete",
		"job_id", summary.JobId,
		"pages", summary.Pages,
		"skus", summary.Skus,
		"seconds", summary.Duration.Seconds(),
	)
	return summary, nil
}

func (s Service) finishRun(ctx context.Context, jobId string, pages, skus int, status string) error {
	if s.qry == nil {
		return nil
	}
	err := s.qry.FinishCaptureRun(ctx, db.FinishCaptureRunParams{
		ID:         jobId,
		FinishedAt: time.Now().UTC().Unix(),
		Pages:      int64(pages),
		Skus:       int64(skus),
		Status:     status,
	})
	if err != nil && status == "failed" {
		// the crawl error is the one worth surfacing
		slog.Warn("failed to mark catalog run as failed", "job_id", jobId, "err", err)
		return nil
	}
	return err
}
