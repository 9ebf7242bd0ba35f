package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type CaptureRun struct {
	ID         string
	Region     string
	Store      string
	Host       string
	OutputDir  string
	StartedAt  int64
	FinishedAt sql.NullInt64
	Pages      int64
	Skus       int64
	Status     string
}

type CapturePage struct {
	RunID      string
	Path       string
	ItemOffset int64
	FetchedAt  int64
	SizeBytes  int64
}

const createCaptureRun = `
INSERT INTO capture_run (id, region, store, host, output_dir, started_at, status)
VALUES (?, ?, ?, ?, ?, ?, 'running')
`

type CreateCaptureRunParams struct {
	ID        string
	Region    string
	Store     string
	Host      string
	OutputDir string
	StartedAt int64
}

func (q *Queries) CreateCaptureRun(ctx context.Context, arg CreateCaptureRunParams) error {
	_, err := q.db.ExecContext(ctx, createCaptureRun,
		arg.ID, arg.Region, arg.Store, arg.Host, arg.OutputDir, arg.StartedAt)
	return err
}

const finishCaptureRun = `
UPDATE capture_run
SET finished_at = ?, pages = ?, skus = ?, status = ?
WHERE id = ?
`

type FinishCaptureRunParams struct {
	ID         string
	FinishedAt int64
	Pages      int64
	Skus       int64
	Status     string
}

func (q *Queries) FinishCaptureRun(ctx context.Context, arg FinishCaptureRunParams) error {
	_, err := q.db.ExecContext(ctx, finishCaptureRun,
		arg.FinishedAt, arg.Pages, arg.Skus, arg.Status, arg.ID)
	return err
}

const createCapturePage = `
INSERT INTO capture_page (run_id, path, item_offset, fetched_at, size_bytes)
VALUES (?, ?, ?, ?, ?)
`

type CreateCapturePageParams struct {
	RunID      string
	Path       string
	ItemOffset int64
	FetchedAt  int64
	SizeBytes  int64
}

func (q *Queries) CreateCapturePage(ctx context.Context, arg CreateCapturePageParams) error {
	_, err := q.db.ExecContext(ctx, createCapturePage,
		arg.RunID, arg.Path, arg.ItemOffset, arg.FetchedAt, arg.SizeBytes)
	return err
}

const listCaptureRuns = `
SELECT id, region, store, host, output_dir, started_at, finished_at, pages, skus, status
FROM capture_run
ORDER BY started_at DESC
`

func (q *Queries) ListCaptureRuns(ctx context.Context) ([]CaptureRun, error) {
	rows, err := q.db.QueryContext(ctx, listCaptureRuns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CaptureRun
	for rows.Next() {
		var r CaptureRun
		err := rows.Scan(
			&r.ID, &r.Region, &r.Store, &r.Host, &r.OutputDir,
			&r.StartedAt, &r.FinishedAt, &r.Pages, &r.Skus, &r.Status,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const listRunPages = `
SELECT run_id, path, item_offset, fetched_at, size_bytes
FROM capture_page
WHERE run_id = ?
ORDER BY item_offset, fetched_at
`

func (q *Queries) ListRunPages(ctx context.Context, runID string) ([]CapturePage, error) {
	rows, err := q.db.QueryContext(ctx, listRunPages, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CapturePage
	for rows.Next() {
		var p CapturePage
		err := rows.Scan(&p.RunID, &p.Path, &p.ItemOffset, &p.FetchedAt, &p.SizeBytes)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
