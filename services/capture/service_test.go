package capture

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"pricelake/lib/scrapers/grocery"
	"pricelake/lib/testutil"
	"pricelake/services/capture/bronze"
	"pricelake/services/capture/db"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

// fakeSearchApi serves synthetic product pages and remembers the exact
// bytes it sent for each offset, so tests can prove verbatim persistence.
type fakeSearchApi struct {
	mu       sync.Mutex
	total    int
	payloads map[int][]byte
	requests int
	// when set, every request past the first fails with this status
	failAfterFirst int
}

func (f *fakeSearchApi) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		f.requests++
		if f.failAfterFirst != 0 && f.requests > 1 {
			w.WriteHeader(f.failAfterFirst)
			return
		}

		q := r.URL.Query()
		offset, _ := strconv.Atoi(q.Get("offset"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		if limit <= 0 {
			limit = 60
		}

		type datum struct {
			Sku string `json:"sku"`
		}
		var data []datum
		for i := offset; i < offset+limit && i < f.total; i++ {
			data = append(data, datum{Sku: fmt.Sprintf("sku-%05d", i)})
		}
		body, err := json.Marshal(map[string]any{
			"data": data,
			"meta": map[string]any{
				"pagination": grocery.Pagination{Offset: offset, Limit: limit, TotalCount: f.total},
			},
		})
		if err != nil {
			panic(err)
		}

		if q.Has("limit") {
			if f.payloads == nil {
				f.payloads = map[int][]byte{}
			}
			f.payloads[offset] = body
		}
		w.Header().Set("content-type", "application/json")
		w.Write(body)
	}
}

func setupCaptureTest(t *testing.T, upstream *fakeSearchApi) (Service, *db.Queries) {
	t.Helper()

	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/capture",
		DbSchema: db.Schema,
	})
	t.Cleanup(cleanup)

	server := httptest.NewServer(upstream.handler())
	t.Cleanup(server.Close)

	client, err := grocery.NewClientWithBaseURL(server.URL, grocery.ClientOptions{
		Host:          "api.example.com",
		Path:          "/search",
		PageLimit:     60,
		RetryMaxTries: 2,
	})
	if err != nil {
		t.Fatal(err)
	}

	return NewService(client, setup.DB), db.New(setup.DB)
}

func TestCapture(t *testing.T) {
	upstream := &fakeSearchApi{total: 100}
	service, queries := setupCaptureTest(t, upstream)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	root := t.TempDir()
	summary, err := service.Capture(ctx, Request{
		Region:    479,
		Store:     30,
		OutputDir: root,
		Compress:  true,
	})
	if err != nil {
		t.Fatal(err)
	}

	require.Equal(t, 2, summary.Pages)
	require.Equal(t, 100, summary.Skus)

	// the run is recorded in the catalog, complete, with its pages
	runs, err := queries.ListCaptureRuns(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, runs, 1)
	require.Equal(t, summary.JobId, runs[0].ID)
	require.Equal(t, "complete", runs[0].Status)
	require.Equal(t, "479", runs[0].Region)
	require.Equal(t, "030", runs[0].Store)
	require.Equal(t, int64(2), runs[0].Pages)
	require.Equal(t, int64(100), runs[0].Skus)
	require.True(t, runs[0].FinishedAt.Valid)

	pages, err := queries.ListRunPages(ctx, summary.JobId)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, pages, 2)

	// every artifact decompresses to exactly the bytes the api sent
	for _, page := range pages {
		got, err := bronze.ReadArtifact(page.Path)
		if err != nil {
			t.Fatal(err)
		}
		require.Equal(t, upstream.payloads[int(page.ItemOffset)], got)
	}

	// the manifest identifies the run without consulting the catalog
	meta, err := bronze.ReadArtifact(filepath.Join(summary.OutputDir, "meta.json.zst"))
	if err != nil {
		t.Fatal(err)
	}
	var manifest bronze.Manifest
	err = json.Unmarshal(meta, &manifest)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, summary.JobId, manifest.Id)
	require.Equal(t, "api.example.com", manifest.Host)
}

func TestCaptureUncompressed(t *testing.T) {
	upstream := &fakeSearchApi{total: 10}
	service, _ := setupCaptureTest(t, upstream)

	root := t.TempDir()
	summary, err := service.Capture(context.Background(), Request{
		Region:    479,
		Store:     30,
		OutputDir: root,
	})
	if err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(filepath.Join(summary.OutputDir, "pages"))
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, entries, 1)
	require.Equal(t, ".json", filepath.Ext(entries[0].Name()))

	got, err := bronze.ReadArtifact(filepath.Join(summary.OutputDir, "pages", entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, upstream.payloads[0], got)
}

func TestCaptureHaltsAndMarksRunFailed(t *testing.T) {
	upstream := &fakeSearchApi{total: 100, failAfterFirst: 404}
	service, queries := setupCaptureTest(t, upstream)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	root := t.TempDir()
	_, err := service.Capture(ctx, Request{
		Region:    479,
		Store:     30,
		OutputDir: root,
		Compress:  true,
	})
	require.ErrorIs(t, err, grocery.ErrBlocked)

	// a 404 is treated as a block, not something to retry through
	require.Equal(t, 2, upstream.requests)

	runs, err := queries.ListCaptureRuns(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, runs, 1)
	require.Equal(t, "failed", runs[0].Status)

	pages, err := queries.ListRunPages(ctx, runs[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	require.Empty(t, pages)
}

func TestCaptureWithoutCatalog(t *testing.T) {
	upstream := &fakeSearchApi{total: 10}

	server := httptest.NewServer(upstream.handler())
	t.Cleanup(server.Close)

	client, err := grocery.NewClientWithBaseURL(server.URL, grocery.ClientOptions{
		Host:      "api.example.com",
		Path:      "/search",
		PageLimit: 60,
	})
	if err != nil {
		t.Fatal(err)
	}

	service := NewService(client, nil)
	summary, err := service.Capture(context.Background(), Request{
		Region:    1,
		Store:     2,
		OutputDir: t.TempDir(),
		Compress:  true,
	})
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 1, summary.Pages)
	require.Equal(t, 10, summary.Skus)
}
