package bronze

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

func testManifest() Manifest {
	return Manifest{
		Id:        "f81d4fae-7dec-11d0-a765-00a0c91e6bf6",
		Region:    "479",
		Store:     "030",
		Host:      "api.example.com",
		Path:      "/api/v2/products/search",
		Start:     time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		PageLimit: 60,
	}
}

func TestRunDirIsDeterministic(t *testing.T) {
	m := testManifest()
	dir := RunDir("/lake", m)
	require.Equal(t, "/lake/479-030/20260314T092653Z_f81d4fae", dir)
	require.Equal(t, dir, RunDir("/lake", m))
}

func TestWriterRoundTrip(t *testing.T) {
	for _, compress := range []bool{true, false} {
		root := t.TempDir()
		m := testManifest()

		w, err := NewRunWriter(root, m, compress)
		if err != nil {
			t.Fatal(err)
		}
		defer w.Close()

		ext := ""
		if compress {
			ext = ".zst"
		}

		// the manifest is written before any page
		meta, err := ReadArtifact(filepath.Join(w.Dir(), "meta.json"+ext))
		if err != nil {
			t.Fatal(err)
		}
		var decoded Manifest
		err = json.Unmarshal(meta, &decoded)
		if err != nil {
			t.Fatal(err)
		}
		require.Equal(t, m.Id, decoded.Id)
		require.Equal(t, m.Region, decoded.Region)

		payload := []byte(`{"data":[{"sku":"0001"}],"meta":{"pagination":{"offset":0,"limit":60,"totalCount":1}}}`)
		fetchedAt := time.Date(2026, 3, 14, 9, 27, 1, 123456789, time.UTC)

		path, err := w.WritePage(0, fetchedAt, payload)
		if err != nil {
			t.Fatal(err)
		}
		require.Equal(t,
			filepath.Join(w.Dir(), "pages", "000000_2026-03-14T09:27:01.123456789Z.json"+ext),
			path)

		got, err := ReadArtifact(path)
		if err != nil {
			t.Fatal(err)
		}
		// payloads must survive byte for byte
		require.Equal(t, payload, got)
	}
}

func TestWriterRefusesOverwrite(t *testing.T) {
	root := t.TempDir()
	w, err := NewRunWriter(root, testManifest(), false)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	fetchedAt := time.Now().UTC()
	first, err := w.WritePage(60, fetchedAt, []byte(`{"a":1}`))
	if err != nil {
		t.Fatal(err)
	}

	_, err = w.WritePage(60, fetchedAt, []byte(`{"a":2}`))
	require.ErrorIs(t, err, ErrArtifactExists)

	// the original artifact is untouched
	got, err := ReadArtifact(first)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, []byte(`{"a":1}`), got)
}

func TestWriterSamePageDifferentFetchTime(t *testing.T) {
	root := t.TempDir()
	w, err := NewRunWriter(root, testManifest(), false)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	base := time.Now().UTC()
	first, err := w.WritePage(0, base, []byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	second, err := w.WritePage(0, base.Add(time.Second), []byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	require.NotEqual(t, first, second)
}

func TestWriterLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	w, err := NewRunWriter(root, testManifest(), true)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	for offset := 0; offset < 300; offset += 60 {
		_, err := w.WritePage(offset, time.Now().UTC(), []byte(`{"offset":true}`))
		if err != nil {
			t.Fatal(err)
		}
	}

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		require.NotEqual(t, ".tmp", filepath.Ext(path))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
