// Package bronze persists raw api payloads to the capture data lake.
// Artifacts are write-once: a payload is written to a temp file and renamed
// into place, and an existing destination is always an error. Nothing in
// this package ever rewrites or deletes an artifact.
package bronze

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
)

var ErrArtifactExists = errors.New("artifact already exists")

// Manifest describes one capture run. It is written first, before any page,
// so a run directory is identifiable even if the crawl dies immediately.
type Manifest struct {
	Id        string    `json:"id"`
	Region    string    `json:"region"`
	Store     string    `json:"store"`
	Host      string    `json:"host"`
	Path      string    `json:"path"`
	Start     time.Time `json:"start"`
	PageLimit int       `json:"page_limit"`
}

// RunDir derives the directory for a run from its manifest:
//
//	<root>/<region>-<store>/<start, UTC compact>_<first 8 of job id>
//
// The derivation is deterministic so a run can be located again from the
// catalog (or a shell glob) without any index.
func RunDir(root string, m Manifest) string {
	return filepath.Join(
		root,
		fmt.Sprintf("%s-%s", m.Region, m.Store),
		fmt.Sprintf("%s_%s", m.Start.UTC().Format("20060102T150405Z"), shortId(m.Id)),
	)
}

func shortId(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type RunWriter struct {
	dir      string
	compress bool
	enc      *zstd.Encoder
}

// NewRunWriter creates the run directory and writes the manifest.
func NewRunWriter(root string, manifest Manifest, compress bool) (*RunWriter, error) {
	dir := RunDir(root, manifest)
	err := os.MkdirAll(filepath.Join(dir, "pages"), 0755)
	if err != nil {
		return nil, err
	}

	w := &RunWriter{dir: dir, compress: compress}
	if compress {
		// level 10 of the reference zstd cli sits between "better" and
		// "best", better is the closest this encoder offers
		w.enc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return nil, err
		}
	}

	encoded, err := json.Marshal(manifest)
	if err != nil {
		return nil, err
	}
	err = w.writeArtifact(filepath.Join(dir, "meta.json"+w.ext()), encoded)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RunWriter) Dir() string {
	return w.dir
}

func (w *RunWriter) ext() string {
	if w.compress {
		return ".zst"
	}
	return ""
}

// WritePage stores one page payload byte-for-byte (modulo compression) and
// returns the artifact path. Page names order by offset, then fetch time.
func (w *RunWriter) WritePage(offset int, fetchedAt time.Time, payload []byte) (string, error) {
	name := fmt.Sprintf("%06d_%s.json%s", offset, fetchedAt.UTC().Format(time.RFC3339Nano), w.ext())
	path := filepath.Join(w.dir, "pages", name)
	err := w.writeArtifact(path, payload)
	if err != nil {
		return "", err
	}
	return path, nil
}

func (w *RunWriter) writeArtifact(path string, data []byte) error {
	_, err := os.Stat(path)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrArtifactExists, path)
	}
	if !os.IsNotExist(err) {
		return err
	}

	if w.compress {
		data = w.enc.EncodeAll(data, nil)
	}

	// temp file + rename, so a crash mid-write can never leave a partial
	// artifact under the final name
	tmp := path + ".tmp"
	err = os.WriteFile(tmp, data, 0644)
	if err != nil {
		os.Remove(tmp)
		return err
	}
	err = os.Rename(tmp, path)
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Close releases the encoder. The writer must not be used afterwards.
func (w *RunWriter) Close() {
	if w.enc != nil {
		w.enc.Close()
	}
}
