package bronze

import (
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// ReadArtifact loads an artifact from disk, transparently decompressing
// `.zst` files, and returns the original payload bytes.
func ReadArtifact(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".zst") {
		return data, nil
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
