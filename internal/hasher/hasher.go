package hasher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"keeper/internal/pipeline"
)

// DefaultChunkSize bounds each read while streaming file content.
const DefaultChunkSize = 8 * 1024 * 1024

// Hasher streams files into SHA-256 digests using a fixed chunk size.
type Hasher struct {
	chunkSize int
}

// New returns a Hasher reading in chunks of the given size. Sizes <= 0 fall
// back to DefaultChunkSize.
func New(chunkSize int) *Hasher {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Hasher{chunkSize: chunkSize}
}

// SumFile hashes the file at path. Read failures (permission denial, device
// error, file vanished mid-read) are tagged with pipeline.ErrIO so callers
// can mark the row errored and continue.
func (h *Hasher) SumFile(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", pipeline.Wrap(pipeline.ErrIO, "", "open", path, err)
	}
	defer file.Close()

	digest, err := h.Sum(ctx, file)
	if err != nil {
		return "", pipeline.Wrap(pipeline.ErrIO, "", "read", path, err)
	}
	return digest, nil
}

// Sum hashes everything readable from r. The context is checked between
// chunks so a cancelled run stops without waiting out a large file.
func (h *Hasher) Sum(ctx context.Context, r io.Reader) (string, error) {
	sum := sha256.New()
	buf := make([]byte, h.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := sum.Write(buf[:n]); werr != nil {
				return "", fmt.Errorf("update digest: %w", werr)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(sum.Sum(nil)), nil
}
