package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"keeper/internal/pipeline"
)

// Fingerprint returns the SHA-256 of the manifest file bytes. Two manifests
// with the same fingerprint carry identical rows in identical order, which
// is what resume state relies on for drift detection.
func Fingerprint(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", pipeline.Wrap(pipeline.ErrIO, "", "fingerprint manifest", path, err)
	}
	defer file.Close()

	sum := sha256.New()
	if _, err := io.Copy(sum, file); err != nil {
		return "", pipeline.Wrap(pipeline.ErrIO, "", "fingerprint manifest", path, err)
	}
	return hex.EncodeToString(sum.Sum(nil)), nil
}
