package checksum

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

func GetFileChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to copy file content to hasher for file %s: %w", filePath, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Reader hashes everything read through it, so a file can be fingerprinted
// while it is being parsed.
type Reader struct {
	r      io.Reader
	hasher *xxhash.Digest
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, hasher: xxhash.New()}
}

func (c *Reader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.hasher.Write(p[:n])
	}
	return n, err
}

// Sum returns the hex digest of the bytes read so far.
func (c *Reader) Sum() string {
	return hex.EncodeToString(c.hasher.Sum(nil))
}
