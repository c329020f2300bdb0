package user

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/mpereira-dev/tasknest/config"
	"github.com/mpereira-dev/tasknest/internal/types"
)

// ImageStore persists uploaded profile images and returns their public URL.
type ImageStore interface {
	Save(userID string, r io.Reader) (string, error)
}

var _ ImageStore = (*LocalImageStore)(nil)

// LocalImageStore writes images to a local directory that the HTTP server
// exposes under the configured base URL.
type LocalImageStore struct {
	dir      string
	maxBytes int64
	baseURL  string
}

func NewLocalImageStore(cfg config.UploadsConfig) (*LocalImageStore, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &LocalImageStore{
		dir:      cfg.Dir,
		maxBytes: cfg.MaxSizeBytes,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
	}, nil
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

func (s *LocalImageStore) Save(userID string, r io.Reader) (string, error) {
	limited := io.LimitReader(r, s.maxBytes+1)

	// Sniff the real content type; the client-supplied header is not trusted.
	head := make([]byte, 512)
	n, err := io.ReadFull(limited, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("read image: %w", err)
	}
	head = head[:n]

	ext, ok := imageExtensions[http.DetectContentType(head)]
	if !ok {
		return "", fmt.Errorf("%w: file is not a supported image type", types.ErrValidation)
	}

	name := fmt.Sprintf("%s-%s%s", userID, uuid.NewString(), ext)
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	defer f.Close()

	written, err := io.Copy(f, io.MultiReader(bytes.NewReader(head), limited))
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write image file: %w", err)
	}
	if written > s.maxBytes {
		os.Remove(path)
		return "", fmt.Errorf("%w: image exceeds the %d byte limit", types.ErrValidation, s.maxBytes)
	}

	return s.baseURL + "/" + name, nil
}
