// Package uploads stores message attachments on local disk.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrTooLarge = errors.New("attachment is too large")
	ErrEmpty    = errors.New("attachment is empty")
)

// Stored describes a saved attachment.
type Stored struct {
	URL  string
	Name string
	MIME string
	Size int64
}

// Store writes attachments under a directory served at URLPrefix.
type Store struct {
	dir       string
	urlPrefix string
	maxBytes  int64
}

// NewStore creates dir if needed.
func NewStore(dir, urlPrefix string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir, urlPrefix: strings.TrimRight(urlPrefix, "/"), maxBytes: maxBytes}, nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string { return s.dir }

// MaxBytes returns the per-attachment limit.
func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Save copies the uploaded part to disk under a random name that keeps the
// original extension.
func (s *Store) Save(fh *multipart.FileHeader) (Stored, error) {
	if fh.Size == 0 {
		return Stored{}, ErrEmpty
	}
	if s.maxBytes > 0 && fh.Size > s.maxBytes {
		return Stored{}, ErrTooLarge
	}

	src, err := fh.Open()
	if err != nil {
		return Stored{}, err
	}
	defer src.Close()

	name := uuid.NewString() + strings.ToLower(filepath.Ext(fh.Filename))
	path := filepath.Join(s.dir, name)
	dst, err := os.Create(path)
	if err != nil {
		return Stored{}, err
	}

	written, err := io.Copy(dst, io.LimitReader(src, s.limit()+1))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && s.maxBytes > 0 && written > s.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(path)
		return Stored{}, err
	}

	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	log.Printf("uploads: stored name=%s size=%d mime=%s", name, written, mimeType)
	return Stored{
		URL:  s.urlPrefix + "/" + name,
		Name: filepath.Base(fh.Filename),
		MIME: mimeType,
		Size: written,
	}, nil
}

// Remove deletes the attachment served at url. Unknown urls are ignored.
func (s *Store) Remove(url string) error {
	if !strings.HasPrefix(url, s.urlPrefix+"/") {
		return nil
	}
	name := filepath.Base(url)
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	log.Printf("uploads: removed name=%s", name)
	return nil
}

func (s *Store) limit() int64 {
	if s.maxBytes <= 0 {
		return 1<<63 - 2
	}
	return s.maxBytes
}
