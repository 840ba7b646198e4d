package share

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// BlobStore keeps uploaded content in a flat directory, one file per
// record ID. It knows nothing about metadata. Running it over an
// afero.Fs lets tests use an in-memory filesystem.
type BlobStore struct {
	fs  afero.Fs
	dir string
}

func NewBlobStore(fs afero.Fs, dir string) (*BlobStore, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &BlobStore{fs: fs, dir: dir}, nil
}

func (b *BlobStore) path(id string) string {
	return filepath.Join(b.dir, id)
}

// Put writes the full content for id and returns the byte count. A
// partially written blob is removed so a failed upload leaves nothing
// behind.
func (b *BlobStore) Put(id string, src io.Reader) (int64, error) {
	dst, err := b.fs.Create(b.path(id))
	if err != nil {
		return 0, fmt.Errorf("create blob: %w", err)
	}
	written, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = b.fs.Remove(b.path(id))
		return 0, fmt.Errorf("write blob: %w", err)
	}
	return written, nil
}

// Open returns the content stream for id. The caller closes it.
func (b *BlobStore) Open(id string) (io.ReadCloser, error) {
	f, err := b.fs.Open(b.path(id))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return f, nil
}

func (b *BlobStore) Exists(id string) (bool, error) {
	return afero.Exists(b.fs, b.path(id))
}

func (b *BlobStore) Size(id string) (int64, error) {
	info, err := b.fs.Stat(b.path(id))
	if os.IsNotExist(err) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (b *BlobStore) Remove(id string) error {
	err := b.fs.Remove(b.path(id))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	return err
}

// List returns a FileInfo per stored blob; the name is the record ID.
func (b *BlobStore) List() ([]os.FileInfo, error) {
	infos, err := afero.ReadDir(b.fs, b.dir)
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	blobs := make([]os.FileInfo, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		blobs = append(blobs, info)
	}
	return blobs, nil
}

// TotalBytes sums the sizes of all stored blobs.
func (b *BlobStore) TotalBytes() (int64, error) {
	blobs, err := b.List()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, info := range blobs {
		total += info.Size()
	}
	return total, nil
}

// RemoveAll wipes every blob but keeps the directory.
func (b *BlobStore) RemoveAll() error {
	blobs, err := b.List()
	if err != nil {
		return err
	}
	for _, info := range blobs {
		if err := b.fs.Remove(b.path(info.Name())); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
