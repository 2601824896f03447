package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStorage keeps blobs on the local filesystem, sharded by the first two
// characters of the key so a single directory never collects millions of
// entries.
type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, os.ModePerm); err != nil {
		return nil, err
	}
	return &LocalStorage{basePath: basePath}, nil
}

func (ls *LocalStorage) pathFromKey(key string) string {
	if len(key) < 2 {
		return filepath.Join(ls.basePath, key)
	}
	return filepath.Join(ls.basePath, key[:2], key)
}

func (ls *LocalStorage) Save(key string, data io.Reader) (int64, error) {
	filePath := ls.pathFromKey(key)

	if err := os.MkdirAll(filepath.Dir(filePath), os.ModePerm); err != nil {
		return 0, err
	}

	file, err := os.Create(filePath)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	return io.Copy(file, data)
}

func (ls *LocalStorage) Get(key string) (io.ReadCloser, error) {
	file, err := os.Open(ls.pathFromKey(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob with key %s not found: %w", key, err)
		}
		return nil, err
	}

	return file, nil
}

func (ls *LocalStorage) Delete(key string) error {
	err := os.Remove(ls.pathFromKey(key))
	if os.IsNotExist(err) {
		return nil
	}

	return err
}
