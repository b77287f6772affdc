// Package blob stores uploaded media on the local filesystem and hands back
// URLs. Retention and cleanup are out of scope; history keeps whatever URL
// was issued at upload time.
package blob

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pborman/uuid"
)

type FSStore struct {
	dir     string
	baseURL string
}

// NewFSStore creates the upload dir if needed. baseURL is the public path
// prefix the dir is served under, e.g. "/static/uploads".
func NewFSStore(dir, baseURL string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("blob: create dir `%s`: %v", dir, err)
	}
	return &FSStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Store writes the payload under a fresh uuid name, keeping the original
// extension, and returns the public URL.
func (s *FSStore) Store(data []byte, filename string) (string, error) {
	name := strings.ReplaceAll(uuid.New(), "-", "")
	if ext := path.Ext(filename); ext != "" && ext != "." {
		name += ext
	}

	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0640); err != nil {
		return "", fmt.Errorf("blob: write `%s`: %v", name, err)
	}
	return s.baseURL + "/" + name, nil
}

// Dir returns the backing directory, for mounting a file server.
func (s *FSStore) Dir() string {
	return s.dir
}
