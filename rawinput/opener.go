// Package rawinput lands raw source data as records: replica database
// tables, CSV drops and contact API extracts. Every landed row is tagged
// with provenance so downstream layers can trace it back to its extract.
package rawinput

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/paracelsus/martpipe/aws/s3"
)

// Opener is the object-store surface the landing stage needs. The S3
// client satisfies it directly; LocalDir adapts a filesystem directory
// for development and tests.
type Opener interface {
	List(key string) (keys []string, err error)
	Get(key string) (data []byte, err error)
}

// LocalDir serves files from a directory as if they were object keys.
type LocalDir struct {
	Dir string
}

func NewLocalDir(dir string) *LocalDir {
	return &LocalDir{Dir: dir}
}

// List returns the names of regular files in the directory whose names
// start with the given prefix, sorted.
func (l *LocalDir) List(key string) ([]string, error) {
	entries, err := ioutil.ReadDir(l.Dir)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if key == "" || strings.HasPrefix(e.Name(), key) {
			keys = append(keys, e.Name())
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Get reads the named file. A missing file maps to the same sentinel the
// S3 client uses so callers handle both identically.
func (l *LocalDir) Get(key string) ([]byte, error) {
	data, err := ioutil.ReadFile(filepath.Join(l.Dir, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, s3.ErrKeyNotFound
		}
		return nil, err
	}
	return data, nil
}
