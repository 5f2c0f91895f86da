// Package fileserver implements the §6 file-server abstraction: a
// name -> contents lookup used by the (external) parser, plus a
// directory-tree mock for tests and an optional content-change watcher
// for the -watch CLI mode (see SPEC_FULL.md Domain Stack).
package fileserver

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gtank/blake2/blake2b"
)

// FileServer resolves a registered name to its contents.
type FileServer interface {
	ReadFile(name string) ([]byte, error)
}

// Mock is a FileServer backed by an in-memory map, populated directly
// or from a directory tree, per §6: "a mock populated from a directory
// tree with / path separators."
type Mock struct {
	files map[string][]byte
}

// NewMock returns an empty Mock.
func NewMock() *Mock {
	return &Mock{files: make(map[string][]byte)}
}

// AddFile registers name with the given contents.
func (m *Mock) AddFile(name string, contents []byte) {
	m.files[name] = contents
}

// ReadFile implements FileServer.
func (m *Mock) ReadFile(name string) ([]byte, error) {
	c, ok := m.files[name]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", name)
	}
	return c, nil
}

// Names returns the registered file names, sorted.
func (m *Mock) Names() []string {
	names := make([]string, 0, len(m.files))
	for n := range m.files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// FromDirTree walks root on the real filesystem and populates a Mock
// whose names use "/" separators regardless of host OS, per §6.
func FromDirTree(root string) (*Mock, error) {
	m := NewMock()
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		contents, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		m.AddFile(name, contents)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// OSFileServer resolves names directly against the real filesystem,
// joining against Root and normalizing "/" separators.
type OSFileServer struct {
	Root string
}

// ReadFile implements FileServer.
func (fs *OSFileServer) ReadFile(name string) ([]byte, error) {
	path := filepath.Join(fs.Root, filepath.FromSlash(name))
	return os.ReadFile(path)
}

// ContentDigest returns a BLAKE2b-256 digest of contents, used by the
// watch mode to distinguish a real content change from a spurious
// filesystem notification (e.g. a touch with no byte changes).
func ContentDigest(contents []byte) ([]byte, error) {
	d, err := blake2b.NewDigest(nil, nil, nil, 32)
	if err != nil {
		return nil, err
	}
	d.Write(contents)
	return d.Sum(nil), nil
}
