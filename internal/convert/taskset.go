package convert

import (
	"path"
	"strings"

	"github.com/iksnae/vault-agent/internal/vault"
)

// SupportedExtensions are the source types the agent can convert
var SupportedExtensions = []string{
	".pdf", ".docx", ".pptx", ".xlsx", ".html",
	".txt", ".rtf", ".odt", ".odp", ".ods",
}

// IsSupported reports whether the file's extension is convertible,
// ignoring case
func IsSupported(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Lister enumerates files under a vault folder
type Lister interface {
	ListFiles(folder string) ([]string, error)
}

// FolderScan reports what AddFolder found. Eligible == 0 means the folder
// has no convertible files; Added == 0 with Eligible > 0 means they were
// all queued already.
type FolderScan struct {
	Eligible int
	Added    int
}

// TaskSet is an ordered set of vault paths waiting for conversion. It is
// not safe for concurrent use.
type TaskSet struct {
	paths []string
	seen  map[string]struct{}
}

// NewTaskSet returns an empty task set
func NewTaskSet() *TaskSet {
	return &TaskSet{seen: make(map[string]struct{})}
}

// AddFile queues p. It returns false if p was already queued.
func (s *TaskSet) AddFile(p string) bool {
	p = vault.Clean(p)
	if p == "" {
		return false
	}
	if _, ok := s.seen[p]; ok {
		return false
	}
	s.seen[p] = struct{}{}
	s.paths = append(s.paths, p)
	return true
}

// AddFolder queues every supported file under folder, recursively
func (s *TaskSet) AddFolder(l Lister, folder string) (FolderScan, error) {
	files, err := l.ListFiles(folder)
	if err != nil {
		return FolderScan{}, err
	}
	var scan FolderScan
	for _, f := range files {
		if !IsSupported(f) {
			continue
		}
		scan.Eligible++
		if s.AddFile(f) {
			scan.Added++
		}
	}
	return scan, nil
}

// Remove drops the entry at index. Out of range is a no-op.
func (s *TaskSet) Remove(index int) bool {
	if index < 0 || index >= len(s.paths) {
		return false
	}
	delete(s.seen, s.paths[index])
	s.paths = append(s.paths[:index], s.paths[index+1:]...)
	return true
}

// Clear empties the set
func (s *TaskSet) Clear() {
	s.paths = nil
	s.seen = make(map[string]struct{})
}

// Len returns the number of queued files
func (s *TaskSet) Len() int {
	return len(s.paths)
}

// Paths returns the queued files in insertion order
func (s *TaskSet) Paths() []string {
	out := make([]string, len(s.paths))
	copy(out, s.paths)
	return out
}
