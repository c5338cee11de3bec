package convert

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listerFunc func(folder string) ([]string, error)

func (f listerFunc) ListFiles(folder string) ([]string, error) { return f(folder) }

func filesIn(files ...string) Lister {
	return listerFunc(func(string) ([]string, error) { return files, nil })
}

func TestTaskSet_AddFileDeduplicates(t *testing.T) {
	s := NewTaskSet()

	assert.True(t, s.AddFile("a.pdf"))
	assert.False(t, s.AddFile("a.pdf"))
	assert.False(t, s.AddFile("/a.pdf"), "same vault path")
	assert.False(t, s.AddFile(""))
	assert.Equal(t, 1, s.Len())
}

func TestTaskSet_AddFolderFilters(t *testing.T) {
	s := NewTaskSet()

	scan, err := s.AddFolder(filesIn("docs/a.pdf", "docs/b.png", "docs/c.docx"), "docs")
	require.NoError(t, err)
	assert.Equal(t, FolderScan{Eligible: 2, Added: 2}, scan)
	assert.Equal(t, []string{"docs/a.pdf", "docs/c.docx"}, s.Paths())
}

func TestTaskSet_AddFolderReportsNothingNew(t *testing.T) {
	s := NewTaskSet()
	s.AddFile("docs/a.pdf")

	scan, err := s.AddFolder(filesIn("docs/a.pdf"), "docs")
	require.NoError(t, err)
	assert.Equal(t, FolderScan{Eligible: 1, Added: 0}, scan)

	scan, err = s.AddFolder(filesIn("pics/a.png", "pics/b.jpg"), "pics")
	require.NoError(t, err)
	assert.Equal(t, FolderScan{Eligible: 0, Added: 0}, scan)
}

func TestTaskSet_AddFolderError(t *testing.T) {
	boom := errors.New("boom")
	s := NewTaskSet()
	_, err := s.AddFolder(listerFunc(func(string) ([]string, error) { return nil, boom }), "x")
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, s.Len())
}

func TestTaskSet_RemoveAndClear(t *testing.T) {
	s := NewTaskSet()
	s.AddFile("a.pdf")
	s.AddFile("b.pdf")
	s.AddFile("c.pdf")

	assert.False(t, s.Remove(-1))
	assert.False(t, s.Remove(3))
	assert.Equal(t, 3, s.Len())

	assert.True(t, s.Remove(1))
	assert.Equal(t, []string{"a.pdf", "c.pdf"}, s.Paths())
	assert.True(t, s.AddFile("b.pdf"), "removed entries can be re-added")

	s.Clear()
	assert.Zero(t, s.Len())
	assert.True(t, s.AddFile("a.pdf"))
}

func TestTaskSet_PathsIsACopy(t *testing.T) {
	s := NewTaskSet()
	s.AddFile("a.pdf")
	p := s.Paths()
	p[0] = "mutated"
	assert.Equal(t, []string{"a.pdf"}, s.Paths())
}

func TestIsSupported(t *testing.T) {
	tests := map[string]bool{
		"a.pdf":        true,
		"A.PDF":        true,
		"deck.PpTx":    true,
		"sheet.xlsx":   true,
		"page.html":    true,
		"notes.txt":    true,
		"doc.rtf":      true,
		"doc.odt":      true,
		"slides.odp":   true,
		"sheet.ods":    true,
		"pic.png":      false,
		"note.md":      false,
		"no-extension": false,
		"dir.pdf/file": false,
	}
	for p, want := range tests {
		assert.Equal(t, want, IsSupported(p), p)
	}
}
