// Package vault is the host-storage side of the client: a notes vault rooted
// at a directory, addressed with vault-relative slash paths.
package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// ErrOutsideVault is returned for paths that escape the vault root
var ErrOutsideVault = errors.New("path is outside the vault")

// Vault is a directory of notes. Paths passed to its methods are relative to
// the root and use forward slashes, like "docs/report.pdf".
type Vault struct {
	fs   afero.Fs
	root string
}

// New returns a vault backed by the OS filesystem at root
func New(root string) (*Vault, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving vault root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("opening vault: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("opening vault: %s is not a directory", abs)
	}
	return &Vault{fs: afero.NewBasePathFs(afero.NewOsFs(), abs), root: abs}, nil
}

// NewWithFs returns a vault over an arbitrary filesystem. root is only used
// by Abs to report absolute paths to the agent service.
func NewWithFs(fsys afero.Fs, root string) *Vault {
	return &Vault{fs: fsys, root: filepath.Clean(root)}
}

// Root returns the absolute vault root
func (v *Vault) Root() string {
	return v.root
}

// Clean normalizes a vault-relative path. Leading ".." elements are
// dropped, so the result never leaves the vault.
func Clean(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

// Rel converts an OS path (absolute, or relative to the working directory)
// into a vault-relative path.
func (v *Vault) Rel(osPath string) (string, error) {
	abs, err := filepath.Abs(osPath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(v.root, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s: %w", osPath, ErrOutsideVault)
	}
	if rel == "." {
		return "", nil
	}
	return rel, nil
}

// Abs returns the absolute OS path of a vault-relative path
func (v *Vault) Abs(p string) string {
	return filepath.Join(v.root, filepath.FromSlash(Clean(p)))
}

// Exists reports whether a file or folder exists at p
func (v *Vault) Exists(p string) bool {
	ok, err := afero.Exists(v.fs, v.name(Clean(p)))
	return err == nil && ok
}

// CreateFolder creates p and any missing parents
func (v *Vault) CreateFolder(p string) error {
	clean := Clean(p)
	if err := v.fs.MkdirAll(v.name(clean), 0755); err != nil {
		return fmt.Errorf("creating folder %s: %w", clean, err)
	}
	return nil
}

// WriteFile writes content to a new file at p. Parent folders must exist.
func (v *Vault) WriteFile(p string, content []byte) error {
	clean := Clean(p)
	f, err := v.fs.OpenFile(v.name(clean), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("writing %s: %w", clean, err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", clean, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", clean, err)
	}
	return nil
}

// ReadFile reads the file at p
func (v *Vault) ReadFile(p string) ([]byte, error) {
	return afero.ReadFile(v.fs, v.name(Clean(p)))
}

// ListFiles returns every file under folder, transitively, as sorted
// vault-relative paths. An empty folder means the vault root.
func (v *Vault) ListFiles(folder string) ([]string, error) {
	base := v.name(Clean(folder))

	info, err := v.fs.Stat(base)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", folder, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("listing %s: not a folder", folder)
	}

	var files []string
	err = afero.Walk(v.fs, base, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if p != base && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		rel := filepath.ToSlash(strings.TrimPrefix(p, string(filepath.Separator)))
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", folder, err)
	}
	sort.Strings(files)
	return files, nil
}

// name maps a clean vault-relative path to a name inside v.fs. Both the
// BasePathFs and test filesystems are addressed from "/".
func (v *Vault) name(clean string) string {
	return filepath.FromSlash("/" + clean)
}
