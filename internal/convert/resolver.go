package convert

import (
	"errors"
	"path"
	"strconv"
	"strings"

	"github.com/iksnae/vault-agent/internal/vault"
)

// MaxCollisionSuffix bounds the _N search in ResolveDestination
const MaxCollisionSuffix = 10000

// ErrCollisionExhausted is returned when every suffix up to
// MaxCollisionSuffix is taken
var ErrCollisionExhausted = errors.New("no free destination name")

// ResolveDestination picks the output path for source. The candidate is the
// source path with its extension replaced (SameLocation) or the bare file
// name inside the dedicated folder. Taken candidates get _1, _2, ... before
// the extension. The returned path never exists according to exists.
func ResolveDestination(source string, format Format, dest Destination, exists func(string) bool) (string, error) {
	source = vault.Clean(source)
	stem := strings.TrimSuffix(source, path.Ext(source))
	if dest.Policy == DedicatedFolder {
		stem = path.Join(vault.Clean(dest.Folder), path.Base(stem))
	}
	ext := format.Extension()

	candidate := stem + ext
	for n := 1; exists(candidate); n++ {
		if n > MaxCollisionSuffix {
			return "", ErrCollisionExhausted
		}
		candidate = stem + "_" + strconv.Itoa(n) + ext
	}
	return candidate, nil
}
