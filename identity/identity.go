// Package identity derives the storage identity of an upload from the client supplied
// content hash and file extension.
package identity

import (
	"strings"

	"github.com/bitrise-io/go-chunkstore/uploaderr"
)

const (
	maxHashLength      = 128
	maxExtensionLength = 32
)

// Identity keys an upload. ContentHash names the chunk bucket, Extension is copied into
// the artifact file name.
type Identity struct {
	ContentHash string
	Extension   string
}

// Derive validates the raw fields and returns the identity. It has no side effects.
func Derive(contentHash, extension string) (Identity, error) {
	if err := validateHash(contentHash); err != nil {
		return Identity{}, err
	}
	if err := validateExtension(extension); err != nil {
		return Identity{}, err
	}
	return Identity{ContentHash: contentHash, Extension: extension}, nil
}

// ArtifactName is the file name of the assembled artifact: {hash}.{ext}.
func (id Identity) ArtifactName() string {
	return id.ContentHash + "." + id.Extension
}

func (id Identity) String() string {
	return id.ArtifactName()
}

// ParseArtifactName is the inverse of ArtifactName. The hash never contains a dot, so the
// first dot separates the extension.
func ParseArtifactName(name string) (Identity, error) {
	i := strings.IndexByte(name, '.')
	if i <= 0 {
		return Identity{}, uploaderr.NewValidationError("artifact name", "%q has no extension", name)
	}
	return Derive(name[:i], name[i+1:])
}

func validateHash(hash string) error {
	switch {
	case hash == "":
		return uploaderr.NewValidationError("md5", "must not be empty")
	case len(hash) > maxHashLength:
		return uploaderr.NewValidationError("md5", "longer than %d characters", maxHashLength)
	case strings.ContainsRune(hash, '.'):
		// a dot would make {hash}.{ext} ambiguous: (a, b.mp4) and (a.b, mp4) share a name
		return uploaderr.NewValidationError("md5", "%q must not contain a dot", hash)
	}
	if !isSafe(hash) {
		return uploaderr.NewValidationError("md5", "%q contains characters outside [A-Za-z0-9_-]", hash)
	}
	return nil
}

func validateExtension(ext string) error {
	switch {
	case ext == "":
		return uploaderr.NewValidationError("ext", "must not be empty")
	case len(ext) > maxExtensionLength:
		return uploaderr.NewValidationError("ext", "longer than %d characters", maxExtensionLength)
	case ext == "." || ext == "..":
		return uploaderr.NewValidationError("ext", "%q is not allowed", ext)
	}
	if !isSafe(ext) {
		return uploaderr.NewValidationError("ext", "%q contains characters outside [A-Za-z0-9._-]", ext)
	}
	return nil
}

// isSafe rejects path separators, NUL and anything else a filesystem or object key might
// interpret.
func isSafe(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}
