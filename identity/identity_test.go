package identity

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bitrise-io/go-chunkstore/uploaderr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerive(t *testing.T) {
	tests := []struct {
		name      string
		hash      string
		ext       string
		wantField string
	}{
		{name: "md5 and simple extension", hash: "9e107d9d372bb6826bd81d3542a419d6", ext: "mp4"},
		{name: "compound extension", hash: "abc", ext: "tar.gz"},
		{name: "dash and underscore", hash: "a-b_c", ext: "bin"},
		{name: "empty hash", hash: "", ext: "mp4", wantField: "md5"},
		{name: "parent dir hash", hash: "..", ext: "mp4", wantField: "md5"},
		{name: "leading dot hash", hash: ".hidden", ext: "mp4", wantField: "md5"},
		{name: "dot in hash", hash: "a.b", ext: "mp4", wantField: "md5"},
		{name: "slash in hash", hash: "../../etc/passwd", ext: "mp4", wantField: "md5"},
		{name: "backslash in hash", hash: `a\b`, ext: "mp4", wantField: "md5"},
		{name: "nul in hash", hash: "a\x00b", ext: "mp4", wantField: "md5"},
		{name: "too long hash", hash: strings.Repeat("a", 129), ext: "mp4", wantField: "md5"},
		{name: "empty extension", hash: "abc", ext: "", wantField: "ext"},
		{name: "slash in extension", hash: "abc", ext: "mp4/x", wantField: "ext"},
		{name: "dot extension", hash: "abc", ext: ".", wantField: "ext"},
		{name: "space in extension", hash: "abc", ext: "m p4", wantField: "ext"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := Derive(tt.hash, tt.ext)
			if tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.hash, id.ContentHash)
				assert.Equal(t, tt.ext, id.Extension)
				return
			}

			var ve *uploaderr.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.wantField, ve.Field)
			assert.Equal(t, Identity{}, id)
		})
	}
}

func TestArtifactName_RoundTrip(t *testing.T) {
	id, err := Derive("abc123", "tar.gz")
	require.NoError(t, err)
	assert.Equal(t, "abc123.tar.gz", id.ArtifactName())

	parsed, err := ParseArtifactName(id.ArtifactName())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	parsed, err = ParseArtifactName("a.b.mp4")
	require.NoError(t, err)
	assert.Equal(t, Identity{ContentHash: "a", Extension: "b.mp4"}, parsed)

	_, err = ParseArtifactName("noextension")
	assert.Error(t, err)
	_, err = ParseArtifactName(".mp4")
	assert.Error(t, err)
}

func TestChecksumOfFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fox.txt")
	require.NoError(t, os.WriteFile(path, []byte("The quick brown fox jumps over the lazy dog"), 0644))

	sum, err := ChecksumOfFile(path)
	require.NoError(t, err)
	assert.Equal(t, "9e107d9d372bb6826bd81d3542a419d6", sum)

	_, err = ChecksumOfFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
