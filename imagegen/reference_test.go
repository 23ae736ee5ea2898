package imagegen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferenceImage_RoundTrip(t *testing.T) {
	ref := NewReferenceImage([]byte("hello"), "image/png")
	assert.Equal(t, "data:image/png;base64,aGVsbG8=", ref.DataURL)

	mime, data, err := ref.Decode()
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, "hello", string(data))
}

func TestParseReferenceImage(t *testing.T) {
	ref, err := ParseReferenceImage("  data:image/jpeg;base64,aGVsbG8=  ")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref.DataURL, "data:image/jpeg"))

	for _, bad := range []string{
		"http://example.com/a.png",
		"data:image/png;base64",
		"data:image/png,plain",
		"data:image/png;base64,@@@",
	} {
		_, err := ParseReferenceImage(bad)
		assert.Error(t, err, bad)
	}
}

func TestReferenceImageFromFile(t *testing.T) {
	dir := t.TempDir()

	ref := pngReference(t, 4, 4)
	_, data, err := ref.Decode()
	require.NoError(t, err)
	imgPath := filepath.Join(dir, "ref.png")
	require.NoError(t, os.WriteFile(imgPath, data, 0644))

	loaded, err := ReferenceImageFromFile(imgPath)
	require.NoError(t, err)
	assert.Equal(t, ref.DataURL, loaded.DataURL)

	txtPath := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("just text"), 0644))
	_, err = ReferenceImageFromFile(txtPath)
	assert.Error(t, err)

	_, err = ReferenceImageFromFile(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}
