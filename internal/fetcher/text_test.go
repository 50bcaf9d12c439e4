package fetcher

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadAllUTF8_PassThrough(t *testing.T) {
	out, err := ReadAllUTF8(strings.NewReader("Société Générale"))
	require.NoError(t, err)
	assert.Equal(t, "Société Générale", string(out))
}

func TestReadAllUTF8_Latin1(t *testing.T) {
	// "Soci\xe9t\xe9" is "Société" in Latin-1 / Windows-1252.
	out, err := ReadAllUTF8(strings.NewReader("Soci\xe9t\xe9"))
	require.NoError(t, err)
	assert.Equal(t, "Société", string(out))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestReadAllUTF8_ReadError(t *testing.T) {
	_, err := ReadAllUTF8(failingReader{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read body")
}
