package migrations

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedSourceVersions(t *testing.T) {
	src, err := Source()
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	next, err := src.Next(first)
	require.NoError(t, err)
	assert.Equal(t, uint(2), next)

	_, err = src.Next(next)
	assert.Error(t, err)
}

func TestEmbeddedSourceContents(t *testing.T) {
	src, err := Source()
	require.NoError(t, err)
	defer src.Close()

	r, ident, err := src.ReadUp(1)
	require.NoError(t, err)
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	r.Close()

	assert.Equal(t, "init", ident)
	assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS orders")
	assert.Contains(t, string(body), "addresses_one_default_idx")

	r, _, err = src.ReadDown(2)
	require.NoError(t, err)
	body, _ = io.ReadAll(r)
	r.Close()
	assert.Contains(t, string(body), "DROP TABLE IF EXISTS blog_posts")
}
