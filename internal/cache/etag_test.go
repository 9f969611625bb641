package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muandane/estatic/internal/config"
)

func TestComputeETagContentHash(t *testing.T) {
	mod := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	a, err := ComputeETag(strings.NewReader("hello world"), config.ETagContentHash, mod)
	require.NoError(t, err)
	b, err := ComputeETag(strings.NewReader("hello world"), config.ETagContentHash, mod.Add(time.Hour))
	require.NoError(t, err)
	c, err := ComputeETag(strings.NewReader("hello world!"), config.ETagContentHash, mod)
	require.NoError(t, err)

	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", a)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestComputeETagLastModifiedTruncates(t *testing.T) {
	mod := time.Date(2024, 3, 1, 12, 0, 5, 999_000_000, time.FixedZone("CET", 3600))

	tag, err := ComputeETag(nil, config.ETagLastModified, mod)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T11:00:05Z", tag)
}

func TestComputeETagContentHashNeedsReader(t *testing.T) {
	_, err := ComputeETag(nil, config.ETagContentHash, time.Now())
	assert.Error(t, err)
}
