package httpcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	RequiresDist []string `json:"requires_dist"`
}

func TestSetThenGetRoundTrips(t *testing.T) {
	c, err := Open(t.TempDir())
	require.NoError(t, err)
	defer c.Close()

	want := entry{RequiresDist: []string{"urllib3>=1.21.1", "idna<3"}}
	require.NoError(t, c.Set("requests==2.31.0", want))

	var got entry
	found, err := c.Get("requests==2.31.0", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)
}

func TestGetMissingKey(t *testing.T) {
	c, err := Open(t.TempDir())
	require.NoError(t, err)
	defer c.Close()

	var got entry
	found, err := c.Get("not-there", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestOpenTwiceFailsLock(t *testing.T) {
	dir := t.TempDir()
	c1, err := Open(dir)
	require.NoError(t, err)
	defer c1.Close()

	_, err = Open(dir)
	assert.Error(t, err)
}

func TestSetOverwrites(t *testing.T) {
	c, err := Open(t.TempDir())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set("k", entry{RequiresDist: []string{"a"}}))
	require.NoError(t, c.Set("k", entry{RequiresDist: []string{"b"}}))

	var got entry
	_, err = c.Get("k", &got)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, got.RequiresDist)
}
