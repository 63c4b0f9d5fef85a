package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLocation(t *testing.T) {
	t.Cleanup(func() { _ = SetLocation("UTC") })

	assert.Error(t, SetLocation("Mars/Olympus_Mons"))
	assert.Equal(t, time.UTC, Location())

	require.NoError(t, SetLocation("Asia/Jakarta"))
	ts := time.Date(2024, 5, 1, 20, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-05-02 03:30:00", FormatTimestamp(ts))
}
