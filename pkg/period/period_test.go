package period

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	got, err := Normalize(" 2026-03 ")
	require.NoError(t, err)
	assert.Equal(t, "2026-03", got)

	for _, bad := range []string{"", "2026", "2026-13", "2026-3", "03-2026", "2026-03-01"} {
		_, err := Normalize(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestContains(t *testing.T) {
	from := "2026-01"
	until := "2026-06"

	assert.True(t, Contains("2026-03", &from, &until))
	assert.True(t, Contains("2026-01", &from, &until))
	assert.True(t, Contains("2026-06", &from, &until))
	assert.False(t, Contains("2025-12", &from, &until))
	assert.False(t, Contains("2026-07", &from, &until))

	// Open bounds.
	assert.True(t, Contains("1990-01", nil, &until))
	assert.True(t, Contains("2099-12", &from, nil))
	assert.True(t, Contains("2026-03", nil, nil))
}
