package viewshed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggestRays_SnapsToPresets(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		radiusM float64
		stepM   float64
		want    int
	}{
		{"small radius lands in the first tier", 1000, 10, 4096},
		{"10 km at 8 m needs 7854 raw rays", 10000, 8, 8192},
		{"15 km at 8 m needs 11781 raw rays", 15000, 8, 12288},
		{"just under the top preset", 20000, 8, 16384},
		{"just over a tier boundary moves up", 6000, 9, 8192},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := SuggestRays(tc.radiusM, tc.stepM)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSuggestRays_BeyondTopPreset(t *testing.T) {
	t.Parallel()
	// 30 km at 1 m: raw K is 188496, which needs 12 multiples of 16384.
	got, err := SuggestRays(30000, 1)
	require.NoError(t, err)
	assert.Equal(t, 16384*12, got)
	assert.Zero(t, got%16384)
}

func TestSuggestRays_InvalidInputs(t *testing.T) {
	t.Parallel()
	_, err := SuggestRays(0, 10)
	assert.Error(t, err)
	_, err = SuggestRays(1000, 0)
	assert.Error(t, err)
	_, err = SuggestRays(-5, -5)
	assert.Error(t, err)
}

func TestDefaultRadialStep(t *testing.T) {
	t.Parallel()
	step, err := DefaultRadialStep(2.0)
	require.NoError(t, err)
	assert.Equal(t, 6.0, step)

	_, err = DefaultRadialStep(0)
	assert.Error(t, err)
}
