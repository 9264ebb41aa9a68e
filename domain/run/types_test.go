package run

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type params struct {
	N    int     `json:"n"`
	Rate float64 `json:"rate"`
}

func TestManifest_FingerprintDeterministic(t *testing.T) {
	a, err := NewManifest(KindInterim, 42, params{N: 200, Rate: 0.3})
	require.NoError(t, err)
	b, err := NewManifest(KindInterim, 42, params{N: 200, Rate: 0.3})
	require.NoError(t, err)

	assert.NotEqual(t, a.RunID, b.RunID, "each run gets its own ID")
	assert.True(t, a.Replays(b))
	assert.Equal(t, CodeVersion, a.CodeVersion)
}

func TestManifest_FingerprintUnique(t *testing.T) {
	base, err := NewManifest(KindInterim, 42, params{N: 200, Rate: 0.3})
	require.NoError(t, err)

	variants := []struct {
		name   string
		kind   Kind
		seed   int64
		params params
	}{
		{"seed", KindInterim, 43, params{N: 200, Rate: 0.3}},
		{"kind", KindAdaptive, 42, params{N: 200, Rate: 0.3}},
		{"params", KindInterim, 42, params{N: 201, Rate: 0.3}},
	}
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			m, err := NewManifest(v.kind, v.seed, v.params)
			require.NoError(t, err)
			assert.False(t, base.Replays(m))
		})
	}
}

func TestNewManifest_UnknownKind(t *testing.T) {
	_, err := NewManifest(Kind("bootstrap"), 1, nil)
	assert.Error(t, err)
	assert.False(t, Kind("").Valid())
	for _, k := range Kinds() {
		assert.True(t, k.Valid())
	}
}
