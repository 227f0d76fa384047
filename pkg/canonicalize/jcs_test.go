package canonicalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJCSSortsKeys(t *testing.T) {
	out, err := JCS(map[string]any{"zeta": 1, "alpha": 2, "mid": 3})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"mid":3,"zeta":1}`, string(out))
}

func TestJCSIsDeterministic(t *testing.T) {
	type payload struct {
		B string `json:"b"`
		A string `json:"a"`
	}
	first, err := JCSString(payload{A: "1", B: "2"})
	require.NoError(t, err)
	second, err := JCSString(payload{A: "1", B: "2"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.True(t, strings.Index(first, `"a"`) < strings.Index(first, `"b"`))
}

func TestCanonicalHashFormat(t *testing.T) {
	hash, err := CanonicalHash(map[string]string{"k": "v"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "sha256:"))
	assert.Len(t, hash, len("sha256:")+64)
}

func TestCanonicalHashIgnoresKeyOrder(t *testing.T) {
	// Equivalent JSON objects hash identically whatever the input order.
	h1, err := CanonicalHash(map[string]int{"x": 1, "y": 2})
	require.NoError(t, err)
	h2, err := CanonicalHash(map[string]int{"y": 2, "x": 1})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestJCSRejectsUnmarshalable(t *testing.T) {
	_, err := JCS(func() {})
	assert.Error(t, err)
}
