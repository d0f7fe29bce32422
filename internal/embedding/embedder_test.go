package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbedder(t *testing.T) {
	_, err := NewEmbedder("", 0)
	assert.ErrorContains(t, err, "API key")

	e, err := NewEmbedder("sk-test", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, e.batchSize)
	assert.Equal(t, 1536, e.Dimension())

	e, err = NewEmbedder("sk-test", 32)
	require.NoError(t, err)
	assert.Equal(t, 32, e.batchSize)
}

func TestToFloat32(t *testing.T) {
	out := toFloat32([]float64{0.25, -1, 0})
	assert.Equal(t, []float32{0.25, -1, 0}, out)
}
