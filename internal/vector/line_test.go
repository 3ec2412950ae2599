package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestLine_Distance(t *testing.T) {
	l, err := NewLine([]geom.Coord{{0, 0}, {10, 0}}, 3)
	require.NoError(t, err)

	assert.InDelta(t, 2.0, l.Distance(5, 2), 1e-12)
	assert.InDelta(t, 5.0, l.Distance(13, 4), 1e-12)
	assert.True(t, l.Covers(5, -3))
	assert.False(t, l.Covers(5, 3.5))
	assert.Equal(t, BBox{MinX: -3, MinY: -3, MaxX: 13, MaxY: 3}, l.Bounds())
}

func TestNewLine_Invalid(t *testing.T) {
	_, err := NewLine([]geom.Coord{{0, 0}}, 3)
	assert.Error(t, err)
	_, err = NewLine([]geom.Coord{{0, 0}, {1, 1}}, -1)
	assert.Error(t, err)
}
