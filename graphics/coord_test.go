package graphics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoordConstants(t *testing.T) {
	assert.Equal(t, int32(3<<29), int32(CoordTypeMask))
	assert.Equal(t, int32(0), int32(CoordTypePx))
	assert.Equal(t, int32(1<<29), int32(CoordTypeSpec))
	assert.Equal(t, int32(3<<29), int32(CoordTypePxNeg))
	assert.Equal(t, int32((1<<29)-1), int32(CoordMax))
	assert.Equal(t, -int32(CoordMax), int32(CoordMin))
}

func TestCoordTags(t *testing.T) {
	assert.True(t, CoordIsPx(100))
	assert.True(t, CoordIsPx(-100))
	assert.False(t, CoordIsSpec(100))

	spec := CoordSetSpec(42)
	assert.True(t, CoordIsSpec(spec))
	assert.False(t, CoordIsPx(spec))
	assert.Equal(t, int32(42), CoordPlain(spec))
	assert.Equal(t, int32(CoordTypeSpec), CoordType(spec))
}

func TestPctFold(t *testing.T) {
	// Positive percentages are stored as-is in the special range.
	assert.Equal(t, CoordSetSpec(50), Pct(50))
	assert.Equal(t, int32(50), CoordGetPct(Pct(50)))

	// Negative percentages fold above PctPosMax.
	assert.Equal(t, CoordSetSpec(1025), Pct(-25))
	assert.Equal(t, int32(-25), CoordGetPct(Pct(-25)))

	for _, pct := range []int32{0, 1, 100, 999, 1000, -1, -100, -999} {
		assert.Equal(t, pct, CoordGetPct(Pct(pct)), "round trip %d", pct)
		assert.True(t, CoordIsPct(Pct(pct)), "is pct %d", pct)
	}
}

func TestSizeContent(t *testing.T) {
	assert.Equal(t, int32(CoordTypeSpec|2001), int32(SizeContent))
	assert.True(t, CoordIsSpec(SizeContent))
	// The sentinel sits just outside the percentage range.
	assert.False(t, CoordIsPct(SizeContent))
}

func TestMinMaxSpan(t *testing.T) {
	assert.Equal(t, int32(3), Min(7, 3))
	assert.Equal(t, int32(7), Max(7, 3))
	assert.Equal(t, int32(-2), Min(-2, 5))
	assert.Equal(t, int32(5), Span(3, 7))
	assert.Equal(t, int32(5), Span(7, 3))
	assert.Equal(t, int32(1), Span(4, 4))
}
