package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeProjection(t *testing.T) {
	assert.Equal(t, ProjectionPerspective, DecodeProjection(1))
	assert.Equal(t, ProjectionPerspective, DecodeProjection(1.5))
	assert.Equal(t, ProjectionPerspective, DecodeProjection(1.999))

	assert.Equal(t, ProjectionOrtho, DecodeProjection(0))
	assert.Equal(t, ProjectionOrtho, DecodeProjection(0.999))
	assert.Equal(t, ProjectionOrtho, DecodeProjection(2))
	assert.Equal(t, ProjectionOrtho, DecodeProjection(-1))
	assert.Equal(t, ProjectionOrtho, DecodeProjection(math.NaN()))
	assert.Equal(t, ProjectionOrtho, DecodeProjection(math.Inf(1)))
	assert.Equal(t, ProjectionOrtho, DecodeProjection(math.Inf(-1)))
}

func TestPayloadStrides(t *testing.T) {
	assert.Equal(t, 1, PayloadFloat.Stride())
	assert.Equal(t, 1, PayloadBool.Stride())
	assert.Equal(t, 2, PayloadVec2.Stride())
	assert.Equal(t, 3, PayloadVec3.Stride())
	assert.Equal(t, 4, PayloadColor.Stride())
}

func TestUnitRoundTrip(t *testing.T) {
	for u := UnitNone; u <= UnitPixels; u++ {
		got, ok := ParseUnit(u.String())
		assert.True(t, ok, "unit %v", u)
		assert.Equal(t, u, got)
	}
	_, ok := ParseUnit("furlongs")
	assert.False(t, ok)
}

func TestCanonicalTypeHelpers(t *testing.T) {
	field := CanonicalType{
		Payload: PayloadVec2,
		Unit:    UnitNone,
		Extent: Extent{
			Card: CardMany(InstanceRef{DomainType: "array", BlockID: "arr"}),
		},
	}
	assert.True(t, field.IsField())
	assert.False(t, field.IsEvent())
	assert.Equal(t, 2, field.Stride())

	event := CanonicalType{
		Payload: PayloadBool,
		Extent:  Extent{Temporality: Discrete},
	}
	assert.True(t, event.IsEvent())
	assert.False(t, event.IsField())
}
