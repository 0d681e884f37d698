package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValid(t *testing.T) {
	for _, u := range ValidUnits {
		assert.True(t, IsValid(u), u)
	}
	assert.False(t, IsValid("knots"))
	assert.False(t, IsValid(""))
	assert.Equal(t, "kmph, mph, mps", ValidUnitsString())
}

func TestFromKmph(t *testing.T) {
	assert.InDelta(t, 36.0, FromKmph(36, KMPH), 1e-9)
	assert.InDelta(t, 10.0, FromKmph(36, MPS), 1e-9)
	assert.InDelta(t, 62.137, FromKmph(100, MPH), 1e-3)
	assert.InDelta(t, 36.0, FromKmph(36, "furlongs"), 1e-9)
}

func TestSymbol(t *testing.T) {
	assert.Equal(t, "km/h", Symbol(KMPH))
	assert.Equal(t, "mph", Symbol(MPH))
	assert.Equal(t, "m/s", Symbol(MPS))
	assert.Equal(t, "km/h", Symbol(""))
}
