package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParameterDescriptorClamp(t *testing.T) {
	t.Run("integer rounds and clamps", func(t *testing.T) {
		d := ParameterDescriptor{Kind: ParameterInteger, Min: 2, Max: 40}

		assert.Equal(t, 14.0, d.Clamp(13.7))
		assert.Equal(t, 2.0, d.Clamp(-3))
		assert.Equal(t, 40.0, d.Clamp(99))
	})

	t.Run("real clamps and rounds to decimals", func(t *testing.T) {
		d := ParameterDescriptor{Kind: ParameterReal, Min: 0.5, Max: 1.5, Decimals: 4}

		assert.Equal(t, 0.7213, d.Clamp(0.72134999))
		assert.Equal(t, 0.5, d.Clamp(0.1))
		assert.Equal(t, 1.5, d.Clamp(2.0))
	})

	t.Run("categorical floors to a valid index", func(t *testing.T) {
		d := ParameterDescriptor{Kind: ParameterCategorical, Choices: []string{"SMA", "EMA", "WMA"}}

		assert.Equal(t, 1.0, d.Clamp(1.9))
		assert.Equal(t, 0.0, d.Clamp(-1))
		assert.Equal(t, 2.0, d.Clamp(7))
		assert.Equal(t, "WMA", d.Choice(2))
	})
}

func TestParameterDescriptorUnitMapping(t *testing.T) {
	t.Run("numeric round trip", func(t *testing.T) {
		d := ParameterDescriptor{Kind: ParameterReal, Min: 10, Max: 30, Decimals: 4}

		assert.Equal(t, 10.0, d.FromUnit(0))
		assert.Equal(t, 30.0, d.FromUnit(1))
		assert.Equal(t, 20.0, d.FromUnit(0.5))
		assert.InDelta(t, 0.5, d.ToUnit(20), 1e-9)
	})

	t.Run("out of range unit samples clamp", func(t *testing.T) {
		d := ParameterDescriptor{Kind: ParameterInteger, Min: 5, Max: 10}

		assert.Equal(t, 5.0, d.FromUnit(-0.2))
		assert.Equal(t, 10.0, d.FromUnit(1.7))
	})

	t.Run("categorical spans all choices", func(t *testing.T) {
		d := ParameterDescriptor{Kind: ParameterCategorical, Choices: []string{"SMA", "EMA", "WMA", "DEMA"}}

		assert.Equal(t, 0.0, d.FromUnit(0))
		assert.Equal(t, 1.0, d.FromUnit(0.3))
		assert.Equal(t, 3.0, d.FromUnit(0.999))
		assert.Equal(t, 3.0, d.FromUnit(1))
	})

	t.Run("degenerate range maps to zero", func(t *testing.T) {
		d := ParameterDescriptor{Kind: ParameterReal, Min: 5, Max: 5}
		assert.Equal(t, 0.0, d.ToUnit(5))
	})
}
