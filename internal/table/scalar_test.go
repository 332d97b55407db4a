package table

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScalarString(t *testing.T) {
	tests := []struct {
		name string
		in   Scalar
		want string
	}{
		{"empty", Empty(), ""},
		{"string", String("NYC"), "NYC"},
		{"integer", Number(30), "30"},
		{"fraction", Number(1.5), "1.5"},
		{"negative zero", Number(math.Copysign(0, -1)), "0"},
		{"large", Number(1e21), "1e+21"},
		{"below large", Number(123456789012345680000), "123456789012345680000"},
		{"small", Number(1e-7), "1e-7"},
		{"micro", Number(0.000001), "0.000001"},
		{"nan", Number(math.NaN()), "NaN"},
		{"inf", Number(math.Inf(1)), "Infinity"},
		{"true", Bool(true), "true"},
		{"false", Bool(false), "false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.String())
		})
	}
}

func TestScalarFalsy(t *testing.T) {
	assert.True(t, Empty().Falsy())
	assert.True(t, String("").Falsy())
	assert.True(t, Number(0).Falsy())
	assert.True(t, Bool(false).Falsy())

	assert.False(t, String("0").Falsy())
	assert.False(t, Number(2).Falsy())
	assert.False(t, Bool(true).Falsy())
}

func TestDatasetCounts(t *testing.T) {
	var empty Dataset
	assert.Equal(t, 0, empty.RowCount())
	assert.Equal(t, 0, empty.ColumnCount())

	d := Dataset{
		Strings("City", "Name"),
		Strings("NYC", "Alice"),
		{String("LA"), Empty()},
	}
	assert.Equal(t, 2, d.RowCount())
	assert.Equal(t, 2, d.ColumnCount())
	assert.Equal(t, [][]string{{"City", "Name"}, {"NYC", "Alice"}, {"LA", ""}}, d.StringRows())
}
