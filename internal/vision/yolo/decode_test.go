package yolo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rows is a small [N, attrs] fixture with 2 classes: cx, cy, w, h, buck, doe
var rows = [][]float32{
	{100, 100, 20, 40, 0.91, 0.02},
	{300, 200, 50, 50, 0.05, 0.60},
	{10, 10, 4, 4, 0.10, 0.05},
}

func rowMajor(rs [][]float32) []float32 {
	var out []float32
	for _, r := range rs {
		out = append(out, r...)
	}
	return out
}

func channelMajor(rs [][]float32) []float32 {
	attrs := len(rs[0])
	out := make([]float32, 0, attrs*len(rs))
	for a := 0; a < attrs; a++ {
		for _, r := range rs {
			out = append(out, r[a])
		}
	}
	return out
}

func TestDecode_Layouts(t *testing.T) {
	tests := []struct {
		name string
		data []float32
		dims []int
		nc   int
	}{
		{"Channel major", channelMajor(rows), []int{1, 6, 3}, 2},
		{"Row major", rowMajor(rows), []int{1, 3, 6}, 2},
		{"Two dims", rowMajor(rows), []int{3, 6}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.data, tt.dims, Options{NumClasses: tt.nc, ScoreFloor: 0.25})
			require.NoError(t, err)
			require.Len(t, got, 2)

			assert.Equal(t, 0, got[0].ClassID)
			assert.InDelta(t, 0.91, got[0].Score, 1e-6)
			assert.InDelta(t, 90, got[0].X, 1e-4)
			assert.InDelta(t, 80, got[0].Y, 1e-4)
			assert.InDelta(t, 20, got[0].W, 1e-4)
			assert.InDelta(t, 40, got[0].H, 1e-4)

			assert.Equal(t, 1, got[1].ClassID)
			assert.InDelta(t, 0.60, got[1].Score, 1e-6)
		})
	}
}

func TestDecode_InferredClassCount(t *testing.T) {
	padded := append([][]float32{}, rows...)
	for len(padded) < 8 {
		padded = append(padded, []float32{0, 0, 0, 0, 0, 0})
	}

	got, err := Decode(channelMajor(padded), []int{1, 6, 8}, Options{ScoreFloor: 0.25})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].ClassID)
	assert.Equal(t, 1, got[1].ClassID)
}

func TestDecode_Objectness(t *testing.T) {
	data := rowMajor([][]float32{
		{100, 100, 20, 20, 0.5, 0.9, 0.1},
		{100, 100, 20, 20, 0.1, 0.9, 0.1},
	})

	got, err := Decode(data, []int{1, 2, 7}, Options{NumClasses: 2, Objectness: true, ScoreFloor: 0.25})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.45, got[0].Score, 1e-6)
}

func TestDecode_Scale(t *testing.T) {
	data := rowMajor([][]float32{{320, 320, 64, 64, 0.9}})

	got, err := Decode(data, []int{1, 1, 5}, Options{NumClasses: 1, ScaleX: 2, ScaleY: 0.5})
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.InDelta(t, 576, got[0].X, 1e-4)
	assert.InDelta(t, 144, got[0].Y, 1e-4)
	assert.InDelta(t, 128, got[0].W, 1e-4)
	assert.InDelta(t, 32, got[0].H, 1e-4)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []float32
		dims []int
		nc   int
	}{
		{"Batch of two", make([]float32, 12), []int{2, 1, 6}, 2},
		{"Four dims", make([]float32, 6), []int{1, 1, 1, 6}, 2},
		{"Size mismatch", make([]float32, 5), []int{1, 1, 6}, 2},
		{"Class count mismatch", make([]float32, 18), []int{1, 3, 6}, 5},
		{"No class scores", make([]float32, 12), []int{1, 4, 3}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data, tt.dims, Options{NumClasses: tt.nc})
			assert.Error(t, err)
		})
	}
}
