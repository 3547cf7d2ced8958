// Package yolo decodes the raw output tensor of YOLO-family detectors.
//
// Two layouts are accepted: channel-major [1, attrs, N] (the default ONNX
// export of v8 and later) and row-major [1, N, attrs] (v5 exports). attrs is
// 4 box values (cx, cy, w, h in network input pixels), an optional
// objectness score, then one score per class.
package yolo

import (
	"fmt"
)

// Candidate is a single decoded box, scaled into image pixel coordinates
type Candidate struct {
	X, Y, W, H float32 // top-left corner plus size
	ClassID    int
	Score      float32
}

// Options control decoding
type Options struct {
	NumClasses int     // 0 infers the count from the tensor shape
	Objectness bool    // attrs carry an objectness column before class scores
	ScoreFloor float32 // candidates scoring below are dropped
	ScaleX     float32 // image width / network input width
	ScaleY     float32 // image height / network input height
}

// Decode extracts candidates from data shaped as dims
func Decode(data []float32, dims []int, opts Options) ([]Candidate, error) {
	d := dims
	if len(d) == 3 {
		if d[0] != 1 {
			return nil, fmt.Errorf("unsupported batch size %d", d[0])
		}
		d = d[1:]
	}
	if len(d) != 2 {
		return nil, fmt.Errorf("unsupported output shape %v", dims)
	}
	if d[0]*d[1] != len(data) {
		return nil, fmt.Errorf("output shape %v does not match %d values", dims, len(data))
	}

	lead := 4
	if opts.Objectness {
		lead = 5
	}

	attrs := opts.NumClasses + lead
	var n int
	var channelMajor bool
	switch {
	case opts.NumClasses > 0 && d[0] == attrs:
		n, channelMajor = d[1], true
	case opts.NumClasses > 0 && d[1] == attrs:
		n, channelMajor = d[0], false
	case opts.NumClasses > 0:
		return nil, fmt.Errorf("output shape %v does not carry %d classes", dims, opts.NumClasses)
	case d[0] < d[1]:
		// Fewer attributes than anchors in any real export
		attrs, n, channelMajor = d[0], d[1], true
	default:
		attrs, n, channelMajor = d[1], d[0], false
	}
	if attrs <= lead {
		return nil, fmt.Errorf("output shape %v carries no class scores", dims)
	}

	at := func(i, a int) float32 {
		if channelMajor {
			return data[a*n+i]
		}
		return data[i*attrs+a]
	}

	scaleX, scaleY := opts.ScaleX, opts.ScaleY
	if scaleX == 0 {
		scaleX = 1
	}
	if scaleY == 0 {
		scaleY = 1
	}

	var out []Candidate
	for i := 0; i < n; i++ {
		obj := float32(1)
		if opts.Objectness {
			obj = at(i, 4)
		}

		best, bestScore := -1, float32(0)
		for c := lead; c < attrs; c++ {
			if s := at(i, c) * obj; s > bestScore || best < 0 {
				best, bestScore = c-lead, s
			}
		}
		if bestScore < opts.ScoreFloor || bestScore <= 0 {
			continue
		}

		cx, cy, w, h := at(i, 0), at(i, 1), at(i, 2), at(i, 3)
		out = append(out, Candidate{
			X:       (cx - w/2) * scaleX,
			Y:       (cy - h/2) * scaleY,
			W:       w * scaleX,
			H:       h * scaleY,
			ClassID: best,
			Score:   bestScore,
		})
	}

	return out, nil
}
