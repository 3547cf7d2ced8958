package yolo

import (
	"image"
	"sort"
)

// SuppressFunc runs non-maximum suppression over one set of boxes and
// returns the indices it keeps
type SuppressFunc func(boxes []image.Rectangle, scores []float32) []int

// Rect returns the candidate box in integer pixel coordinates
func (c Candidate) Rect() image.Rectangle {
	return image.Rect(int(c.X), int(c.Y), int(c.X+c.W), int(c.Y+c.H))
}

// SuppressPerClass applies nms to each class separately, so a box is only
// ever suppressed by a higher scoring box of its own class. Survivors are
// returned by descending score.
func SuppressPerClass(candidates []Candidate, nms SuppressFunc) []Candidate {
	if len(candidates) == 0 {
		return nil
	}

	groups := make(map[int][]Candidate)
	var classes []int
	for _, c := range candidates {
		if _, ok := groups[c.ClassID]; !ok {
			classes = append(classes, c.ClassID)
		}
		groups[c.ClassID] = append(groups[c.ClassID], c)
	}

	var kept []Candidate
	for _, class := range classes {
		group := groups[class]
		boxes := make([]image.Rectangle, len(group))
		scores := make([]float32, len(group))
		for i, c := range group {
			boxes[i] = c.Rect()
			scores[i] = c.Score
		}
		for _, idx := range nms(boxes, scores) {
			if idx >= 0 && idx < len(group) {
				kept = append(kept, group[idx])
			}
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Score > kept[j].Score
	})
	return kept
}
