package boxes

import (
	flatbush "github.com/bmharper/flatbush-go"
	"github.com/chewxy/math32"
)

// Overlaps returns the IoU of every box against every reference box, indexed
// [box][reference].
//
// References are indexed spatially so each box is only compared against the
// references it can intersect.
func Overlaps(boxes, refs []Box) [][]float32 {
	out := make([][]float32, len(boxes))
	flat := make([]float32, len(boxes)*len(refs))
	for i := range out {
		out[i] = flat[i*len(refs) : (i+1)*len(refs)]
	}
	if len(refs) == 0 || len(boxes) == 0 {
		return out
	}

	fb := flatbush.NewFlatbush[int32]()
	fb.Reserve(len(refs))
	for _, r := range refs {
		x1, y1, x2, y2 := bounds(r)
		fb.Add(x1, y1, x2, y2)
	}
	fb.Finish()

	// Inclusive corners: boxes less than a pixel apart still intersect.
	var hits []int
	for i, b := range boxes {
		x1, y1, x2, y2 := bounds(b)
		hits = fb.SearchFast(x1-1, y1-1, x2+1, y2+1, hits[:0])
		for _, j := range hits {
			out[i][j] = b.IoU(refs[j])
		}
	}
	return out
}

// Match is the best reference of a box.
type Match struct {
	Index int     // -1 when there are no references
	IoU   float32 // 0 when there are no references
}

// BestMatches returns, for every box, the reference it overlaps most.
// Ties keep the lowest reference index.
func BestMatches(boxes, refs []Box) []Match {
	overlaps := Overlaps(boxes, refs)
	matches := make([]Match, len(boxes))
	for i, row := range overlaps {
		m := Match{Index: -1}
		for j, v := range row {
			if m.Index < 0 || v > m.IoU {
				m = Match{Index: j, IoU: v}
			}
		}
		matches[i] = m
	}
	return matches
}

// bounds returns the integer cells covering b, with corners ordered.
func bounds(b Box) (x1, y1, x2, y2 int32) {
	x1 = int32(math32.Floor(math32.Min(b.X1, b.X2)))
	y1 = int32(math32.Floor(math32.Min(b.Y1, b.Y2)))
	x2 = int32(math32.Ceil(math32.Max(b.X1, b.X2)))
	y2 = int32(math32.Ceil(math32.Max(b.Y1, b.Y2)))
	return x1, y1, x2, y2
}
