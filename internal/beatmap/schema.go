package beatmap

import "fmt"

// Hand identifies which saber a note belongs to. The numeric value is the
// note's _type in the chart format.
type Hand int

const (
	HandLeft  Hand = 0
	HandRight Hand = 1
)

// Hands lists every hand in encoding order.
var Hands = []Hand{HandLeft, HandRight}

// Prefix returns the column prefix used in wide tables.
func (h Hand) Prefix() string {
	switch h {
	case HandLeft:
		return "l"
	case HandRight:
		return "r"
	default:
		return ""
	}
}

func (h Hand) String() string {
	switch h {
	case HandLeft:
		return "left"
	case HandRight:
		return "right"
	default:
		return fmt.Sprintf("hand(%d)", int(h))
	}
}

// HandForNoteType maps a chart _type to a hand. Bombs and unknown types
// report false.
func HandForNoteType(noteType int) (Hand, bool) {
	switch noteType {
	case int(HandLeft):
		return HandLeft, true
	case int(HandRight):
		return HandRight, true
	default:
		return 0, false
	}
}

// Lane is one categorical note attribute.
type Lane struct {
	Name    string
	Classes int
}

// Lanes is the per-hand lane schema, in column order.
var Lanes = []Lane{
	{Name: "_lineIndex", Classes: 4},
	{Name: "_lineLayer", Classes: 3},
	{Name: "_cutDirection", Classes: 9},
}

const (
	LaneLineIndex = iota
	LaneLineLayer
	LaneCutDirection
)

// Column returns the wide-table column name for a hand and lane,
// e.g. "l_lineIndex".
func Column(h Hand, lane Lane) string {
	return h.Prefix() + lane.Name
}

// LaneValues are the categorical indices of one note, ordered like Lanes.
type LaneValues [3]int

// Valid reports whether every value is within its lane's class range.
func (v LaneValues) Valid() bool {
	for i, lane := range Lanes {
		if v[i] < 0 || v[i] >= lane.Classes {
			return false
		}
	}
	return true
}

// LaneValuesOf extracts the lane indices of a chart note.
func LaneValuesOf(n Note) LaneValues {
	return LaneValues{n.LineIndex, n.LineLayer, n.CutDirection}
}
