// Package songtable holds the per-note rows produced from song folders and
// the (song, difficulty) grouping used to window them.
package songtable

import (
	"cmp"
	"path/filepath"
	"slices"

	"golang.org/x/text/unicode/norm"

	"beatset/internal/beatmap"
)

// Row is one hand note aligned to a feature frame.
type Row struct {
	// Song identifies the song folder by its cleaned absolute path, see
	// FolderKey. Title is the display name.
	Song       string
	Title      string
	Difficulty string
	Beat       float64
	Time       float64
	Frame      int
	Hand       beatmap.Hand
	Lanes      beatmap.LaneValues
	Features   []float64
}

// Table is an ordered set of rows.
type Table struct {
	Rows []Row
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Sort orders rows by time, then hand. The sort is stable so notes sharing a
// time and hand keep their chart order.
func (t *Table) Sort() {
	slices.SortStableFunc(t.Rows, compareRows)
}

func compareRows(a, b Row) int {
	if c := cmp.Compare(a.Time, b.Time); c != 0 {
		return c
	}
	return cmp.Compare(a.Hand, b.Hand)
}

// Concat joins tables in order. Nil tables are skipped.
func Concat(tables ...*Table) *Table {
	total := 0
	for _, t := range tables {
		total += t.Len()
	}
	out := &Table{Rows: make([]Row, 0, total)}
	for _, t := range tables {
		if t == nil {
			continue
		}
		out.Rows = append(out.Rows, t.Rows...)
	}
	return out
}

// GroupKey identifies one (song, difficulty) group.
type GroupKey struct {
	Song       string
	Difficulty string
}

// SongName normalizes a song identifier to NFC.
func SongName(name string) string {
	return norm.NFC.String(name)
}

// FolderKey returns the song identity of folder: its cleaned absolute path in
// NFC form. Folders that share a base name under different parents stay
// distinct.
func FolderKey(folder string) string {
	path, err := filepath.Abs(folder)
	if err != nil {
		path = filepath.Clean(folder)
	}
	return SongName(path)
}

// KeyOf returns the group key of a row.
func KeyOf(r Row) GroupKey {
	return GroupKey{Song: SongName(r.Song), Difficulty: r.Difficulty}
}

// Group is the rows of one key, ordered by time then hand.
type Group struct {
	Key  GroupKey
	Rows []Row
}

// Groups partitions the table by (song, difficulty). Groups appear in order
// of their first row.
func (t *Table) Groups() []Group {
	if t.Len() == 0 {
		return nil
	}
	index := make(map[GroupKey]int)
	var groups []Group
	for _, row := range t.Rows {
		key := KeyOf(row)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Rows = append(groups[i].Rows, row)
	}
	for i := range groups {
		slices.SortStableFunc(groups[i].Rows, compareRows)
	}
	return groups
}
