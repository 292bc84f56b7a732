package snippets

import (
	"testing"

	"beatset/internal/songtable"
)

func groupOf(n int) songtable.Group {
	rows := make([]songtable.Row, n)
	for i := range rows {
		rows[i] = songtable.Row{Song: "s", Difficulty: "Expert", Frame: i}
	}
	return songtable.Group{Key: songtable.GroupKey{Song: "s", Difficulty: "Expert"}, Rows: rows}
}

func TestGenerateOverlappingWindows(t *testing.T) {
	got := Generate(groupOf(5), Options{WindowLength: 3, Stride: 1})
	if len(got) != 3 {
		t.Fatalf("snippets = %d, want 3", len(got))
	}
	for i, snip := range got {
		if snip.Offset != i || snip.Index != i || len(snip.Rows) != 3 {
			t.Fatalf("snippet %d = offset %d index %d len %d", i, snip.Offset, snip.Index, len(snip.Rows))
		}
		for j, row := range snip.Rows {
			if row.Frame != i+j {
				t.Fatalf("snippet %d row %d has frame %d, want %d", i, j, row.Frame, i+j)
			}
		}
	}
}

func TestGenerateDropsTrailingPartialWindow(t *testing.T) {
	got := Generate(groupOf(7), Options{WindowLength: 3, Stride: 3})
	if len(got) != 2 {
		t.Fatalf("snippets = %d, want 2", len(got))
	}
	if got[1].Offset != 3 {
		t.Fatalf("second window offset = %d, want 3", got[1].Offset)
	}
}

func TestGenerateShortGroup(t *testing.T) {
	if got := Generate(groupOf(2), Options{WindowLength: 3, Stride: 1}); got != nil {
		t.Fatalf("expected no snippets, got %d", len(got))
	}
}

func TestCountMatchesGenerate(t *testing.T) {
	for n := 0; n < 40; n++ {
		for _, opts := range []Options{{5, 1}, {5, 2}, {5, 5}, {5, 7}, {1, 1}} {
			got := len(Generate(groupOf(n), opts))
			want := 0
			if n >= opts.WindowLength {
				want = (n-opts.WindowLength)/opts.Stride + 1
			}
			if got != want || Count(n, opts) != want {
				t.Fatalf("n=%d opts=%+v: generated %d, count %d, want %d", n, opts, got, Count(n, opts), want)
			}
		}
	}
}

func TestSnippetRowsCannotGrowIntoNeighbour(t *testing.T) {
	group := groupOf(4)
	got := Generate(group, Options{WindowLength: 2, Stride: 2})
	rows := append(got[0].Rows, songtable.Row{Frame: 99})
	if group.Rows[2].Frame == 99 || rows[2].Frame != 99 {
		t.Fatal("appending to a snippet must not overwrite the next window")
	}
}
