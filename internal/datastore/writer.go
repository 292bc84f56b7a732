package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"beatset/internal/beatmap"
	"beatset/internal/dataset"
	"beatset/internal/songtable"
)

// Run is one stored build.
type Run struct {
	RunID            string
	Partition        string
	CreatedAt        time.Time
	SampleRate       int
	HopLength        int
	NMFCC            int
	WindowLength     int
	Stride           int
	FoldersAttempted int
	FoldersSucceeded int
	Rows             int
	Snippets         int
}

// WriteDataset stores ds in a single transaction. A run id that is already
// present is replaced.
func (s *Store) WriteDataset(ctx context.Context, ds *dataset.Dataset, report dataset.Report, partition string) error {
	if ds == nil {
		return errors.New("write dataset: nil dataset")
	}
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin dataset tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if err := writeRun(ctx, tx, ds, report, partition); err != nil {
			return err
		}
		if err := writeGroups(ctx, tx, ds.RunID, ds.Groups); err != nil {
			return err
		}
		if err := writeSnippets(ctx, tx, ds); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit dataset: %w", err)
		}
		return nil
	})
}

func writeRun(ctx context.Context, tx *sql.Tx, ds *dataset.Dataset, report dataset.Report, partition string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE run_id = ?", ds.RunID); err != nil {
		return fmt.Errorf("replace run: %w", err)
	}
	rows := 0
	for _, g := range ds.Groups {
		rows += len(g.Rows)
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO runs (
        run_id, partition, created_at, sample_rate, hop_length, n_mfcc,
        window_length, stride, folders_attempted, folders_succeeded,
        rows_total, snippets_total
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ds.RunID,
		partition,
		time.Now().UTC().Format(time.RFC3339Nano),
		ds.Params.SampleRate,
		ds.Params.HopLength,
		ds.Params.NMFCC,
		ds.Window.WindowLength,
		ds.Window.Stride,
		report.Attempted,
		report.Succeeded,
		rows,
		len(ds.Snippets),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func writeGroups(ctx context.Context, tx *sql.Tx, runID string, groups []songtable.Group) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO group_rows (
        run_id, song, difficulty, position, title, beat, time_seconds, frame,
        hand, line_index, line_layer, cut_direction, features
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare group rows: %w", err)
	}
	defer stmt.Close()

	for _, group := range groups {
		for pos, row := range group.Rows {
			features, err := packFeatures(row.Features)
			if err != nil {
				return fmt.Errorf("pack features for %s/%s row %d: %w", group.Key.Song, group.Key.Difficulty, pos, err)
			}
			_, err = stmt.ExecContext(ctx,
				runID, group.Key.Song, group.Key.Difficulty, pos, row.Title,
				row.Beat, row.Time, row.Frame, int(row.Hand),
				row.Lanes[0], row.Lanes[1], row.Lanes[2], features,
			)
			if err != nil {
				return fmt.Errorf("insert row %s/%s[%d]: %w", group.Key.Song, group.Key.Difficulty, pos, err)
			}
		}
	}
	return nil
}

func writeSnippets(ctx context.Context, tx *sql.Tx, ds *dataset.Dataset) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO snippets (
        run_id, song, difficulty, snippet_index, row_offset, row_count
    ) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare snippets: %w", err)
	}
	defer stmt.Close()

	for _, snip := range ds.Snippets {
		_, err := stmt.ExecContext(ctx,
			ds.RunID, snip.Key.Song, snip.Key.Difficulty, snip.Index, snip.Offset, len(snip.Rows))
		if err != nil {
			return fmt.Errorf("insert snippet %s/%s#%d: %w", snip.Key.Song, snip.Key.Difficulty, snip.Index, err)
		}
	}
	return nil
}

// Runs lists stored runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
        run_id, partition, created_at, sample_rate, hop_length, n_mfcc,
        window_length, stride, folders_attempted, folders_succeeded,
        rows_total, snippets_total
    FROM runs ORDER BY created_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			run     Run
			created string
		)
		if err := rows.Scan(&run.RunID, &run.Partition, &created, &run.SampleRate, &run.HopLength,
			&run.NMFCC, &run.WindowLength, &run.Stride, &run.FoldersAttempted,
			&run.FoldersSucceeded, &run.Rows, &run.Snippets); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			run.CreatedAt = t
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// SnippetCount returns the number of snippets stored for runID.
func (s *Store) SnippetCount(ctx context.Context, runID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM snippets WHERE run_id = ?", runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count snippets: %w", err)
	}
	return n, nil
}

// Snippet reads back one snippet's rows.
func (s *Store) Snippet(ctx context.Context, runID string, key songtable.GroupKey, index int) ([]songtable.Row, error) {
	var offset, count int
	err := s.db.QueryRowContext(ctx, `SELECT row_offset, row_count FROM snippets
        WHERE run_id = ? AND song = ? AND difficulty = ? AND snippet_index = ?`,
		runID, key.Song, key.Difficulty, index).Scan(&offset, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snippet %s/%s#%d: %w", key.Song, key.Difficulty, index, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query snippet: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT title, beat, time_seconds, frame, hand,
        line_index, line_layer, cut_direction, features
    FROM group_rows
    WHERE run_id = ? AND song = ? AND difficulty = ? AND position >= ? AND position < ?
    ORDER BY position`,
		runID, key.Song, key.Difficulty, offset, offset+count)
	if err != nil {
		return nil, fmt.Errorf("query snippet rows: %w", err)
	}
	defer rows.Close()

	out := make([]songtable.Row, 0, count)
	for rows.Next() {
		row := songtable.Row{Song: key.Song, Difficulty: key.Difficulty}
		var (
			hand     int
			features []byte
		)
		if err := rows.Scan(&row.Title, &row.Beat, &row.Time, &row.Frame, &hand,
			&row.Lanes[0], &row.Lanes[1], &row.Lanes[2], &features); err != nil {
			return nil, fmt.Errorf("scan snippet row: %w", err)
		}
		row.Hand = beatmap.Hand(hand)
		if row.Features, err = unpackFeatures(features); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) != count {
		return nil, fmt.Errorf("snippet %s/%s#%d: expected %d rows, found %d", key.Song, key.Difficulty, index, count, len(out))
	}
	return out, nil
}

func packFeatures(v []float64) ([]byte, error) {
	if len(v) == 0 {
		return nil, errors.New("empty feature vector")
	}
	return mat.NewVecDense(len(v), v).MarshalBinary()
}

func unpackFeatures(raw []byte) ([]float64, error) {
	var vec mat.VecDense
	if err := vec.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("unpack features: %w", err)
	}
	return mat.Col(nil, 0, &vec), nil
}
