package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/open-sun/software/internal/models"
)

var fishColumns = []string{"species", "weight", "length1", "length2", "length3", "height", "width"}

func fishArgs(f *models.Fish) []any {
	return []any{f.Species, f.Weight.Ptr(), f.Length1.Ptr(), f.Length2.Ptr(), f.Length3.Ptr(), f.Height.Ptr(), f.Width.Ptr()}
}

func (s *PostgresStore) ListFish(ctx context.Context, offset, limit int) ([]models.Fish, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, species, weight, length1, length2, length3, height, width
		 FROM fish_data ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list fish: %w", err)
	}
	defer rows.Close()

	var out []models.Fish
	for rows.Next() {
		var (
			f    models.Fish
			nums [6]*float64
		)
		if err := rows.Scan(&f.ID, &f.Species, &nums[0], &nums[1], &nums[2], &nums[3], &nums[4], &nums[5]); err != nil {
			return nil, fmt.Errorf("scan fish row: %w", err)
		}
		f.Weight = models.MeasureFromPtr(nums[0])
		f.Length1 = models.MeasureFromPtr(nums[1])
		f.Length2 = models.MeasureFromPtr(nums[2])
		f.Length3 = models.MeasureFromPtr(nums[3])
		f.Height = models.MeasureFromPtr(nums[4])
		f.Width = models.MeasureFromPtr(nums[5])
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountFish(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM fish_data`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count fish: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CreateFish(ctx context.Context, f *models.Fish) (*models.Fish, error) {
	created := *f
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx,
			`INSERT INTO fish_data (species, weight, length1, length2, length3, height, width)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id`,
			fishArgs(f)...,
		).Scan(&created.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("create fish: %w", err)
	}
	return &created, nil
}

func (s *PostgresStore) UpdateFish(ctx context.Context, id int64, f *models.Fish) error {
	args := append([]any{id}, fishArgs(f)...)
	return s.execOne(ctx, "fish record",
		`UPDATE fish_data SET species = $2, weight = $3, length1 = $4, length2 = $5,
			length3 = $6, height = $7, width = $8
		 WHERE id = $1`, args...)
}

func (s *PostgresStore) DeleteFish(ctx context.Context, id int64) error {
	return s.execOne(ctx, "fish record", `DELETE FROM fish_data WHERE id = $1`, id)
}

func (s *PostgresStore) BulkInsertFish(ctx context.Context, rows []models.Fish) (int64, error) {
	var n int64
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		src := pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			return fishArgs(&rows[i]), nil
		})
		var err error
		n, err = tx.CopyFrom(ctx, pgx.Identifier{"fish_data"}, fishColumns, src)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("bulk insert fish: %w", err)
	}
	return n, nil
}
