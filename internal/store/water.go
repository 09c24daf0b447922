package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/open-sun/software/internal/models"
)

// WaterColumns is the column order of water_quality_data, excluding id.
// It matches the column order of the monitoring CSVs.
var WaterColumns = []string{
	"province", "river_basin", "section_name", "monitoring_time", "water_quality_category",
	"temperature", "ph", "dissolved_oxygen", "conductivity", "turbidity",
	"permanganate_index", "ammonia_nitrogen", "total_phosphorus", "total_nitrogen",
	"chlorophyll_a", "algae_density", "site_status",
}

const waterSelect = `SELECT id, province, river_basin, section_name, monitoring_time, water_quality_category,
	temperature, ph, dissolved_oxygen, conductivity, turbidity,
	permanganate_index, ammonia_nitrogen, total_phosphorus, total_nitrogen,
	chlorophyll_a, algae_density, site_status
	FROM water_quality_data`

func waterArgs(w *models.WaterQuality) []any {
	args := []any{w.Province, w.RiverBasin, w.SectionName, w.MonitoringTime, w.WaterQualityCategory}
	for _, m := range w.Measures() {
		args = append(args, m.Ptr())
	}
	return append(args, w.SiteStatus)
}

func scanWater(row pgx.Row) (models.WaterQuality, error) {
	var w models.WaterQuality
	var province, basin, section, when, cat, status *string
	var nums [11]*float64
	dest := []any{&w.ID, &province, &basin, &section, &when, &cat}
	for i := range nums {
		dest = append(dest, &nums[i])
	}
	dest = append(dest, &status)

	if err := row.Scan(dest...); err != nil {
		return w, err
	}
	w.Province, w.RiverBasin, w.SectionName = deref(province), deref(basin), deref(section)
	w.MonitoringTime, w.WaterQualityCategory, w.SiteStatus = deref(when), deref(cat), deref(status)
	for i, m := range w.Measures() {
		*m = models.MeasureFromPtr(nums[i])
	}
	return w, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func collectWater(rows pgx.Rows) ([]models.WaterQuality, error) {
	defer rows.Close()
	var out []models.WaterQuality
	for rows.Next() {
		w, err := scanWater(rows)
		if err != nil {
			return nil, fmt.Errorf("scan water row: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListWater(ctx context.Context, offset, limit int) ([]models.WaterQuality, error) {
	rows, err := s.pool.Query(ctx, waterSelect+` ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list water: %w", err)
	}
	return collectWater(rows)
}

func (s *PostgresStore) CountWater(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM water_quality_data`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count water: %w", err)
	}
	return n, nil
}

// WaterBySite returns the readings of one section in insertion order.
func (s *PostgresStore) WaterBySite(ctx context.Context, province, basin, section string) ([]models.WaterQuality, error) {
	rows, err := s.pool.Query(ctx,
		waterSelect+` WHERE province = $1 AND river_basin = $2 AND section_name = $3 ORDER BY id`,
		province, basin, section)
	if err != nil {
		return nil, fmt.Errorf("water by site: %w", err)
	}
	return collectWater(rows)
}

// WaterByProvince returns every reading of a province, optionally
// narrowed to one basin, grouped by basin and section.
func (s *PostgresStore) WaterByProvince(ctx context.Context, province, basin string) ([]models.WaterQuality, error) {
	rows, err := s.pool.Query(ctx,
		waterSelect+` WHERE province = $1 AND ($2 = '' OR river_basin = $2)
		ORDER BY river_basin, section_name, id`,
		province, basin)
	if err != nil {
		return nil, fmt.Errorf("water by province: %w", err)
	}
	return collectWater(rows)
}

func (s *PostgresStore) CreateWater(ctx context.Context, w *models.WaterQuality) (*models.WaterQuality, error) {
	created := *w
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx,
			`INSERT INTO water_quality_data (province, river_basin, section_name, monitoring_time, water_quality_category,
				temperature, ph, dissolved_oxygen, conductivity, turbidity,
				permanganate_index, ammonia_nitrogen, total_phosphorus, total_nitrogen,
				chlorophyll_a, algae_density, site_status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			 RETURNING id`,
			waterArgs(w)...,
		).Scan(&created.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("create water: %w", err)
	}
	return &created, nil
}

func (s *PostgresStore) UpdateWater(ctx context.Context, id int64, w *models.WaterQuality) error {
	args := append([]any{id}, waterArgs(w)...)
	return s.execOne(ctx, "water quality record",
		`UPDATE water_quality_data SET
			province = $2, river_basin = $3, section_name = $4, monitoring_time = $5, water_quality_category = $6,
			temperature = $7, ph = $8, dissolved_oxygen = $9, conductivity = $10, turbidity = $11,
			permanganate_index = $12, ammonia_nitrogen = $13, total_phosphorus = $14, total_nitrogen = $15,
			chlorophyll_a = $16, algae_density = $17, site_status = $18
		 WHERE id = $1`, args...)
}

func (s *PostgresStore) DeleteWater(ctx context.Context, id int64) error {
	return s.execOne(ctx, "water quality record", `DELETE FROM water_quality_data WHERE id = $1`, id)
}

// BulkInsertWater copies rows in one transaction and returns the count.
func (s *PostgresStore) BulkInsertWater(ctx context.Context, rows []models.WaterQuality) (int64, error) {
	var n int64
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		src := pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			return waterArgs(&rows[i]), nil
		})
		var err error
		n, err = tx.CopyFrom(ctx, pgx.Identifier{"water_quality_data"}, WaterColumns, src)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("bulk insert water: %w", err)
	}
	return n, nil
}
