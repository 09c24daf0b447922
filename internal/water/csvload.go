package water

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/open-sun/software/internal/models"
)

// Inserter is the bulk write side of the water store.
type Inserter interface {
	BulkInsertWater(ctx context.Context, rows []models.WaterQuality) (int64, error)
}

// LoadDir bulk-loads every monitoring CSV under root. Each file is
// committed on its own so one bad file does not discard the others.
// A missing root loads nothing.
func LoadDir(ctx context.Context, root string, ins Inserter, logger *zap.Logger) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == root {
				logger.Warn("water data directory missing", zap.String("dir", root))
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".csv") {
			return nil
		}

		rows, err := ParseFile(p, logger)
		if err != nil {
			logger.Error("skip water file", zap.String("file", p), zap.Error(err))
			return nil
		}
		if len(rows) == 0 {
			return nil
		}
		n, err := ins.BulkInsertWater(ctx, rows)
		if err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
		total += n
		return nil
	})
	if err != nil {
		return total, err
	}
	logger.Info("water data loaded", zap.String("dir", root), zap.Int64("rows", total))
	return total, nil
}

// ParseFile reads one monitoring CSV, skipping its header and any row
// without exactly one cell per column.
func ParseFile(file string, logger *zap.Logger) ([]models.WaterQuality, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f, file, logger)
}

// Parse is ParseFile over an arbitrary reader; name is used in log lines.
func Parse(r io.Reader, name string, logger *zap.Logger) ([]models.WaterQuality, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	if _, err := cr.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var rows []models.WaterQuality
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) != len(Columns) {
			continue
		}
		rows = append(rows, parseRow(rec, name, line, logger))
	}
	return rows, nil
}

func parseRow(rec []string, name string, line int, logger *zap.Logger) models.WaterQuality {
	w := models.WaterQuality{
		Province:             rec[0],
		RiverBasin:           rec[1],
		SectionName:          rec[2],
		MonitoringTime:       rec[3],
		WaterQualityCategory: rec[4],
		SiteStatus:           rec[16],
	}
	for i, m := range w.Measures() {
		v, err := models.ParseMeasure(rec[5+i])
		if err != nil {
			logger.Warn("unparsable measurement stored as null",
				zap.String("file", name), zap.Int("line", line),
				zap.String("column", Columns[5+i].Name), zap.Error(err))
		}
		*m = v
	}
	return w
}
