package fish

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/open-sun/software/internal/models"
)

// Inserter is the bulk write side of the fish store.
type Inserter interface {
	BulkInsertFish(ctx context.Context, rows []models.Fish) (int64, error)
}

// LoadFile bulk-loads the dataset CSV into fish_data. A missing file
// loads nothing.
func LoadFile(ctx context.Context, file string, ins Inserter, logger *zap.Logger) (int64, error) {
	f, err := os.Open(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("fish dataset missing", zap.String("file", file))
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()

	ds, err := ReadCSV(f)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", file, err)
	}
	if missing := MissingHeaders(ds.Header); len(missing) > 0 {
		return 0, fmt.Errorf("%s is missing headers %v", file, missing)
	}

	rows := Records(ds, logger)
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := ins.BulkInsertFish(ctx, rows)
	if err != nil {
		return 0, err
	}
	logger.Info("fish data loaded", zap.String("file", file), zap.Int64("rows", n))
	return n, nil
}
