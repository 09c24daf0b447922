package fish

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/open-sun/software/internal/models"
)

// RequiredHeaders must all be present in an uploaded dataset.
var RequiredHeaders = []string{"Species", "Weight", "Length1", "Length2", "Length3", "Height", "Width"}

// Dataset is a CSV table as the dashboard renders it.
type Dataset struct {
	Header   []string
	Rows     []map[string]string
	CachedAt time.Time
}

// Clone returns a deep copy.
func (d Dataset) Clone() Dataset {
	out := Dataset{
		Header:   append([]string(nil), d.Header...),
		Rows:     make([]map[string]string, len(d.Rows)),
		CachedAt: d.CachedAt,
	}
	for i, row := range d.Rows {
		cp := make(map[string]string, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out.Rows[i] = cp
	}
	return out
}

// ReadCSV parses a headed CSV. A leading byte order mark is dropped.
func ReadCSV(r io.Reader) (Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Dataset{}, errors.New("empty csv")
	}
	if err != nil {
		return Dataset{}, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\uFEFF"))
	}

	ds := Dataset{Header: header, Rows: []map[string]string{}}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Dataset{}, fmt.Errorf("read row %d: %w", len(ds.Rows)+2, err)
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}

// MissingHeaders lists the required headers absent from header.
func MissingHeaders(header []string) []string {
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[h] = true
	}
	var missing []string
	for _, h := range RequiredHeaders {
		if !have[h] {
			missing = append(missing, h)
		}
	}
	return missing
}

// WriteCSV writes d in header order.
func WriteCSV(w io.Writer, d Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(d.Header); err != nil {
		return err
	}
	rec := make([]string, len(d.Header))
	for _, row := range d.Rows {
		for i, h := range d.Header {
			rec[i] = row[h]
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Records converts d into fish_data rows. Rows without a species or a
// numeric weight are skipped with a warning; other cells that are not
// numbers become nulls.
func Records(d Dataset, logger *zap.Logger) []models.Fish {
	out := make([]models.Fish, 0, len(d.Rows))
	for i, row := range d.Rows {
		line := i + 2
		f := models.Fish{Species: strings.TrimSpace(row["Species"])}
		if f.Species == "" {
			logger.Warn("skip fish row without species", zap.Int("line", line))
			continue
		}
		weight, err := models.ParseMeasure(row["Weight"])
		if err != nil || !weight.Valid {
			logger.Warn("skip fish row without weight",
				zap.Int("line", line), zap.String("species", f.Species), zap.String("weight", row["Weight"]))
			continue
		}
		f.Weight = weight
		for header, m := range map[string]*models.Measure{
			"Length1": &f.Length1, "Length2": &f.Length2,
			"Length3": &f.Length3, "Height": &f.Height, "Width": &f.Width,
		} {
			*m, _ = models.ParseMeasure(row[header])
		}
		out = append(out, f)
	}
	return out
}
