package water

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/open-sun/software/internal/apperr"
	"github.com/open-sun/software/internal/models"
)

const (
	byDateDir = "WaterQualitybyDate"
	byNameDir = "water_quality_by_name"

	// siteMonth is the only month directory the per-site CSVs were published under.
	siteMonth = "2021-04"
)

// Table is a single CSV-shaped result.
type Table struct {
	Result int                 `json:"result"`
	Total  int                 `json:"total"`
	Thead  []string            `json:"thead"`
	Tbody  []map[string]string `json:"tbody"`
}

// FileTable is one site's table inside a province listing.
type FileTable struct {
	File  string              `json:"file"`
	Path  string              `json:"path"`
	Total int                 `json:"total"`
	Thead []string            `json:"thead"`
	Tbody []map[string]string `json:"tbody"`
}

// Listing is the result of a province-wide lookup.
type Listing struct {
	Result int         `json:"result"`
	Files  []FileTable `json:"files"`
}

// NameSource answers lookups by province, basin and site.
type NameSource interface {
	Site(ctx context.Context, province, basin, site string) (*Table, error)
	Province(ctx context.Context, province, basin string) (*Listing, error)
}

// cleanSegment rejects values that would escape their directory.
func cleanSegment(field, v string) error {
	if v == "" || v == "." || v == ".." || strings.ContainsAny(v, `/\`) {
		return apperr.New(apperr.Validation, "invalid "+field)
	}
	return nil
}

// FileStore reads the dated JSON snapshots and the per-site CSV tree
// under dataDir.
type FileStore struct {
	dateRoot string
	nameRoot string
}

func NewFileStore(dataDir string) *FileStore {
	dateRoot := filepath.Join(dataDir, byDateDir)
	return &FileStore{dateRoot: dateRoot, nameRoot: filepath.Join(dateRoot, byNameDir)}
}

// NameRoot is the directory holding the per-site CSV tree.
func (s *FileStore) NameRoot() string { return s.nameRoot }

// ByDate returns the JSON snapshot for date (YYYY-MM-DD) verbatim.
func (s *FileStore) ByDate(date string) (json.RawMessage, error) {
	parts := strings.Split(date, "-")
	if len(parts) != 3 {
		return nil, apperr.New(apperr.Validation, "invalid date format, use YYYY-MM-DD")
	}
	for _, p := range parts {
		if p == "" || strings.Trim(p, "0123456789") != "" {
			return nil, apperr.New(apperr.Validation, "invalid date format, use YYYY-MM-DD")
		}
	}

	file := filepath.Join(s.dateRoot, parts[0]+"-"+parts[1], date+".json")
	data, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.New(apperr.NotFound, fmt.Sprintf("data file for %s not found", date))
		}
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("data file for %s is not valid JSON", date)
	}
	return data, nil
}

// Site reads <province>/<basin>/<site>/2021-04/<site>.csv.
func (s *FileStore) Site(ctx context.Context, province, basin, site string) (*Table, error) {
	for field, v := range map[string]string{"province": province, "basin": basin, "site": site} {
		if err := cleanSegment(field, v); err != nil {
			return nil, err
		}
	}

	file := filepath.Join(s.nameRoot, province, basin, site, siteMonth, site+".csv")
	thead, tbody, err := readCSVRecords(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.New(apperr.NotFound, "data file not found")
		}
		return nil, err
	}
	return &Table{Result: 1, Total: len(tbody), Thead: thead, Tbody: tbody}, nil
}

// Province walks every CSV under the province (or one of its basins).
// A missing directory yields an empty listing.
func (s *FileStore) Province(ctx context.Context, province, basin string) (*Listing, error) {
	if err := cleanSegment("province", province); err != nil {
		return nil, err
	}
	root := filepath.Join(s.nameRoot, province)
	if basin != "" {
		if err := cleanSegment("basin", basin); err != nil {
			return nil, err
		}
		root = filepath.Join(root, basin)
	}

	listing := &Listing{Result: 1, Files: []FileTable{}}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == root {
				return filepath.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".csv") {
			return nil
		}

		thead, tbody, err := readCSVRecords(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(s.nameRoot, p)
		listing.Files = append(listing.Files, FileTable{
			File:  d.Name(),
			Path:  filepath.ToSlash(rel),
			Total: len(tbody),
			Thead: thead,
			Tbody: tbody,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Slice(listing.Files, func(i, j int) bool { return listing.Files[i].Path < listing.Files[j].Path })
	return listing, nil
}

// readCSVRecords reads a headed CSV into header-keyed records.
func readCSVRecords(file string) ([]string, []map[string]string, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return []string{}, []map[string]string{}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header of %s: %w", file, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	records := []map[string]string{}
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", file, err)
		}
		rec := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(row) {
				rec[h] = row[i]
			} else {
				rec[h] = ""
			}
		}
		records = append(records, rec)
	}
	return header, records, nil
}

// Queries is the SQL access needed by DBSource.
type Queries interface {
	WaterBySite(ctx context.Context, province, basin, section string) ([]models.WaterQuality, error)
	WaterByProvince(ctx context.Context, province, basin string) ([]models.WaterQuality, error)
}

// DBSource answers name lookups from water_quality_data, shaped like the
// file tree so the dashboard cannot tell the difference.
type DBSource struct {
	q Queries
}

func NewDBSource(q Queries) *DBSource {
	return &DBSource{q: q}
}

func (s *DBSource) Site(ctx context.Context, province, basin, site string) (*Table, error) {
	rows, err := s.q.WaterBySite(ctx, province, basin, site)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.New(apperr.NotFound, "data file not found")
	}
	return &Table{Result: 1, Total: len(rows), Thead: Headers(), Tbody: records(rows)}, nil
}

func (s *DBSource) Province(ctx context.Context, province, basin string) (*Listing, error) {
	rows, err := s.q.WaterByProvince(ctx, province, basin)
	if err != nil {
		return nil, err
	}

	listing := &Listing{Result: 1, Files: []FileTable{}}
	for start := 0; start < len(rows); {
		end := start
		for end < len(rows) && rows[end].RiverBasin == rows[start].RiverBasin && rows[end].SectionName == rows[start].SectionName {
			end++
		}
		group := rows[start:end]
		listing.Files = append(listing.Files, FileTable{
			File:  group[0].SectionName + ".csv",
			Path:  path.Join(province, group[0].RiverBasin, group[0].SectionName),
			Total: len(group),
			Thead: Headers(),
			Tbody: records(group),
		})
		start = end
	}
	return listing, nil
}

func records(rows []models.WaterQuality) []map[string]string {
	out := make([]map[string]string, len(rows))
	for i := range rows {
		out[i] = Record(&rows[i])
	}
	return out
}
