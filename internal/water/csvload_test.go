package water

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/open-sun/software/internal/models"
)

const monitoringCSV = `省份,流域,断面名称,监测时间,水质类别,水温(℃),pH(无量纲),溶解氧(mg/L),电导率(μS/cm),浊度(NTU),高锰酸盐指数(mg/L),氨氮(mg/L),总磷(mg/L),总氮(mg/L),叶绿素α(mg/L),藻密度(cells/L),站点情况
浙江省,钱塘江流域,闸口,04-01 00:00,II,16.2,7.8,9.1,310,12,2.1,0.12,0.05,1.6,*,*,正常
浙江省,钱塘江流域,闸口,04-01 04:00,II,abc,7.9,,305,11,2.0,0.10,0.04,1.5,0.01,12000,正常
浙江省,钱塘江流域,闸口,short,row
`

func TestParse(t *testing.T) {
	rows, err := Parse(strings.NewReader(monitoringCSV), "test.csv", zap.NewNop())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	require.Equal(t, "闸口", first.SectionName)
	require.Equal(t, models.Some(16.2), first.Temperature)
	require.False(t, first.ChlorophyllA.Valid)
	require.False(t, first.AlgaeDensity.Valid)
	require.Equal(t, "正常", first.SiteStatus)

	second := rows[1]
	require.False(t, second.Temperature.Valid)
	require.False(t, second.DissolvedOxygen.Valid)
	require.Equal(t, models.Some(12000), second.AlgaeDensity)
}

type recordingInserter struct {
	batches [][]models.WaterQuality
}

func (r *recordingInserter) BulkInsertWater(ctx context.Context, rows []models.WaterQuality) (int64, error) {
	r.batches = append(r.batches, rows)
	return int64(len(rows)), nil
}

func TestLoadDirCommitsPerFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "浙江省", "钱塘江流域", "闸口", siteMonth, "闸口.csv"), monitoringCSV)
	writeFile(t, filepath.Join(root, "浙江省", "太湖流域", "小梅口", siteMonth, "小梅口.csv"), monitoringCSV)
	writeFile(t, filepath.Join(root, "notes.txt"), "ignored")

	ins := &recordingInserter{}
	n, err := LoadDir(context.Background(), root, ins, zap.NewNop())
	require.NoError(t, err)
	require.EqualValues(t, 4, n)
	require.Len(t, ins.batches, 2)
}

func TestLoadDirMissingRoot(t *testing.T) {
	ins := &recordingInserter{}
	n, err := LoadDir(context.Background(), filepath.Join(t.TempDir(), "missing"), ins, zap.NewNop())
	require.NoError(t, err)
	require.Zero(t, n)
}
