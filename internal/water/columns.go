package water

import "github.com/open-sun/software/internal/models"

// Column pairs a water_quality_data column with the display header used
// by the monitoring CSVs and the dashboard.
type Column struct {
	Name   string
	Header string
}

// Columns is in canonical CSV header order.
var Columns = []Column{
	{Name: "province", Header: "省份"},
	{Name: "river_basin", Header: "流域"},
	{Name: "section_name", Header: "断面名称"},
	{Name: "monitoring_time", Header: "监测时间"},
	{Name: "water_quality_category", Header: "水质类别"},
	{Name: "temperature", Header: "水温(℃)"},
	{Name: "ph", Header: "pH(无量纲)"},
	{Name: "dissolved_oxygen", Header: "溶解氧(mg/L)"},
	{Name: "conductivity", Header: "电导率(μS/cm)"},
	{Name: "turbidity", Header: "浊度(NTU)"},
	{Name: "permanganate_index", Header: "高锰酸盐指数(mg/L)"},
	{Name: "ammonia_nitrogen", Header: "氨氮(mg/L)"},
	{Name: "total_phosphorus", Header: "总磷(mg/L)"},
	{Name: "total_nitrogen", Header: "总氮(mg/L)"},
	{Name: "chlorophyll_a", Header: "叶绿素α(mg/L)"},
	{Name: "algae_density", Header: "藻密度(cells/L)"},
	{Name: "site_status", Header: "站点情况"},
}

var (
	headerByName = make(map[string]string, len(Columns))
	nameByHeader = make(map[string]string, len(Columns))
)

func init() {
	for _, c := range Columns {
		headerByName[c.Name] = c.Header
		nameByHeader[c.Header] = c.Name
	}
}

// HeaderFor returns the display header of a column name.
func HeaderFor(name string) (string, bool) {
	h, ok := headerByName[name]
	return h, ok
}

// NameFor returns the column name of a display header.
func NameFor(header string) (string, bool) {
	n, ok := nameByHeader[header]
	return n, ok
}

// Headers returns the display headers in canonical order.
func Headers() []string {
	out := make([]string, len(Columns))
	for i, c := range Columns {
		out[i] = c.Header
	}
	return out
}

// Cells renders a row as display values in canonical order.
func Cells(w *models.WaterQuality) []string {
	cells := []string{w.Province, w.RiverBasin, w.SectionName, w.MonitoringTime, w.WaterQualityCategory}
	for _, m := range w.Measures() {
		cells = append(cells, m.Cell())
	}
	return append(cells, w.SiteStatus)
}

// Record renders a row keyed by display header.
func Record(w *models.WaterQuality) map[string]string {
	cells := Cells(w)
	rec := make(map[string]string, len(cells))
	for i, c := range Columns {
		rec[c.Header] = cells[i]
	}
	return rec
}
