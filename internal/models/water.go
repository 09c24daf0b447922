package models

// WaterQuality is a row of the water_quality_data table: one section
// reading of a monitoring station.
type WaterQuality struct {
	ID                   int64   `json:"id"`
	Province             string  `json:"province"`
	RiverBasin           string  `json:"river_basin"`
	SectionName          string  `json:"section_name"`
	MonitoringTime       string  `json:"monitoring_time"`
	WaterQualityCategory string  `json:"water_quality_category"`
	Temperature          Measure `json:"temperature"`
	PH                   Measure `json:"ph"`
	DissolvedOxygen      Measure `json:"dissolved_oxygen"`
	Conductivity         Measure `json:"conductivity"`
	Turbidity            Measure `json:"turbidity"`
	PermanganateIndex    Measure `json:"permanganate_index"`
	AmmoniaNitrogen      Measure `json:"ammonia_nitrogen"`
	TotalPhosphorus      Measure `json:"total_phosphorus"`
	TotalNitrogen        Measure `json:"total_nitrogen"`
	ChlorophyllA         Measure `json:"chlorophyll_a"`
	AlgaeDensity         Measure `json:"algae_density"`
	SiteStatus           string  `json:"site_status"`
}

// Measures returns pointers to the numeric fields in column order.
func (w *WaterQuality) Measures() []*Measure {
	return []*Measure{
		&w.Temperature, &w.PH, &w.DissolvedOxygen, &w.Conductivity,
		&w.Turbidity, &w.PermanganateIndex, &w.AmmoniaNitrogen,
		&w.TotalPhosphorus, &w.TotalNitrogen, &w.ChlorophyllA, &w.AlgaeDensity,
	}
}
