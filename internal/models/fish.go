package models

// Fish is a row of the fish_data table. Weight is grams, the lengths,
// height and width are centimetres.
type Fish struct {
	ID      int64   `json:"id"`
	Species string  `json:"species"`
	Weight  Measure `json:"weight"`
	Length1 Measure `json:"length1"`
	Length2 Measure `json:"length2"`
	Length3 Measure `json:"length3"`
	Height  Measure `json:"height"`
	Width   Measure `json:"width"`
}
