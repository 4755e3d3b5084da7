package playlist

import "fmt"

// Aggregate sums duration, weight and copies over plates, each weighted by its count.
func Aggregate(plates []Plate) Totals {
	var t Totals
	for _, p := range plates {
		t.Duration += p.PrintTime * p.Count
		t.Weight += p.Weight * float64(p.Count)
		t.Count += p.Count
	}
	return t
}

// FormatDuration renders total seconds as "Hh Mm".
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
}

// FormatPlateTime renders the print time of a single plate as "Hh Mm Ss".
func FormatPlateTime(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dh %dm %ds", seconds/3600, (seconds%3600)/60, seconds%60)
}

func FormatWeight(grams float64) string {
	return fmt.Sprintf("%.2fg", grams)
}
