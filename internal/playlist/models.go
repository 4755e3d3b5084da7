package playlist

import "errors"

// Plate is one queued print job. Entries are created from upload responses and keyed by ID.
type Plate struct {
	ID         string  `json:"id"`
	Filename   string  `json:"filename"`
	PlateIndex int     `json:"plate_index"`
	PrintTime  int     `json:"print_time"` // seconds, one copy
	Weight     float64 `json:"weight"`     // grams, one copy
	ImageURL   string  `json:"image_url,omitempty"`
	Count      int     `json:"count"`
}

// Totals are the aggregate statistics of a queue.
type Totals struct {
	Duration int     `json:"total_duration"`
	Weight   float64 `json:"total_weight"`
	Count    int     `json:"total_count"`
}

// ErrInvalidCount is returned for copy counts that are not positive integers.
var ErrInvalidCount = errors.New("count must be a positive integer")
