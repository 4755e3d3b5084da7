package session

import "github.com/CaioIsCoding/plate-swap-list-app/internal/playlist"

// Entry is a queued plate with its per-copy display strings.
type Entry struct {
	playlist.Plate
	TimeDisplay   string `json:"time_display"`
	WeightDisplay string `json:"weight_display"`
}

type Display struct {
	Duration string `json:"duration"`
	Weight   string `json:"weight"`
}

// State is the full view of the queue returned by every playlist endpoint.
type State struct {
	Plates     []Entry         `json:"plates"`
	Totals     playlist.Totals `json:"totals"`
	Display    Display         `json:"display"`
	Uploading  bool            `json:"uploading"`
	Generating bool            `json:"generating"`
	Version    uint64          `json:"version"`
}

// State reads the queue and the coordinator flags.
func (s *Server) State() State {
	plates, version := s.store.SnapshotVersion()
	totals := playlist.Aggregate(plates)

	entries := make([]Entry, 0, len(plates))
	for _, p := range plates {
		entries = append(entries, Entry{
			Plate:         p,
			TimeDisplay:   playlist.FormatPlateTime(p.PrintTime),
			WeightDisplay: playlist.FormatWeight(p.Weight),
		})
	}

	st := State{
		Plates: entries,
		Totals: totals,
		Display: Display{
			Duration: playlist.FormatDuration(totals.Duration),
			Weight:   playlist.FormatWeight(totals.Weight),
		},
		Version: version,
	}
	if s.uploads != nil {
		st.Uploading = s.uploads.InProgress()
	}
	if s.generates != nil {
		st.Generating = s.generates.InProgress()
	}
	return st
}
