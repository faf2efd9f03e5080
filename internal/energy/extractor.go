// Package energy flattens replay event payloads into per-turn energy readings.
package energy

import (
	"sort"

	"MatchSync/internal/model"
)

// Reading one (player, turn, energy) tuple
type Reading struct {
	PlayerID string
	Turn     int
	Energy   float64
}

// Extract walks the ordered event list of one match. The match-start mapping is
// emitted at turn 0, every per-turn mapping at that event's turn. Bounds are not
// checked here, the store rejects out-of-range values.
func Extract(events []model.EventPayload) []Reading {
	var readings []Reading
	for _, ev := range events {
		if len(ev.InitialEnergy) > 0 {
			readings = appendMapping(readings, ev.InitialEnergy, 0)
		}
		if len(ev.TurnEnergy) > 0 {
			readings = appendMapping(readings, ev.TurnEnergy, ev.Turn)
		}
	}
	return readings
}

// Snapshots readings converted to storage rows with penalty fields derived
func Snapshots(matchID string, readings []Reading) []model.EnergySnapshot {
	out := make([]model.EnergySnapshot, 0, len(readings))
	for _, r := range readings {
		out = append(out, model.NewEnergySnapshot(matchID, r.PlayerID, r.Turn, r.Energy))
	}
	return out
}

// appendMapping player ids are sorted so output is stable across runs
func appendMapping(dst []Reading, mapping map[string]float64, turn int) []Reading {
	ids := make([]string, 0, len(mapping))
	for id := range mapping {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		dst = append(dst, Reading{PlayerID: id, Turn: turn, Energy: mapping[id]})
	}
	return dst
}
