package model

// Penalty tiers of an energy reading
const (
	PenaltyNone     = "none"
	PenaltyModerate = "moderate"
	PenaltySevere   = "severe"
)

// Energy thresholds shared by ingestion and the read views
const (
	ModerateEnergyThreshold = 30.0
	SevereEnergyThreshold   = 10.0
)

// PenaltyTier tier of an energy value, must agree with the SQL views
func PenaltyTier(energy float64) string {
	switch {
	case energy >= ModerateEnergyThreshold:
		return PenaltyNone
	case energy >= SevereEnergyThreshold:
		return PenaltyModerate
	default:
		return PenaltySevere
	}
}

// PenaltyMagnitude 0 above 30, (30-e)*0.5 in [10,30), (10-e)*1.5+10 below 10
func PenaltyMagnitude(energy float64) float64 {
	switch {
	case energy >= ModerateEnergyThreshold:
		return 0
	case energy >= SevereEnergyThreshold:
		return (ModerateEnergyThreshold - energy) * 0.5
	default:
		return (SevereEnergyThreshold-energy)*1.5 + 10
	}
}

// GoalConversionRate goals/shots, nil when shots is 0
func GoalConversionRate(goals, shots int) *float64 {
	return ratio(goals, shots)
}

// FoulRate fouls/tackles, nil when tackles is 0
func FoulRate(fouls, tackles int) *float64 {
	return ratio(fouls, tackles)
}

func ratio(num, den int) *float64 {
	if den <= 0 {
		return nil
	}
	r := float64(num) / float64(den)
	return &r
}

// NewEnergySnapshot snapshot with its derived penalty fields filled
func NewEnergySnapshot(matchID, playerID string, turn int, energy float64) EnergySnapshot {
	return EnergySnapshot{
		MatchID:          matchID,
		PlayerID:         playerID,
		Turn:             turn,
		Energy:           energy,
		PenaltyTier:      PenaltyTier(energy),
		PenaltyMagnitude: PenaltyMagnitude(energy),
	}
}
