// Package leveling maps accumulated points to a profile level and reports
// progress toward the next one.
package leveling

import "math"

// Level identifies a tier on the progression path.
type Level string

const (
	Seeker   Level = "seeker"
	Believer Level = "believer"
	Mystic   Level = "mystic"
	Oracle   Level = "oracle"
)

// Tier is a level together with its display name and point threshold.
type Tier struct {
	Level     Level  `json:"level"`
	Name      string `json:"name"`
	Threshold int64  `json:"threshold"`
}

// tiers is sorted by ascending threshold.
var tiers = []Tier{
	{Level: Seeker, Name: "Seeker", Threshold: 0},
	{Level: Believer, Name: "Believer", Threshold: 100},
	{Level: Mystic, Name: "Mystic", Threshold: 500},
	{Level: Oracle, Name: "Oracle", Threshold: 1000},
}

// Tiers returns the progression path in ascending order.
func Tiers() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return out
}

// LevelFor returns the highest level whose threshold does not exceed points.
// Seeker is the floor, including for negative input.
func LevelFor(points int64) Level {
	return tierFor(points).Level
}

// Parse maps a stored level name to a Level. Unknown names map to Seeker.
func Parse(name string) Level {
	for _, t := range tiers {
		if string(t.Level) == name {
			return t.Level
		}
	}
	return Seeker
}

// TierOf returns the tier describing level. Unknown levels map to Seeker.
func TierOf(level Level) Tier {
	for _, t := range tiers {
		if t.Level == level {
			return t
		}
	}
	return tiers[0]
}

// Progress describes where a point total sits on the progression path.
type Progress struct {
	Points       int64 `json:"points"`
	Current      Tier  `json:"current"`
	Next         *Tier `json:"next,omitempty"`
	Percent      int   `json:"percent"`
	PointsToNext int64 `json:"points_to_next"`
}

// ProgressFor reports the current tier and percent progress toward the next
// one. Percent is points relative to the next threshold, capped at 100; at
// the top tier it is 100 with no next tier.
func ProgressFor(points int64) Progress {
	if points < 0 {
		points = 0
	}
	current := tierFor(points)
	p := Progress{Points: points, Current: current}

	next, ok := nextTier(current.Level)
	if !ok {
		p.Percent = 100
		return p
	}

	p.Next = &next
	p.PointsToNext = next.Threshold - points
	p.Percent = int(math.Min(100, math.Floor(float64(points)*100/float64(next.Threshold))))
	return p
}

func tierFor(points int64) Tier {
	current := tiers[0]
	for _, t := range tiers[1:] {
		if points < t.Threshold {
			break
		}
		current = t
	}
	return current
}

func nextTier(level Level) (Tier, bool) {
	for i, t := range tiers {
		if t.Level == level && i+1 < len(tiers) {
			return tiers[i+1], true
		}
	}
	return Tier{}, false
}
