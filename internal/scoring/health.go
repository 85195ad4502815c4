// Package scoring computes the deal health score: a 0-100 integer summarising
// contact recency, timeline realism, pipeline stage and deal age.
package scoring

import (
	"time"

	"github.com/AnsKM/dealflow-crm/internal/domain"
)

// Factor ceilings. They sum to MaxScore.
const (
	MaxRecency   = 40
	MaxProximity = 30
	MaxStage     = 20
	MaxAge       = 10
	MaxScore     = 100
)

const (
	noContactScore   = 5
	noCloseDateScore = 10
	day              = 24 * time.Hour
)

var stageWeights = map[domain.Stage]int{
	domain.StageLead:        5,
	domain.StageQualified:   10,
	domain.StageProposal:    15,
	domain.StageNegotiation: 20,
	domain.StageClosedWon:   20,
	domain.StageClosedLost:  0,
}

// Breakdown is the per-factor contribution to a score.
type Breakdown struct {
	Recency   int `json:"recency"`
	Proximity int `json:"proximity"`
	Stage     int `json:"stage"`
	Age       int `json:"age"`
	Total     int `json:"total"`
}

// Score returns the health score of d as of now.
// It never fails; unknown stages contribute nothing.
func Score(d *domain.Deal, now time.Time) int {
	return Explain(d, now).Total
}

// Explain returns the factor breakdown behind Score.
func Explain(d *domain.Deal, now time.Time) Breakdown {
	now = now.UTC()
	b := Breakdown{
		Recency:   clamp(recency(d.LastContactAt, now), 0, MaxRecency),
		Proximity: clamp(proximity(d.ExpectedCloseDate, d.Stage, now), 0, MaxProximity),
		Stage:     clamp(stageWeights[d.Stage], 0, MaxStage),
		Age:       clamp(age(d.CreatedAt, now), 0, MaxAge),
	}
	b.Total = clamp(b.Recency+b.Proximity+b.Stage+b.Age, 0, MaxScore)
	return b
}

func recency(lastContact *time.Time, now time.Time) int {
	if lastContact == nil {
		return noContactScore
	}
	d := DaysBetween(*lastContact, now)
	switch {
	case d <= 3:
		return 40
	case d <= 7:
		return 30
	case d <= 14:
		return 20
	case d <= 30:
		return 10
	default:
		return 0
	}
}

// proximity rewards a close date that is soon only once the deal is in a
// late stage; an early-stage deal about to close is a red flag.
func proximity(closeDate *time.Time, stage domain.Stage, now time.Time) int {
	if closeDate == nil {
		return noCloseDateScore
	}
	u := DaysBetween(now, *closeDate)
	switch {
	case u < 0:
		return 0
	case u <= 7:
		if stage.Late() {
			return 30
		}
		return 10
	case u <= 30:
		return 25
	case u <= 90:
		return 20
	default:
		return 15
	}
}

func age(createdAt time.Time, now time.Time) int {
	a := 0
	if !createdAt.IsZero() {
		a = DaysBetween(createdAt, now)
	}
	switch {
	case a <= 7:
		return 10
	case a <= 30:
		return 8
	case a <= 90:
		return 5
	default:
		return 2
	}
}

// DaysBetween returns the number of whole days from from to to, rounded
// towards negative infinity. Both instants are compared in UTC.
func DaysBetween(from, to time.Time) int {
	diff := to.UTC().Sub(from.UTC())
	days := diff / day
	if diff%day < 0 {
		days--
	}
	return int(days)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
