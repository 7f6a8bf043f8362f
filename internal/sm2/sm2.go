package sm2

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidQuality is returned for grades outside the 1-5 scale and for
// scores outside 0-100.
var ErrInvalidQuality = errors.New("sm2: invalid quality")

// Quality is the recall grade of a single review on a 1-5 scale.
type Quality int

const (
	Blackout  Quality = 1
	Familiar  Quality = 2
	Difficult Quality = 3
	Hesitant  Quality = 4
	Perfect   Quality = 5
)

// IsValid reports whether q is on the 1-5 scale.
func (q Quality) IsValid() bool {
	return q >= Blackout && q <= Perfect
}

// Params holds the tunables of the algorithm.
type Params struct {
	PassThreshold  Quality // grades below this are lapses
	MinEase        float64
	FirstInterval  int
	SecondInterval int
	MaxInterval    int // days; zero means unbounded
}

// DefaultParams returns the classic SM-2 settings.
func DefaultParams() *Params {
	return &Params{
		PassThreshold:  Difficult,
		MinEase:        1.3,
		FirstInterval:  1,
		SecondInterval: 6,
		MaxInterval:    36500,
	}
}

// State is the scheduling state of a reviewable item.
type State struct {
	EaseFactor  float64
	Interval    int
	Repetitions int
	NextReview  time.Time
}

// NextState grades an item reviewed on the calendar date today.
func (p *Params) NextState(current State, q Quality, today time.Time) (State, error) {
	if !q.IsValid() {
		return State{}, fmt.Errorf("%w: %d", ErrInvalidQuality, int(q))
	}

	next := State{EaseFactor: p.nextEase(current.EaseFactor, q)}

	if q < p.PassThreshold {
		next.Repetitions = 0
		next.Interval = p.FirstInterval
	} else {
		next.Repetitions = current.Repetitions + 1
		switch next.Repetitions {
		case 1:
			next.Interval = p.FirstInterval
		case 2:
			next.Interval = p.SecondInterval
		default:
			// Uses the ease the item had going into this review.
			next.Interval = int(math.Round(float64(current.Interval) * current.EaseFactor))
		}
		if next.Interval < 1 {
			next.Interval = 1
		}
		if p.MaxInterval > 0 && next.Interval > p.MaxInterval {
			next.Interval = p.MaxInterval
		}
	}

	next.NextReview = today.AddDate(0, 0, next.Interval)
	return next, nil
}

// nextEase applies EF' = EF + (0.1 - (5-q) * (0.08 + (5-q) * 0.02)), floored.
func (p *Params) nextEase(ease float64, q Quality) float64 {
	d := float64(5 - q)
	ease += 0.1 - d*(0.08+d*0.02)
	if ease < p.MinEase {
		ease = p.MinEase
	}
	return ease
}

// IsSuccess reports whether q counts as a correct recall.
func (p *Params) IsSuccess(q Quality) bool {
	return q >= p.PassThreshold
}

// QualityFromScore maps an assessment percentage onto the 1-5 scale.
func QualityFromScore(percent float64) (Quality, error) {
	if math.IsNaN(percent) || percent < 0 || percent > 100 {
		return 0, fmt.Errorf("%w: score %.2f outside 0-100", ErrInvalidQuality, percent)
	}
	switch {
	case percent >= 90:
		return Perfect, nil
	case percent >= 75:
		return Hesitant, nil
	case percent >= 60:
		return Difficult, nil
	case percent >= 40:
		return Familiar, nil
	default:
		return Blackout, nil
	}
}
