package sm2

import (
	"errors"
	"math"
	"testing"
	"time"
)

var today = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func freshState() State {
	return State{EaseFactor: 2.5, Interval: 0, Repetitions: 0, NextReview: today}
}

func TestNextStateEaseFloor(t *testing.T) {
	params := DefaultParams()

	for _, ease := range []float64{1.3, 1.31, 1.5, 2.0, 2.5, 3.7} {
		for q := Blackout; q <= Perfect; q++ {
			next, err := params.NextState(State{EaseFactor: ease, Interval: 10, Repetitions: 4}, q, today)
			if err != nil {
				t.Fatalf("NextState(%.2f, %d) returned error: %v", ease, q, err)
			}
			if next.EaseFactor < 1.3 {
				t.Errorf("ease %.2f graded %d dropped to %.4f, below the 1.3 floor", ease, q, next.EaseFactor)
			}
		}
	}

	// Repeated blackouts stay pinned at the floor.
	state := freshState()
	for i := 0; i < 20; i++ {
		var err error
		state, err = params.NextState(state, Blackout, today)
		if err != nil {
			t.Fatalf("NextState returned error: %v", err)
		}
	}
	if state.EaseFactor != 1.3 {
		t.Errorf("Expected ease to settle at 1.3, got %.4f", state.EaseFactor)
	}
}

func TestNextStateLapseResets(t *testing.T) {
	params := DefaultParams()
	priors := []State{
		freshState(),
		{EaseFactor: 2.8, Interval: 40, Repetitions: 6},
		{EaseFactor: 1.3, Interval: 1, Repetitions: 1},
	}

	for _, prior := range priors {
		for _, q := range []Quality{Blackout, Familiar} {
			next, err := params.NextState(prior, q, today)
			if err != nil {
				t.Fatalf("NextState returned error: %v", err)
			}
			if next.Repetitions != 0 || next.Interval != 1 {
				t.Errorf("Lapse from %+v with q=%d gave reps=%d interval=%d, want 0 and 1",
					prior, q, next.Repetitions, next.Interval)
			}
			if !next.NextReview.Equal(today.AddDate(0, 0, 1)) {
				t.Errorf("Expected lapsed card due tomorrow, got %v", next.NextReview)
			}
		}
	}
}

func TestNextStateTrajectory(t *testing.T) {
	params := DefaultParams()
	state := freshState()
	want := []int{1, 6, 15, 38, 95}

	for i, interval := range want {
		var err error
		state, err = params.NextState(state, Hesitant, today)
		if err != nil {
			t.Fatalf("review %d: unexpected error: %v", i+1, err)
		}
		if state.Interval != interval {
			t.Errorf("review %d: interval = %d, want %d", i+1, state.Interval, interval)
		}
		if state.Repetitions != i+1 {
			t.Errorf("review %d: repetitions = %d, want %d", i+1, state.Repetitions, i+1)
		}
	}
}

func TestNextStateEndToEnd(t *testing.T) {
	params := DefaultParams()
	state := freshState()

	t.Run("Perfect from new", func(t *testing.T) {
		var err error
		state, err = params.NextState(state, Perfect, today)
		if err != nil {
			t.Fatal(err)
		}
		assertState(t, state, 2.6, 1, 1)
	})

	t.Run("Perfect again", func(t *testing.T) {
		var err error
		state, err = params.NextState(state, Perfect, today)
		if err != nil {
			t.Fatal(err)
		}
		assertState(t, state, 2.7, 6, 2)
	})

	t.Run("Lapse", func(t *testing.T) {
		var err error
		state, err = params.NextState(state, Familiar, today)
		if err != nil {
			t.Fatal(err)
		}
		// 2.7 + (0.1 - 3 * (0.08 + 3 * 0.02)) = 2.38
		assertState(t, state, 2.38, 1, 0)
	})
}

func TestNextStateRejectsInvalidQuality(t *testing.T) {
	params := DefaultParams()
	for _, q := range []Quality{0, -1, 6, 42} {
		_, err := params.NextState(freshState(), q, today)
		if !errors.Is(err, ErrInvalidQuality) {
			t.Errorf("NextState(q=%d) error = %v, want ErrInvalidQuality", q, err)
		}
	}
}

func TestNextStateSuccessNeverZeroInterval(t *testing.T) {
	params := DefaultParams()
	// A state with repetitions but no interval, as left by a manual edit.
	next, err := params.NextState(State{EaseFactor: 2.5, Interval: 0, Repetitions: 3}, Perfect, today)
	if err != nil {
		t.Fatal(err)
	}
	if next.Interval < 1 {
		t.Errorf("Expected interval of at least 1 after success, got %d", next.Interval)
	}
}

func TestQualityFromScore(t *testing.T) {
	testCases := []struct {
		score float64
		want  Quality
	}{
		{100, Perfect},
		{90, Perfect},
		{89.9, Hesitant},
		{75, Hesitant},
		{60, Difficult},
		{59.99, Familiar},
		{40, Familiar},
		{39, Blackout},
		{0, Blackout},
	}

	for _, tc := range testCases {
		got, err := QualityFromScore(tc.score)
		if err != nil {
			t.Fatalf("QualityFromScore(%.2f) returned error: %v", tc.score, err)
		}
		if got != tc.want {
			t.Errorf("QualityFromScore(%.2f) = %d, want %d", tc.score, got, tc.want)
		}
	}

	for _, bad := range []float64{-0.1, 100.5, math.NaN()} {
		if _, err := QualityFromScore(bad); !errors.Is(err, ErrInvalidQuality) {
			t.Errorf("QualityFromScore(%v) error = %v, want ErrInvalidQuality", bad, err)
		}
	}
}

func assertState(t *testing.T, s State, ease float64, interval, reps int) {
	t.Helper()
	if math.Abs(s.EaseFactor-ease) > 1e-9 {
		t.Errorf("ease = %.4f, want %.4f", s.EaseFactor, ease)
	}
	if s.Interval != interval {
		t.Errorf("interval = %d, want %d", s.Interval, interval)
	}
	if s.Repetitions != reps {
		t.Errorf("repetitions = %d, want %d", s.Repetitions, reps)
	}
}

func TestNextStateCapsInterval(t *testing.T) {
	params := DefaultParams()
	next, err := params.NextState(State{EaseFactor: 3.0, Interval: 30000, Repetitions: 12}, Perfect, today)
	if err != nil {
		t.Fatal(err)
	}
	if next.Interval != params.MaxInterval {
		t.Errorf("Expected interval capped at %d, got %d", params.MaxInterval, next.Interval)
	}
}
