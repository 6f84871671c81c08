package strategy

import (
	"fvgtrader/pkg/model"
)

// GapDetector finds fair value gaps in a window of consecutive bars
type GapDetector interface {
	FindFirstGap(bars []model.Candle) *GapPattern
	FindGaps(bars []model.Candle) []GapPattern
}

// Detector is the stateless default GapDetector
type Detector struct{}

func (Detector) FindFirstGap(bars []model.Candle) *GapPattern { return FindFirstGap(bars) }

func (Detector) FindGaps(bars []model.Candle) []GapPattern { return FindGaps(bars) }

// FindFirstGap returns the earliest triple (i, i+1, i+2) whose first and
// third bars do not overlap, or nil.
func FindFirstGap(bars []model.Candle) *GapPattern {
	for i := 0; i+2 < len(bars); i++ {
		if g, ok := gapAt(bars, i); ok {
			return &g
		}
	}
	return nil
}

// FindGaps returns every gap in the window in chronological order
func FindGaps(bars []model.Candle) []GapPattern {
	var gaps []GapPattern
	for i := 0; i+2 < len(bars); i++ {
		if g, ok := gapAt(bars, i); ok {
			gaps = append(gaps, g)
		}
	}
	return gaps
}

func gapAt(bars []model.Candle, i int) (GapPattern, bool) {
	c1, c3 := bars[i], bars[i+2]

	var kind GapKind
	switch {
	case c1.High < c3.Low:
		kind = GapBullish
	case c1.Low > c3.High:
		kind = GapBearish
	default:
		return GapPattern{}, false
	}

	return GapPattern{
		Kind:         kind,
		FirstBarHigh: c1.High,
		FirstBarLow:  c1.Low,
		ThirdBarHigh: c3.High,
		ThirdBarLow:  c3.Low,
		Index:        i,
		FirstBarTime: c1.Time,
	}, true
}

// relocate finds a previously detected gap in a fresh window by the time of
// its first bar. ok is false when the gap has scrolled out of the window.
func relocate(g GapPattern, bars []model.Candle) (GapPattern, bool) {
	if len(bars) < 3 || g.FirstBarTime.Before(bars[0].Time) {
		return GapPattern{}, false
	}
	for i := 0; i+2 < len(bars); i++ {
		if bars[i].Time.Equal(g.FirstBarTime) {
			g.Index = i
			return g, true
		}
	}
	return GapPattern{}, false
}
