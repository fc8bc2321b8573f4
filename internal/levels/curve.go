// Package levels builds the XP-to-level curve and answers level lookups.
package levels

import (
	"fmt"
	"math"
	"sort"

	"github.com/bchadwic/zombietracker/internal/config"
)

// defaultEarlyThresholds is the hand-tuned cumulative XP for the first levels.
// The remainder of the curve is interpolated up to the configured max
// obtainable XP.
var defaultEarlyThresholds = []int{
	0, 100, 250, 450, 700, 1000, 1350, 1750, 2200, 2700,
	3300, 4000, 4800, 5700, 6700,
}

// curveExponent shapes the interpolated tail: >1 spreads the high levels out
// so the last ones take the longest to reach.
const curveExponent = 1.6

// Curve is a monotonic non-decreasing step table mapping cumulative XP
// thresholds to levels. Level 1 always starts at 0 XP.
type Curve struct {
	thresholds []int // thresholds[i] = min XP for level i+1
}

// NewCurve builds a curve from configuration. The early levels come from the
// hand-tuned threshold list; the rest approach MaxObtainableXP so the final
// level lands exactly on it.
func NewCurve(cfg config.LevelsConfig) (*Curve, error) {
	maxLevel := cfg.MaxLevel
	if maxLevel < 2 {
		return nil, fmt.Errorf("max level must be at least 2, got %d", maxLevel)
	}

	early := cfg.EarlyThresholds
	if len(early) == 0 {
		early = defaultEarlyThresholds
	}
	if early[0] != 0 {
		return nil, fmt.Errorf("first level threshold must be 0, got %d", early[0])
	}
	for i := 1; i < len(early); i++ {
		if early[i] < early[i-1] {
			return nil, fmt.Errorf("early thresholds must be non-decreasing at index %d", i)
		}
	}

	thresholds := make([]int, 0, maxLevel)
	for i := 0; i < len(early) && i < maxLevel; i++ {
		thresholds = append(thresholds, early[i])
	}

	// Interpolate the remaining levels between the last hand-tuned threshold
	// and the max obtainable XP.
	base := thresholds[len(thresholds)-1]
	if cfg.MaxObtainableXP < base {
		return nil, fmt.Errorf("max obtainable XP %d below last early threshold %d", cfg.MaxObtainableXP, base)
	}
	remaining := maxLevel - len(thresholds)
	for i := 1; i <= remaining; i++ {
		frac := math.Pow(float64(i)/float64(remaining), curveExponent)
		t := base + int(math.Round(frac*float64(cfg.MaxObtainableXP-base)))
		if t < thresholds[len(thresholds)-1] {
			t = thresholds[len(thresholds)-1]
		}
		thresholds = append(thresholds, t)
	}

	return &Curve{thresholds: thresholds}, nil
}

// MaxLevel returns the highest reachable level.
func (c *Curve) MaxLevel() int {
	return len(c.thresholds)
}

// LevelFor returns the level for a cumulative XP total. Negative XP is
// treated as zero; LevelFor(0) is always 1.
func (c *Curve) LevelFor(xp int) int {
	if xp < 0 {
		xp = 0
	}
	// First threshold strictly greater than xp; its index is the level.
	i := sort.Search(len(c.thresholds), func(i int) bool {
		return c.thresholds[i] > xp
	})
	if i == 0 {
		return 1
	}
	return i
}

// ThresholdFor returns the minimum cumulative XP for the given level.
func (c *Curve) ThresholdFor(level int) int {
	if level <= 1 {
		return 0
	}
	if level > len(c.thresholds) {
		level = len(c.thresholds)
	}
	return c.thresholds[level-1]
}

// ProgressToNext returns the fraction [0, 1] of the way from the current
// level's threshold to the next one. At max level it returns 1.
func (c *Curve) ProgressToNext(xp int) float64 {
	if xp < 0 {
		xp = 0
	}
	level := c.LevelFor(xp)
	if level >= len(c.thresholds) {
		return 1
	}
	cur := c.thresholds[level-1]
	next := c.thresholds[level]
	if next == cur {
		return 1
	}
	return float64(xp-cur) / float64(next-cur)
}
