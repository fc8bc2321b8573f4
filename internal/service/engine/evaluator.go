package engine

import (
	"github.com/bchadwic/zombietracker/internal/models"
)

// Qualifies reports whether an achievement's criteria are satisfied by the
// fact snapshot. It is pure: no I/O, no clock, no shared state, so it may run
// in parallel across users. An empty snapshot never qualifies, and adding
// facts can only flip the result from false to true.
//
// Reference-data gaps (nil round cap on an is_cap criterion, undecodable or
// unknown criteria) resolve to "does not qualify" rather than an error so a
// bad catalog row never poisons evaluation of the rest.
func Qualifies(a *models.Achievement, facts *models.FactSet) bool {
	crit, err := a.DecodedCriteria()
	if err != nil {
		return false
	}
	return qualifies(a, crit, facts)
}

func qualifies(a *models.Achievement, crit models.Criteria, facts *models.FactSet) bool {
	switch c := crit.(type) {
	case models.RoundMilestoneCriteria:
		target, ok := resolveTarget(c.Round, c.IsCap, facts.RoundCap)
		if !ok {
			return false
		}
		best, found := bestRound(a.Difficulty, facts)
		return found && best >= target

	case models.ChallengeCompleteCriteria:
		return challengeQualifies(a, c, facts)

	case models.QuestCompleteCriteria:
		if a.QuestID == nil {
			return false
		}
		for _, q := range facts.Quests {
			if q.QuestID == *a.QuestID && difficultyMatches(a.Difficulty, q.Difficulty) {
				return true
			}
		}
		return false

	case models.CountCriteria:
		switch a.Kind {
		case models.KindMapsPlayed:
			return facts.MapsPlayed >= c.Count
		case models.KindTotalRounds:
			return facts.TotalRounds >= c.Count
		}
		return false

	default:
		return false
	}
}

func challengeQualifies(a *models.Achievement, c models.ChallengeCompleteCriteria, facts *models.FactSet) bool {
	roundTarget, hasRoundTarget := resolveTarget(c.Round, c.IsCap, facts.RoundCap)

	for _, f := range facts.Challenges {
		if f.ChallengeType != c.ChallengeType || !difficultyMatches(a.Difficulty, f.Difficulty) {
			continue
		}
		if hasRoundTarget && f.RoundReached >= roundTarget {
			return true
		}
		// Speedrun variant: a missing completion time never satisfies a
		// time-based criterion.
		if c.MaxTimeSeconds != nil && f.CompletionTimeSeconds != nil &&
			*f.CompletionTimeSeconds <= *c.MaxTimeSeconds {
			return true
		}
	}
	return false
}

// resolveTarget resolves the round target of a criterion. Cap criteria
// resolve against the map's round cap; with no cap configured the criterion
// is unsatisfiable, which reports ok=false rather than an error.
func resolveTarget(round *int, isCap bool, roundCap *int) (target int, ok bool) {
	if isCap {
		if roundCap == nil {
			return 0, false
		}
		return *roundCap, true
	}
	if round == nil {
		return 0, false
	}
	return *round, true
}

// bestRound returns the user's best round among facts passing the difficulty
// filter, aggregating challenge runs and quest runs.
func bestRound(difficulty *models.Difficulty, facts *models.FactSet) (best int, found bool) {
	for _, f := range facts.Challenges {
		if !difficultyMatches(difficulty, f.Difficulty) {
			continue
		}
		if !found || f.RoundReached > best {
			best = f.RoundReached
			found = true
		}
	}
	for _, q := range facts.Quests {
		if q.Round == nil || !difficultyMatches(difficulty, q.Difficulty) {
			continue
		}
		if !found || *q.Round > best {
			best = *q.Round
			found = true
		}
	}
	return best, found
}

// difficultyMatches applies the difficulty filter: an untagged achievement
// considers all facts; a tagged one only facts carrying the same tag.
func difficultyMatches(want, got *models.Difficulty) bool {
	if want == nil {
		return true
	}
	return got != nil && *got == *want
}
