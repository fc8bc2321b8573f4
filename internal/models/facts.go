package models

// ChallengeFact is the evaluation-relevant projection of a challenge run.
type ChallengeFact struct {
	ChallengeType         string
	RoundReached          int
	Difficulty            *Difficulty
	CompletionTimeSeconds *int
}

// QuestFact is the evaluation-relevant projection of a quest run.
type QuestFact struct {
	QuestID    uint
	Round      *int
	Difficulty *Difficulty
}

// FactSet is a read-only snapshot of everything the evaluator may look at for
// one (user, map) pair, fetched once per batch. MapsPlayed and TotalRounds
// are user-wide aggregates backing the simple counter achievements.
type FactSet struct {
	RoundCap    *int
	Challenges  []ChallengeFact
	Quests      []QuestFact
	MapsPlayed  int
	TotalRounds int
}
