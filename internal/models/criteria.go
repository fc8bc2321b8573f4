package models

import (
	"encoding/json"
	"fmt"
)

// Criteria is the decoded predicate payload of an achievement. It is a closed
// union: one variant per achievement kind, decoded once at the catalog
// boundary so the evaluator can switch over concrete types instead of probing
// optional JSON fields.
type Criteria interface {
	criteriaKind() string
}

// RoundMilestoneCriteria qualifies when the user's best round on the map
// reaches Round, or the map's round cap when IsCap is set.
type RoundMilestoneCriteria struct {
	Round *int `json:"round,omitempty"`
	IsCap bool `json:"is_cap,omitempty"`
}

func (RoundMilestoneCriteria) criteriaKind() string { return KindRoundMilestone }

// ChallengeCompleteCriteria qualifies when a run of ChallengeType reaches
// Round (or the map cap), or — for speedrun variants — completes within
// MaxTimeSeconds.
type ChallengeCompleteCriteria struct {
	ChallengeType  string `json:"challenge_type"`
	Round          *int   `json:"round,omitempty"`
	IsCap          bool   `json:"is_cap,omitempty"`
	MaxTimeSeconds *int   `json:"max_time_seconds,omitempty"`
}

func (ChallengeCompleteCriteria) criteriaKind() string { return KindChallengeComplete }

// QuestCompleteCriteria qualifies when any quest run exists for the
// achievement's bound quest. The quest binding lives on the achievement row.
type QuestCompleteCriteria struct{}

func (QuestCompleteCriteria) criteriaKind() string { return KindQuestComplete }

// CountCriteria is the payload for the simple aggregate kinds (maps_played,
// total_rounds): qualifies when the aggregate reaches Count.
type CountCriteria struct {
	Count int `json:"count"`
}

func (CountCriteria) criteriaKind() string { return "count" }

// ErrUnknownKind indicates a criteria kind outside the closed set.
type ErrUnknownKind struct {
	Kind string
}

func (e *ErrUnknownKind) Error() string {
	return fmt.Sprintf("unknown achievement kind: %s", e.Kind)
}

// DecodeCriteria decodes a raw criteria payload for the given kind into its
// typed variant. Callers treat any error as "never qualifies" rather than a
// hard failure so that catalog changes degrade gracefully.
func DecodeCriteria(kind string, raw json.RawMessage) (Criteria, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	switch kind {
	case KindRoundMilestone:
		var c RoundMilestoneCriteria
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("failed to decode %s criteria: %w", kind, err)
		}
		return c, nil
	case KindChallengeComplete:
		var c ChallengeCompleteCriteria
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("failed to decode %s criteria: %w", kind, err)
		}
		return c, nil
	case KindQuestComplete:
		return QuestCompleteCriteria{}, nil
	case KindMapsPlayed, KindTotalRounds:
		var c CountCriteria
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("failed to decode %s criteria: %w", kind, err)
		}
		return c, nil
	default:
		return nil, &ErrUnknownKind{Kind: kind}
	}
}

// DecodedCriteria decodes the achievement's own criteria payload.
func (a *Achievement) DecodedCriteria() (Criteria, error) {
	return DecodeCriteria(a.Kind, a.Criteria)
}
