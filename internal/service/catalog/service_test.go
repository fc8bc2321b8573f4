package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bchadwic/zombietracker/internal/models"
	"github.com/bchadwic/zombietracker/pkg/logger"
)

// mockAchievementRepo is an in-memory catalog store.
type mockAchievementRepo struct {
	rows   map[uint]*models.Achievement
	nextID uint
}

func newMockAchievementRepo() *mockAchievementRepo {
	return &mockAchievementRepo{rows: make(map[uint]*models.Achievement), nextID: 1}
}

func (m *mockAchievementRepo) ActiveAll() ([]models.Achievement, error) {
	var out []models.Achievement
	for _, a := range m.rows {
		if a.IsActive {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *mockAchievementRepo) FindByIdentity(mapID *uint, slug string, difficulty *models.Difficulty) (*models.Achievement, error) {
	for _, a := range m.rows {
		if !a.IsActive || a.Slug != slug {
			continue
		}
		if (a.MapID == nil) != (mapID == nil) {
			continue
		}
		if mapID != nil && *a.MapID != *mapID {
			continue
		}
		if (a.Difficulty == nil) != (difficulty == nil) {
			continue
		}
		if difficulty != nil && *a.Difficulty != *difficulty {
			continue
		}
		found := *a
		return &found, nil
	}
	return nil, nil
}

func (m *mockAchievementRepo) Create(a *models.Achievement) error {
	a.ID = m.nextID
	m.nextID++
	row := *a
	m.rows[a.ID] = &row
	return nil
}

func (m *mockAchievementRepo) Update(a *models.Achievement) error {
	if _, ok := m.rows[a.ID]; !ok {
		return errors.New("achievement not found")
	}
	row := *a
	m.rows[a.ID] = &row
	return nil
}

func (m *mockAchievementRepo) Deactivate(id uint) error {
	row, ok := m.rows[id]
	if !ok {
		return errors.New("achievement not found")
	}
	row.IsActive = false
	return nil
}

// mockMapRepo resolves slugs from fixed maps and quests.
type mockMapRepo struct {
	maps   map[string]*models.Map
	quests map[string]*models.Quest
}

func (m *mockMapRepo) GetBySlug(slug string) (*models.Map, error) {
	if mp, ok := m.maps[slug]; ok {
		return mp, nil
	}
	return nil, errors.New("map not found")
}

func (m *mockMapRepo) GetQuestBySlug(slug string) (*models.Quest, error) {
	if q, ok := m.quests[slug]; ok {
		return q, nil
	}
	return nil, errors.New("quest not found")
}

func newTestService(achievements *mockAchievementRepo) *Service {
	maps := &mockMapRepo{
		maps: map[string]*models.Map{
			"der-eisendrache": {ID: 1, Slug: "der-eisendrache"},
		},
		quests: map[string]*models.Quest{
			"my-brother-s-keeper": {ID: 7, MapID: 1, Slug: "my-brother-s-keeper"},
		},
	}
	return NewServiceWithInterfaces(achievements, maps, logger.NewNop())
}

func TestApplyPatchCreates(t *testing.T) {
	repo := newMockAchievementRepo()
	svc := newTestService(repo)

	report, err := svc.ApplyPatch(context.Background(), []Definition{
		{
			MapSlug:  "der-eisendrache",
			Slug:     "round-20",
			Name:     "Round 20",
			Kind:     models.KindRoundMilestone,
			XPReward: 100,
			Criteria: map[string]interface{}{"round": 20},
		},
		{
			QuestSlug: "my-brother-s-keeper",
			Slug:      "keeper-complete",
			Name:      "Keeper",
			Kind:      models.KindQuestComplete,
			XPReward:  500,
			Criteria:  map[string]interface{}{},
		},
	})
	if err != nil {
		t.Fatalf("ApplyPatch() failed: %v", err)
	}

	if report.Created != 2 || report.Updated != 0 || report.Deactivated != 0 || report.Skipped != 0 {
		t.Errorf("Unexpected report: %+v", report)
	}

	active, _ := repo.ActiveAll()
	for _, a := range active {
		if a.Slug == "keeper-complete" {
			if a.QuestID == nil || *a.QuestID != 7 {
				t.Errorf("Expected quest ID 7 resolved, got %v", a.QuestID)
			}
			if a.MapID == nil || *a.MapID != 1 {
				t.Errorf("Expected map ID inherited from quest, got %v", a.MapID)
			}
		}
	}
}

func TestApplyPatchUpdatesInPlace(t *testing.T) {
	repo := newMockAchievementRepo()
	svc := newTestService(repo)

	def := Definition{
		MapSlug:  "der-eisendrache",
		Slug:     "round-20",
		Name:     "Round 20",
		Kind:     models.KindRoundMilestone,
		XPReward: 100,
		Criteria: map[string]interface{}{"round": 20},
	}
	if _, err := svc.ApplyPatch(context.Background(), []Definition{def}); err != nil {
		t.Fatalf("Initial patch failed: %v", err)
	}

	var originalID uint
	active, _ := repo.ActiveAll()
	originalID = active[0].ID

	// Same identity, new reward: the row must be updated, not replaced, so
	// historical unlock rows stay attached.
	def.XPReward = 150
	def.Name = "Round Twenty"
	report, err := svc.ApplyPatch(context.Background(), []Definition{def})
	if err != nil {
		t.Fatalf("Second patch failed: %v", err)
	}

	if report.Updated != 1 || report.Created != 0 || report.Deactivated != 0 {
		t.Errorf("Unexpected report: %+v", report)
	}

	active, _ = repo.ActiveAll()
	if len(active) != 1 {
		t.Fatalf("Expected 1 active row, got %d", len(active))
	}
	if active[0].ID != originalID {
		t.Errorf("Expected row %d kept, got %d", originalID, active[0].ID)
	}
	if active[0].XPReward != 150 || active[0].Name != "Round Twenty" {
		t.Errorf("Expected updated fields, got %+v", active[0])
	}
}

func TestApplyPatchDifficultyIsPartOfIdentity(t *testing.T) {
	repo := newMockAchievementRepo()
	svc := newTestService(repo)

	normal := 2
	hardcore := 3
	defs := []Definition{
		{
			MapSlug: "der-eisendrache", Slug: "round-30", Name: "Round 30",
			Kind: models.KindRoundMilestone, Difficulty: &normal,
			XPReward: 100, Criteria: map[string]interface{}{"round": 30},
		},
		{
			MapSlug: "der-eisendrache", Slug: "round-30", Name: "Round 30 HC",
			Kind: models.KindRoundMilestone, Difficulty: &hardcore,
			XPReward: 200, Criteria: map[string]interface{}{"round": 30},
		},
	}

	report, err := svc.ApplyPatch(context.Background(), defs)
	if err != nil {
		t.Fatalf("ApplyPatch() failed: %v", err)
	}
	if report.Created != 2 {
		t.Errorf("Expected two distinct rows per difficulty, got %+v", report)
	}
}

func TestApplyPatchDeactivatesUnmatched(t *testing.T) {
	repo := newMockAchievementRepo()
	svc := newTestService(repo)

	defs := []Definition{
		{
			MapSlug: "der-eisendrache", Slug: "round-20", Name: "Round 20",
			Kind: models.KindRoundMilestone, XPReward: 100,
			Criteria: map[string]interface{}{"round": 20},
		},
		{
			MapSlug: "der-eisendrache", Slug: "round-50", Name: "Round 50",
			Kind: models.KindRoundMilestone, XPReward: 250,
			Criteria: map[string]interface{}{"round": 50},
		},
	}
	if _, err := svc.ApplyPatch(context.Background(), defs); err != nil {
		t.Fatalf("Initial patch failed: %v", err)
	}

	// The next patch drops round-50; its row is deactivated, never deleted.
	report, err := svc.ApplyPatch(context.Background(), defs[:1])
	if err != nil {
		t.Fatalf("Second patch failed: %v", err)
	}
	if report.Deactivated != 1 || report.Updated != 1 {
		t.Errorf("Unexpected report: %+v", report)
	}

	active, _ := repo.ActiveAll()
	if len(active) != 1 || active[0].Slug != "round-20" {
		t.Errorf("Expected only round-20 active, got %+v", active)
	}
	if len(repo.rows) != 2 {
		t.Errorf("Deactivation must keep the row, got %d rows", len(repo.rows))
	}
}

func TestApplyPatchSkipsInvalidDefinitions(t *testing.T) {
	repo := newMockAchievementRepo()
	svc := newTestService(repo)

	report, err := svc.ApplyPatch(context.Background(), []Definition{
		{
			// Unknown kind.
			MapSlug: "der-eisendrache", Slug: "bad-kind", Kind: "time_attack",
			Criteria: map[string]interface{}{},
		},
		{
			// Unresolvable map slug.
			MapSlug: "no-such-map", Slug: "bad-map", Kind: models.KindRoundMilestone,
			Criteria: map[string]interface{}{"round": 10},
		},
		{
			// Invalid difficulty.
			MapSlug: "der-eisendrache", Slug: "bad-difficulty", Kind: models.KindRoundMilestone,
			Difficulty: func() *int { v := 9; return &v }(),
			Criteria:   map[string]interface{}{"round": 10},
		},
		{
			// The one good definition still lands.
			MapSlug: "der-eisendrache", Slug: "round-20", Kind: models.KindRoundMilestone,
			XPReward: 100, Criteria: map[string]interface{}{"round": 20},
		},
	})
	if err != nil {
		t.Fatalf("ApplyPatch() failed: %v", err)
	}

	if report.Skipped != 3 || report.Created != 1 {
		t.Errorf("Expected 3 skipped 1 created, got %+v", report)
	}
}

func TestLoadSeedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "achievements.yaml")

	content := `achievements:
  - map: der-eisendrache
    slug: round-20
    name: Round 20
    kind: round_milestone
    xp_reward: 100
    criteria:
      round: 20
  - map: der-eisendrache
    slug: round-cap
    name: Hit the Cap
    kind: round_milestone
    difficulty: 3
    xp_reward: 1000
    criteria:
      is_cap: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write seed file: %v", err)
	}

	defs, err := LoadSeedFile(path)
	if err != nil {
		t.Fatalf("LoadSeedFile() failed: %v", err)
	}

	if len(defs) != 2 {
		t.Fatalf("Expected 2 definitions, got %d", len(defs))
	}
	if defs[0].Slug != "round-20" || defs[0].XPReward != 100 {
		t.Errorf("Unexpected first definition: %+v", defs[0])
	}
	if defs[1].Difficulty == nil || *defs[1].Difficulty != 3 {
		t.Errorf("Expected difficulty 3, got %v", defs[1].Difficulty)
	}
	if isCap, ok := defs[1].Criteria["is_cap"].(bool); !ok || !isCap {
		t.Errorf("Expected is_cap criterion, got %v", defs[1].Criteria)
	}
}

func TestLoadSeedFileErrors(t *testing.T) {
	if _, err := LoadSeedFile("/nonexistent/achievements.yaml"); err == nil {
		t.Error("Expected error for missing file")
	}

	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte("achievements: []\n"), 0o600); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := LoadSeedFile(empty); err == nil {
		t.Error("Expected error for empty seed file")
	}
}
