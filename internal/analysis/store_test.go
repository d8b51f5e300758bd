package analysis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/contrimap/contrimap/internal/db"
	"github.com/contrimap/contrimap/internal/insights"
	"github.com/contrimap/contrimap/internal/mindmap"
	"github.com/contrimap/contrimap/internal/structure"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestCreateAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, "https://github.com/acme/widgets", "acme", "widgets")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Status != StatusProcessing {
		t.Errorf("Status = %q, want processing", rec.Status)
	}
	if rec.FullName != "acme/widgets" {
		t.Errorf("FullName = %q", rec.FullName)
	}

	byID, err := store.GetByID(ctx, rec.ID)
	if err != nil || byID == nil {
		t.Fatalf("GetByID: %v, %v", byID, err)
	}
	byURL, err := store.GetByURL(ctx, "https://github.com/acme/widgets")
	if err != nil || byURL == nil || byURL.ID != rec.ID {
		t.Fatalf("GetByURL: %v, %v", byURL, err)
	}
	byName, err := store.GetByFullName(ctx, "acme/widgets")
	if err != nil || byName == nil || byName.ID != rec.ID {
		t.Fatalf("GetByFullName: %v, %v", byName, err)
	}
	if byName.IssueRoadmaps == nil {
		t.Error("IssueRoadmaps should never be nil")
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	store := setupTestStore(t)

	rec, err := store.GetByID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil record, got %+v", rec)
	}
}

func TestDuplicateURLRejected(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, "https://github.com/acme/widgets", "acme", "widgets"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Create(ctx, "https://github.com/acme/widgets", "acme", "widgets"); err == nil {
		t.Error("expected unique constraint error for duplicate URL")
	}
}

func TestUpdateRoundTripsPayloads(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, "https://github.com/acme/widgets", "acme", "widgets")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	rec.Description = "makes widgets"
	rec.Stars = 42
	rec.Languages = []string{"Go", "JavaScript"}
	rec.Topics = []string{"widgets"}
	rec.Structure = structure.Parse([]structure.TreeEntry{
		{Path: "src", Type: "tree"},
		{Path: "src/main.go", Type: "blob", Size: 100},
	})
	rec.MindMap = &mindmap.Payload{MermaidCode: "flowchart TD"}
	rec.AIInsights = &insights.RepoOverview{Overview: "it makes widgets", TechStack: []string{"Go"}, MainComponents: []string{"src"}}
	now := time.Now().UTC()
	rec.LastAnalyzedAt = &now
	rec.Status = StatusCompleted

	if err := store.Update(ctx, rec); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := store.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("Status = %q", got.Status)
	}
	if got.Stars != 42 || got.Description != "makes widgets" {
		t.Errorf("scalar fields not persisted: %+v", got)
	}
	if got.Structure == nil || got.Structure.Stats.TotalFiles != 1 {
		t.Errorf("structure not round-tripped: %+v", got.Structure)
	}
	if got.MindMap == nil || got.MindMap.MermaidCode != "flowchart TD" {
		t.Errorf("mind map not round-tripped: %+v", got.MindMap)
	}
	if got.AIInsights == nil || got.AIInsights.Overview != "it makes widgets" {
		t.Errorf("insights not round-tripped: %+v", got.AIInsights)
	}
	if got.LastAnalyzedAt == nil {
		t.Error("LastAnalyzedAt not persisted")
	}
	if got.PRPreparationHelp != nil {
		t.Error("unset checklist should stay nil")
	}
}

func TestSetFailed(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, "https://github.com/acme/widgets", "acme", "widgets")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.SetFailed(ctx, rec.ID, "tree fetch exploded"); err != nil {
		t.Fatalf("SetFailed: %v", err)
	}

	got, _ := store.GetByID(ctx, rec.ID)
	if got.Status != StatusFailed {
		t.Errorf("Status = %q, want failed", got.Status)
	}
	if got.Error != "tree fetch exploded" {
		t.Errorf("Error = %q", got.Error)
	}

	if err := store.MarkProcessing(ctx, rec.ID); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	got, _ = store.GetByID(ctx, rec.ID)
	if got.Status != StatusProcessing || got.Error != "" {
		t.Errorf("after MarkProcessing: status=%q error=%q", got.Status, got.Error)
	}
}

func TestSearchMatchesCompletedOnly(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	completed, _ := store.Create(ctx, "https://github.com/acme/widgets", "acme", "widgets")
	completed.Description = "A Widget Factory"
	completed.Status = StatusCompleted
	if err := store.Update(ctx, completed); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, err := store.Create(ctx, "https://github.com/acme/widgets-beta", "acme", "widgets-beta"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	results, err := store.Search(ctx, "widget")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1 (processing records excluded)", len(results))
	}
	if results[0].FullName != "acme/widgets" {
		t.Errorf("FullName = %q", results[0].FullName)
	}

	results, err = store.Search(ctx, "FACTORY")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("case-insensitive description search found %d results", len(results))
	}

	results, err = store.Search(ctx, "no-such-thing")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0", len(results))
	}
}

func TestSearchLimit(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		rec, err := store.Create(ctx,
			fmt.Sprintf("https://github.com/acme/widgets-%d", i), "acme", fmt.Sprintf("widgets-%d", i))
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		rec.Status = StatusCompleted
		rec.Stars = i
		if err := store.Update(ctx, rec); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	results, err := store.Search(ctx, "widgets")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 20 {
		t.Errorf("len(results) = %d, want 20", len(results))
	}
	if results[0].Stars != 24 {
		t.Errorf("results not ordered by stars: first has %d", results[0].Stars)
	}
}

func TestAppendRoadmapDeduplicatesByIssueNumber(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, "https://github.com/acme/widgets", "acme", "widgets")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	entry := IssueRoadmap{
		IssueNumber: 7,
		IssueTitle:  "Fix the crash",
		Roadmap:     insights.Roadmap{Steps: []string{"find it", "fix it"}},
		GeneratedAt: time.Now().UTC(),
	}

	first, cached, err := store.AppendRoadmap(ctx, rec.ID, entry)
	if err != nil {
		t.Fatalf("AppendRoadmap: %v", err)
	}
	if cached {
		t.Error("first append reported cached")
	}
	if first.IssueNumber != 7 {
		t.Errorf("IssueNumber = %d", first.IssueNumber)
	}

	second, cached, err := store.AppendRoadmap(ctx, rec.ID, entry)
	if err != nil {
		t.Fatalf("AppendRoadmap: %v", err)
	}
	if !cached {
		t.Error("second append did not report cached")
	}
	if second.IssueTitle != "Fix the crash" {
		t.Errorf("IssueTitle = %q", second.IssueTitle)
	}

	got, _ := store.GetByID(ctx, rec.ID)
	if len(got.IssueRoadmaps) != 1 {
		t.Errorf("len(IssueRoadmaps) = %d, want 1", len(got.IssueRoadmaps))
	}
}
