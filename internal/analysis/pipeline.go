package analysis

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/contrimap/contrimap/internal/codescan"
	"github.com/contrimap/contrimap/internal/github"
	"github.com/contrimap/contrimap/internal/insights"
	"github.com/contrimap/contrimap/internal/mindmap"
	"github.com/contrimap/contrimap/internal/structure"
)

// maxScannedFiles caps how many important files get their content fetched
// and scanned per analysis.
const maxScannedFiles = 5

// Host is the repository hosting API the pipeline pulls data from.
type Host interface {
	GetRepoInfo(ctx context.Context, owner, name string) (*github.RepoInfo, error)
	GetTree(ctx context.Context, owner, name, branch string) ([]structure.TreeEntry, error)
	GetFileContent(ctx context.Context, owner, name, path, ref string) (string, error)
	GetReadme(ctx context.Context, owner, name string) (string, error)
	GetContributing(ctx context.Context, owner, name string) (string, error)
	GetIssue(ctx context.Context, owner, name string, number int) (*github.Issue, error)
	GetMaintainerStats(ctx context.Context, owner, name string) github.MaintainerStats
}

// Generator is the insight backend the pipeline calls for AI artifacts.
type Generator interface {
	ExplainRepository(ctx context.Context, rc insights.RepoContext) (*insights.RepoOverview, error)
	GenerateContributionGuide(ctx context.Context, rc insights.RepoContext) (*insights.ContributionGuide, error)
	GenerateIssueRoadmap(ctx context.Context, issue insights.IssueContext, rc insights.RepoContext) (*insights.Roadmap, error)
	GeneratePRChecklist(ctx context.Context, rc insights.RepoContext, changes string) (*insights.PRChecklist, error)
}

// Pipeline runs the full analysis for one repository and is the sole
// writer of its record.
type Pipeline struct {
	store     *Store
	host      Host
	generator Generator
}

// NewPipeline wires the pipeline to its collaborators.
func NewPipeline(store *Store, host Host, generator Generator) *Pipeline {
	return &Pipeline{store: store, host: host, generator: generator}
}

// Run executes every stage for the record, persisting after each one.
// A failing stage marks the record failed and returns the error so the
// queue's retry policy applies; progress made before the failure stays
// on the record.
func (p *Pipeline) Run(ctx context.Context, analysisID, owner, name string) error {
	rec, err := p.store.GetByID(ctx, analysisID)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("analysis record not found: %s", analysisID)
	}

	if err := p.store.MarkProcessing(ctx, rec.ID); err != nil {
		return err
	}
	rec.Status = StatusProcessing
	rec.Error = ""

	if err := p.run(ctx, rec, owner, name); err != nil {
		if serr := p.store.SetFailed(ctx, rec.ID, err.Error()); serr != nil {
			log.Printf("analysis: persisting failure for %s: %v", rec.ID, serr)
		}
		return err
	}
	return nil
}

func (p *Pipeline) run(ctx context.Context, rec *Record, owner, name string) error {
	log.Printf("analysis: starting %s/%s (%s)", owner, name, rec.ID)

	info, err := p.host.GetRepoInfo(ctx, owner, name)
	if err != nil {
		return fmt.Errorf("fetching repository info: %w", err)
	}
	rec.Description = info.Description
	rec.Stars = info.Stars
	rec.Forks = info.Forks
	rec.OpenIssues = info.OpenIssues
	rec.Language = info.PrimaryLang
	rec.Languages = info.Languages
	rec.Topics = info.Topics
	if rec.Topics == nil {
		rec.Topics = []string{}
	}
	if err := p.store.Update(ctx, rec); err != nil {
		return err
	}

	entries, err := p.host.GetTree(ctx, owner, name, info.DefaultBranch)
	if err != nil {
		return fmt.Errorf("fetching repository tree: %w", err)
	}
	rec.Structure = structure.Parse(entries)
	if err := p.store.Update(ctx, rec); err != nil {
		return err
	}

	rec.CodeAnalysis = p.scanImportantFiles(ctx, rec, owner, name, info.DefaultBranch)
	if err := p.store.Update(ctx, rec); err != nil {
		return err
	}

	stats := p.host.GetMaintainerStats(ctx, owner, name)

	diagram := mindmap.Build(rec.Structure, rec.Name, mindmap.Context{
		MaintainerStats: mindmap.MaintainerStats{
			AvgResponseDays:  stats.AvgResponseDays,
			AvgResponseHours: stats.AvgResponseHours,
			ActivityLevel:    stats.ActivityLevel,
		},
		Languages:  rec.Languages,
		OpenIssues: rec.OpenIssues,
	})
	rec.MindMap = &diagram
	if err := p.store.Update(ctx, rec); err != nil {
		return err
	}

	readme, contributing := p.fetchDocs(ctx, owner, name)

	rc := insights.RepoContext{
		Name:         rec.Name,
		Description:  rec.Description,
		Languages:    rec.Languages,
		Topics:       rec.Topics,
		Structure:    rec.Structure,
		CodeAnalysis: rec.CodeAnalysis,
		Readme:       readme,
		Contributing: contributing,
	}

	overview, err := p.generator.ExplainRepository(ctx, rc)
	if err != nil {
		return err
	}
	rec.AIInsights = overview
	if err := p.store.Update(ctx, rec); err != nil {
		return err
	}

	guide, err := p.generator.GenerateContributionGuide(ctx, rc)
	if err != nil {
		return err
	}
	rec.ContributionGuide = guide
	if err := p.store.Update(ctx, rec); err != nil {
		return err
	}

	checklist, err := p.generator.GeneratePRChecklist(ctx, rc, "")
	if err != nil {
		return err
	}
	rec.PRPreparationHelp = checklist

	now := time.Now().UTC()
	rec.LastAnalyzedAt = &now
	rec.Status = StatusCompleted
	if err := p.store.Update(ctx, rec); err != nil {
		return err
	}

	log.Printf("analysis: completed %s/%s (%s)", owner, name, rec.ID)
	return nil
}

// scanImportantFiles fetches and scans up to maxScannedFiles important
// files. Fetch failures skip the file rather than failing the stage.
func (p *Pipeline) scanImportantFiles(ctx context.Context, rec *Record, owner, name, ref string) map[string]codescan.FileScan {
	scans := make(map[string]codescan.FileScan)

	important := structure.ImportantFiles(rec.Structure)
	if len(important) > maxScannedFiles {
		important = important[:maxScannedFiles]
	}

	for _, path := range important {
		content, err := p.host.GetFileContent(ctx, owner, name, path, ref)
		if err != nil {
			log.Printf("analysis: skipping %s: %v", path, err)
			continue
		}
		scans[path] = codescan.Scan(content, fileExt(path))
	}
	return scans
}

// fetchDocs gets README and contribution guide concurrently. Missing
// documents are valid and come back empty.
func (p *Pipeline) fetchDocs(ctx context.Context, owner, name string) (readme, contributing string) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		readme, _ = p.host.GetReadme(ctx, owner, name)
	}()
	go func() {
		defer wg.Done()
		contributing, _ = p.host.GetContributing(ctx, owner, name)
	}()
	wg.Wait()
	return readme, contributing
}

// RoadmapForIssue returns the cached roadmap for an issue, generating and
// appending one when absent. cached reports whether the entry was served
// from the record.
func (p *Pipeline) RoadmapForIssue(ctx context.Context, rec *Record, issueNumber int) (entry *IssueRoadmap, cached bool, err error) {
	if existing := rec.FindRoadmap(issueNumber); existing != nil {
		return existing, true, nil
	}

	issue, err := p.host.GetIssue(ctx, rec.Owner, rec.Name, issueNumber)
	if err != nil {
		return nil, false, err
	}

	roadmap, err := p.generator.GenerateIssueRoadmap(ctx, insights.IssueContext{
		Number: issue.Number,
		Title:  issue.Title,
		Body:   issue.Body,
		Labels: issue.Labels,
	}, p.repoContext(rec))
	if err != nil {
		return nil, false, err
	}

	return p.store.AppendRoadmap(ctx, rec.ID, IssueRoadmap{
		IssueNumber: issueNumber,
		IssueTitle:  issue.Title,
		Roadmap:     *roadmap,
		GeneratedAt: time.Now().UTC(),
	})
}

// ChecklistForChanges recomputes a PR checklist for a caller-supplied
// change description. Never cached.
func (p *Pipeline) ChecklistForChanges(ctx context.Context, rec *Record, changes string) (*insights.PRChecklist, error) {
	return p.generator.GeneratePRChecklist(ctx, p.repoContext(rec), changes)
}

func (p *Pipeline) repoContext(rec *Record) insights.RepoContext {
	return insights.RepoContext{
		Name:         rec.Name,
		Description:  rec.Description,
		Languages:    rec.Languages,
		Topics:       rec.Topics,
		Structure:    rec.Structure,
		CodeAnalysis: rec.CodeAnalysis,
	}
}

func fileExt(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		switch path[i] {
		case '.':
			return path[i+1:]
		case '/':
			return ""
		}
	}
	return ""
}
