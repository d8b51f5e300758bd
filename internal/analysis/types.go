// Package analysis owns the repository analysis record: its persistence,
// the pipeline that fills it in, and the HTTP routes that expose the
// generated artifacts.
package analysis

import (
	"time"

	"github.com/contrimap/contrimap/internal/codescan"
	"github.com/contrimap/contrimap/internal/insights"
	"github.com/contrimap/contrimap/internal/mindmap"
	"github.com/contrimap/contrimap/internal/structure"
)

// Status is the lifecycle state of an analysis record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Record is one repository analysis, keyed by repository URL. The pipeline
// is its sole writer; everything else reads.
type Record struct {
	ID          string   `json:"id"`
	RepoURL     string   `json:"repoUrl"`
	Owner       string   `json:"owner"`
	Name        string   `json:"name"`
	FullName    string   `json:"fullName"`
	Description string   `json:"description"`
	Stars       int      `json:"stars"`
	Forks       int      `json:"forks"`
	OpenIssues  int      `json:"openIssues"`
	Language    string   `json:"language"`
	Languages   []string `json:"languages"`
	Topics      []string `json:"topics"`

	Structure         *structure.Tree              `json:"structure,omitempty"`
	CodeAnalysis      map[string]codescan.FileScan `json:"codeAnalysis,omitempty"`
	MindMap           *mindmap.Payload             `json:"mindMapData,omitempty"`
	AIInsights        *insights.RepoOverview       `json:"aiInsights,omitempty"`
	ContributionGuide *insights.ContributionGuide  `json:"contributionGuide,omitempty"`
	PRPreparationHelp *insights.PRChecklist        `json:"prPreparationHelp,omitempty"`
	IssueRoadmaps     []IssueRoadmap               `json:"issueRoadmaps"`

	Status         Status     `json:"analysisStatus"`
	Error          string     `json:"analysisError,omitempty"`
	LastAnalyzedAt *time.Time `json:"lastAnalyzedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// IssueRoadmap is one cached per-issue roadmap. Entries are unique per
// issue number.
type IssueRoadmap struct {
	IssueNumber int              `json:"issueNumber"`
	IssueTitle  string           `json:"issueTitle"`
	Roadmap     insights.Roadmap `json:"roadmap"`
	GeneratedAt time.Time        `json:"generatedAt"`
}

// FindRoadmap returns the cached roadmap for an issue number, or nil.
func (r *Record) FindRoadmap(issueNumber int) *IssueRoadmap {
	for i := range r.IssueRoadmaps {
		if r.IssueRoadmaps[i].IssueNumber == issueNumber {
			return &r.IssueRoadmaps[i]
		}
	}
	return nil
}
