// Package insights turns repository facts into structured AI-generated
// artifacts: an architecture overview, a contribution guide, per-issue
// roadmaps and PR checklists. The backend is any llm.Provider that honors
// JSON-constrained output.
package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/contrimap/contrimap/internal/llm"
)

// Prompt size caps. The summaries keep prompts bounded regardless of
// repository size.
const (
	maxSummaryDirs    = 15
	maxSummaryFiles   = 20
	maxSummaryImports = 5
	maxReadmeChars    = 1500
)

// Generator builds prompts and parses the backend's JSON responses. It does
// not retry and does not cache; both policies belong to the caller.
type Generator struct {
	provider llm.Provider
	model    string
}

// NewGenerator creates a Generator bound to a provider and model.
func NewGenerator(provider llm.Provider, model string) *Generator {
	return &Generator{provider: provider, model: model}
}

// ExplainRepository produces the architecture overview artifact.
func (g *Generator) ExplainRepository(ctx context.Context, rc RepoContext) (*RepoOverview, error) {
	prompt := fmt.Sprintf(`You are a Senior Software Architect. Your task is to analyze the following repository and provide a deep, insightful explanation for a new developer.

Repository: %s
Description: %s
Main Languages: %s
Key Topics: %s

--- REPOSITORY STRUCTURE ---
%s

--- CODE INTELLIGENCE (Main Functions & Classes) ---
%s

--- README EXCERPT ---
%s

Based on this data, provide a highly professional analysis in JSON format:
{
  "overview": "A clear, 3-sentence summary of what this project does and why it exists.",
  "purpose": "The core problem this project solves and its primary use cases.",
  "techStack": ["The main technologies, frameworks, and tools used, inferred from the code and structure."],
  "mainComponents": ["List of 3-5 major modules/components. For each, explain its role."],
  "dataFlow": "A step-by-step explanation of how a typical request or data package moves through the system.",
  "keyFolders": ["Identify 4-6 critical folders. Explain what logic lives there."],
  "importantFiles": ["List 5-7 most important files. Explain why they are critical."]
}

Focus on technical accuracy and architectural clarity. Do not use generic filler text.`,
		rc.Name,
		orDefault(rc.Description, "No description provided"),
		joinCapped(rc.Languages, 5),
		joinCapped(rc.Topics, 10),
		structureSummary(rc),
		codeSummary(rc),
		readmeExcerpt(rc.Readme),
	)

	var overview RepoOverview
	err := g.complete(ctx, "repository explanation",
		"You are an expert software architect providing repository insights. Respond only with valid JSON.",
		prompt, 0.2, 2500, &overview)
	if err != nil {
		return nil, err
	}
	if verr := overview.validate(); verr != nil {
		return nil, &SchemaError{Op: "repository explanation", Detail: verr.Error()}
	}
	return &overview, nil
}

// GenerateContributionGuide produces the contribution guide artifact.
func (g *Generator) GenerateContributionGuide(ctx context.Context, rc RepoContext) (*ContributionGuide, error) {
	hasContributing := "No"
	contributing := "Not available."
	if rc.Contributing != "" {
		hasContributing = "Yes"
		contributing = rc.Contributing
		if len(contributing) > maxReadmeChars {
			contributing = contributing[:maxReadmeChars]
		}
	}

	prompt := fmt.Sprintf(`You are an Open-Source Mentor. Help a developer contribute to "%s".

Languages: %s
Has CONTRIBUTING.md: %s

--- STRUCTURE ---
%s

--- RELEVANT CODE ---
%s

--- CONTRIBUTING GUIDELINES ---
%s

Generate a practical, step-by-step contribution guide in JSON:
{
  "gettingStarted": ["High-level steps to get involved in the community/project."],
  "beginnerFriendlyAreas": ["Specific modules or folders where a beginner can safely make changes without breaking core logic."],
  "setupSteps": ["Actionable, technical steps to set up the dev environment."],
  "commonPatterns": ["Code patterns used in this repository."]
}

Be specific to the technology stack found in the code.`,
		rc.Name,
		strings.Join(rc.Languages, ", "),
		hasContributing,
		structureSummary(rc),
		codeSummary(rc),
		contributing,
	)

	var guide ContributionGuide
	err := g.complete(ctx, "contribution guide",
		"You are a helpful open-source mentor. Respond only with valid JSON.",
		prompt, 0.3, 1500, &guide)
	if err != nil {
		return nil, err
	}
	if verr := guide.validate(); verr != nil {
		return nil, &SchemaError{Op: "contribution guide", Detail: verr.Error()}
	}
	return &guide, nil
}

// GenerateIssueRoadmap produces a roadmap for one issue.
func (g *Generator) GenerateIssueRoadmap(ctx context.Context, issue IssueContext, rc RepoContext) (*Roadmap, error) {
	prompt := fmt.Sprintf(`You are a Tech Lead. Create a technical roadmap for this GitHub issue:

Issue: %s
Details: %s
Labels: %s

Repository Context (%s):
Languages: %s
Structure: %s
Code Intelligence: %s

Create a detailed roadmap in JSON:
{
  "steps": ["Step 1: Locate X", "Step 2: Modify Y", "Step 3: Add test Z"],
  "modulesToUnderstand": ["Which folders/files contain the logic relevant to this issue"],
  "filesToChange": ["Probable files that need edits based on the issue description"],
  "testingAreas": ["Exactly what to test to ensure the fix works"],
  "commonMistakes": ["Specific technical pitfalls in this repo for this type of change"]
}

Base your advice on the actual files and structure mentioned above.`,
		issue.Title,
		orDefault(issue.Body, "No description"),
		strings.Join(issue.Labels, ", "),
		rc.Name,
		strings.Join(rc.Languages, ", "),
		structureSummary(rc),
		codeSummary(rc),
	)

	var roadmap Roadmap
	err := g.complete(ctx, "issue roadmap",
		"You are an expert Tech Lead. Respond only with valid JSON.",
		prompt, 0.2, 1500, &roadmap)
	if err != nil {
		return nil, err
	}
	if verr := roadmap.validate(); verr != nil {
		return nil, &SchemaError{Op: "issue roadmap", Detail: verr.Error()}
	}
	return &roadmap, nil
}

// GeneratePRChecklist produces a checklist for a proposed change.
func (g *Generator) GeneratePRChecklist(ctx context.Context, rc RepoContext, proposedChanges string) (*PRChecklist, error) {
	if proposedChanges == "" {
		proposedChanges = "General bug fix or feature"
	}

	prompt := fmt.Sprintf(`You are an expert Code Reviewer. Prepare a PR checklist for a developer contributing to "%s".

Languages: %s
Proposed Changes: %s

--- CONTEXT ---
%s
%s

Generate a checklist in JSON:
{
  "preSubmitChecks": ["Mandatory checks like linting, build, or formatting."],
  "impactedAreas": ["Which parts of the system might break if these files are changed?"],
  "testingRecommendations": ["Specific tests to run (unit, integration, or manual)."],
  "documentationNeeds": ["Which docs need updating?"],
  "codeQualityTips": ["Repo-specific style tips based on the current code structure."]
}

Focus on preventing regressions and maintaining code quality.`,
		rc.Name,
		strings.Join(rc.Languages, ", "),
		proposedChanges,
		structureSummary(rc),
		codeSummary(rc),
	)

	var checklist PRChecklist
	err := g.complete(ctx, "PR checklist",
		"You are a meticulous code reviewer. Respond only with valid JSON.",
		prompt, 0.3, 1200, &checklist)
	if err != nil {
		return nil, err
	}
	if verr := checklist.validate(); verr != nil {
		return nil, &SchemaError{Op: "PR checklist", Detail: verr.Error()}
	}
	return &checklist, nil
}

// complete sends one JSON-mode request and unmarshals the response body.
// Every failure surfaces as a single operation-tagged error.
func (g *Generator) complete(ctx context.Context, op, system, prompt string, temperature float64, maxTokens int, out any) error {
	resp, err := g.provider.Complete(ctx, llm.CompletionRequest{
		Model: g.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
		JSONMode:    true,
	})
	if err != nil {
		return fmt.Errorf("insight generation failed for %s: %w", op, err)
	}

	if err := json.Unmarshal([]byte(resp.Content), out); err != nil {
		return fmt.Errorf("insight generation failed for %s: parsing response: %w", op, err)
	}
	return nil
}

// structureSummary lists the first directories and files by path, bounded.
func structureSummary(rc RepoContext) string {
	if rc.Structure == nil {
		return "No structure data."
	}

	dirs := make([]string, 0, len(rc.Structure.Directories))
	for p := range rc.Structure.Directories {
		dirs = append(dirs, p)
	}
	sort.Strings(dirs)

	files := make([]string, 0, len(rc.Structure.Files))
	for p := range rc.Structure.Files {
		files = append(files, p)
	}
	sort.Strings(files)

	return fmt.Sprintf("Folders: %s\nFiles: %s",
		joinCapped(dirs, maxSummaryDirs), joinCapped(files, maxSummaryFiles))
}

// codeSummary renders the per-file scan results, imports capped.
func codeSummary(rc RepoContext) string {
	if len(rc.CodeAnalysis) == 0 {
		return "No code analysis data."
	}

	paths := make([]string, 0, len(rc.CodeAnalysis))
	for p := range rc.CodeAnalysis {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, path := range paths {
		scan := rc.CodeAnalysis[path]
		fmt.Fprintf(&b, "File: %s\n", path)
		if len(scan.Classes) > 0 {
			fmt.Fprintf(&b, "  Classes: %s\n", strings.Join(scan.Classes, ", "))
		}
		if len(scan.Functions) > 0 {
			fmt.Fprintf(&b, "  Functions: %s\n", strings.Join(scan.Functions, ", "))
		}
		if len(scan.Imports) > 0 {
			fmt.Fprintf(&b, "  Imports: %s\n", joinCapped(scan.Imports, maxSummaryImports))
		}
	}
	if b.Len() == 0 {
		return "Basic file structure identified."
	}
	return b.String()
}

func readmeExcerpt(readme string) string {
	if readme == "" {
		return "No README available"
	}
	if len(readme) > maxReadmeChars {
		return readme[:maxReadmeChars]
	}
	return readme
}

func joinCapped(items []string, max int) string {
	if len(items) > max {
		items = items[:max]
	}
	return strings.Join(items, ", ")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
