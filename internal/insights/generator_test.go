package insights

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/contrimap/contrimap/internal/codescan"
	"github.com/contrimap/contrimap/internal/llm"
	"github.com/contrimap/contrimap/internal/structure"
)

// stubProvider returns a canned completion and records the last request.
type stubProvider struct {
	content string
	err     error
	lastReq llm.CompletionRequest
}

func (s *stubProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{Content: s.content}, nil
}

func (s *stubProvider) Name() string { return "stub" }

func testContext() RepoContext {
	tree := &structure.Tree{
		Directories: map[string]structure.DirInfo{
			"src":       {Path: "src"},
			"src/utils": {Path: "src/utils"},
		},
		Files: map[string]structure.FileInfo{
			"src/index.js":  {Path: "src/index.js"},
			"src/server.js": {Path: "src/server.js"},
		},
	}
	return RepoContext{
		Name:        "widgets",
		Description: "A widget factory",
		Languages:   []string{"JavaScript", "TypeScript"},
		Topics:      []string{"widgets", "factory"},
		Structure:   tree,
		CodeAnalysis: map[string]codescan.FileScan{
			"src/index.js": {
				Functions: []string{"main", "boot"},
				Classes:   []string{"App"},
				Imports:   []string{"express", "fs", "path", "os", "net", "http"},
			},
		},
		Readme: "Widgets does things.",
	}
}

func TestExplainRepository(t *testing.T) {
	stub := &stubProvider{content: `{
		"overview": "Widgets makes widgets.",
		"purpose": "Widget production.",
		"techStack": ["Node.js"],
		"mainComponents": ["src: entry point"],
		"dataFlow": "Request hits src/server.js.",
		"keyFolders": ["src"],
		"importantFiles": ["src/index.js"]
	}`}
	g := NewGenerator(stub, "test-model")

	overview, err := g.ExplainRepository(context.Background(), testContext())
	if err != nil {
		t.Fatalf("ExplainRepository: %v", err)
	}
	if overview.Overview != "Widgets makes widgets." {
		t.Errorf("Overview = %q", overview.Overview)
	}
	if !stub.lastReq.JSONMode {
		t.Error("request did not ask for JSON mode")
	}
	if stub.lastReq.Temperature != 0.2 {
		t.Errorf("Temperature = %v, want 0.2", stub.lastReq.Temperature)
	}
	if stub.lastReq.MaxTokens != 2500 {
		t.Errorf("MaxTokens = %d, want 2500", stub.lastReq.MaxTokens)
	}
	if stub.lastReq.Model != "test-model" {
		t.Errorf("Model = %q", stub.lastReq.Model)
	}
}

func TestExplainRepositoryPromptContents(t *testing.T) {
	stub := &stubProvider{content: `{"overview":"x","purpose":"x","techStack":["x"],"mainComponents":["x"],"dataFlow":"x","keyFolders":[],"importantFiles":[]}`}
	g := NewGenerator(stub, "m")

	if _, err := g.ExplainRepository(context.Background(), testContext()); err != nil {
		t.Fatalf("ExplainRepository: %v", err)
	}

	prompt := stub.lastReq.Messages[1].Content
	for _, want := range []string{"widgets", "A widget factory", "JavaScript", "src/index.js", "Widgets does things."} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestExplainRepositorySchemaError(t *testing.T) {
	stub := &stubProvider{content: `{"overview": "", "techStack": []}`}
	g := NewGenerator(stub, "m")

	_, err := g.ExplainRepository(context.Background(), testContext())
	var serr *SchemaError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want SchemaError", err)
	}
	if serr.Op != "repository explanation" {
		t.Errorf("Op = %q", serr.Op)
	}
}

func TestExplainRepositoryMalformedJSON(t *testing.T) {
	stub := &stubProvider{content: `not json at all`}
	g := NewGenerator(stub, "m")

	_, err := g.ExplainRepository(context.Background(), testContext())
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	var serr *SchemaError
	if errors.As(err, &serr) {
		t.Error("malformed JSON should be a parse error, not a SchemaError")
	}
}

func TestGenerateContributionGuide(t *testing.T) {
	stub := &stubProvider{content: `{
		"gettingStarted": ["Read the README"],
		"beginnerFriendlyAreas": ["docs"],
		"setupSteps": ["npm install"],
		"commonPatterns": ["middleware chains"]
	}`}
	g := NewGenerator(stub, "m")

	guide, err := g.GenerateContributionGuide(context.Background(), testContext())
	if err != nil {
		t.Fatalf("GenerateContributionGuide: %v", err)
	}
	if len(guide.SetupSteps) != 1 || guide.SetupSteps[0] != "npm install" {
		t.Errorf("SetupSteps = %v", guide.SetupSteps)
	}
	if stub.lastReq.Temperature != 0.3 {
		t.Errorf("Temperature = %v, want 0.3", stub.lastReq.Temperature)
	}
	if stub.lastReq.MaxTokens != 1500 {
		t.Errorf("MaxTokens = %d, want 1500", stub.lastReq.MaxTokens)
	}
}

func TestGenerateIssueRoadmap(t *testing.T) {
	stub := &stubProvider{content: `{
		"steps": ["Step 1: Find the bug"],
		"modulesToUnderstand": ["src"],
		"filesToChange": ["src/index.js"],
		"testingAreas": ["unit tests"],
		"commonMistakes": ["forgetting edge cases"]
	}`}
	g := NewGenerator(stub, "m")

	issue := IssueContext{Number: 42, Title: "Crash on empty input", Labels: []string{"bug"}}
	roadmap, err := g.GenerateIssueRoadmap(context.Background(), issue, testContext())
	if err != nil {
		t.Fatalf("GenerateIssueRoadmap: %v", err)
	}
	if len(roadmap.Steps) != 1 {
		t.Errorf("Steps = %v", roadmap.Steps)
	}
	if !strings.Contains(stub.lastReq.Messages[1].Content, "Crash on empty input") {
		t.Error("prompt missing issue title")
	}
	if !strings.Contains(stub.lastReq.Messages[1].Content, "No description") {
		t.Error("empty issue body should fall back to placeholder")
	}
	if stub.lastReq.MaxTokens != 1500 {
		t.Errorf("MaxTokens = %d, want 1500", stub.lastReq.MaxTokens)
	}
}

func TestGeneratePRChecklist(t *testing.T) {
	stub := &stubProvider{content: `{
		"preSubmitChecks": ["Run the linter"],
		"impactedAreas": ["src"],
		"testingRecommendations": ["run unit tests"],
		"documentationNeeds": ["README"],
		"codeQualityTips": ["match existing style"]
	}`}
	g := NewGenerator(stub, "m")

	checklist, err := g.GeneratePRChecklist(context.Background(), testContext(), "")
	if err != nil {
		t.Fatalf("GeneratePRChecklist: %v", err)
	}
	if len(checklist.PreSubmitChecks) != 1 {
		t.Errorf("PreSubmitChecks = %v", checklist.PreSubmitChecks)
	}
	if !strings.Contains(stub.lastReq.Messages[1].Content, "General bug fix or feature") {
		t.Error("empty proposed changes should fall back to the default")
	}
	if stub.lastReq.MaxTokens != 1200 {
		t.Errorf("MaxTokens = %d, want 1200", stub.lastReq.MaxTokens)
	}
}

func TestGeneratorPropagatesProviderError(t *testing.T) {
	sentinel := errors.New("rate limited")
	stub := &stubProvider{err: sentinel}
	g := NewGenerator(stub, "m")

	_, err := g.ExplainRepository(context.Background(), testContext())
	if !errors.Is(err, sentinel) {
		t.Errorf("err = %v, want wrapped provider error", err)
	}
}

func TestSummariesAreCapped(t *testing.T) {
	rc := testContext()
	prompt := codeSummary(rc)
	if strings.Contains(prompt, "http") {
		t.Error("imports beyond the cap should be dropped")
	}
	if !strings.Contains(prompt, "express") {
		t.Error("imports within the cap should remain")
	}

	if got := readmeExcerpt(strings.Repeat("a", 3000)); len(got) != 1500 {
		t.Errorf("readme excerpt length = %d, want 1500", len(got))
	}
	if got := readmeExcerpt(""); got != "No README available" {
		t.Errorf("empty readme excerpt = %q", got)
	}
}
