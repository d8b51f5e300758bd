package insights

import (
	"fmt"

	"github.com/contrimap/contrimap/internal/codescan"
	"github.com/contrimap/contrimap/internal/structure"
)

// RepoContext carries the repository facts embedded in every prompt.
type RepoContext struct {
	Name         string
	Description  string
	Languages    []string
	Topics       []string
	Structure    *structure.Tree
	CodeAnalysis map[string]codescan.FileScan
	Readme       string
	Contributing string
}

// IssueContext carries the issue fields embedded in a roadmap prompt.
type IssueContext struct {
	Number int
	Title  string
	Body   string
	Labels []string
}

// RepoOverview is the architect-level explanation of a repository.
type RepoOverview struct {
	Overview       string   `json:"overview"`
	Purpose        string   `json:"purpose"`
	TechStack      []string `json:"techStack"`
	MainComponents []string `json:"mainComponents"`
	DataFlow       string   `json:"dataFlow"`
	KeyFolders     []string `json:"keyFolders"`
	ImportantFiles []string `json:"importantFiles"`
}

// ContributionGuide is the practical getting-involved guide.
type ContributionGuide struct {
	GettingStarted        []string `json:"gettingStarted"`
	BeginnerFriendlyAreas []string `json:"beginnerFriendlyAreas"`
	SetupSteps            []string `json:"setupSteps"`
	CommonPatterns        []string `json:"commonPatterns"`
}

// Roadmap is a step-by-step plan for tackling one issue.
type Roadmap struct {
	Steps               []string `json:"steps"`
	ModulesToUnderstand []string `json:"modulesToUnderstand"`
	FilesToChange       []string `json:"filesToChange"`
	TestingAreas        []string `json:"testingAreas"`
	CommonMistakes      []string `json:"commonMistakes"`
}

// PRChecklist is the pre-submission review checklist.
type PRChecklist struct {
	PreSubmitChecks        []string `json:"preSubmitChecks"`
	ImpactedAreas          []string `json:"impactedAreas"`
	TestingRecommendations []string `json:"testingRecommendations"`
	DocumentationNeeds     []string `json:"documentationNeeds"`
	CodeQualityTips        []string `json:"codeQualityTips"`
}

// SchemaError reports a backend response that parsed as JSON but did not
// match the requested schema.
type SchemaError struct {
	Op     string
	Detail string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("response for %s does not match schema: %s", e.Op, e.Detail)
}

func (o *RepoOverview) validate() error {
	if o.Overview == "" {
		return fmt.Errorf("overview is empty")
	}
	if len(o.TechStack) == 0 {
		return fmt.Errorf("techStack is empty")
	}
	if len(o.MainComponents) == 0 {
		return fmt.Errorf("mainComponents is empty")
	}
	return nil
}

func (g *ContributionGuide) validate() error {
	if len(g.GettingStarted) == 0 && len(g.SetupSteps) == 0 {
		return fmt.Errorf("gettingStarted and setupSteps are both empty")
	}
	return nil
}

func (r *Roadmap) validate() error {
	if len(r.Steps) == 0 {
		return fmt.Errorf("steps is empty")
	}
	return nil
}

func (c *PRChecklist) validate() error {
	if len(c.PreSubmitChecks) == 0 {
		return fmt.Errorf("preSubmitChecks is empty")
	}
	return nil
}
