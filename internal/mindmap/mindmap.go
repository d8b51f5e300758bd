// Package mindmap renders a repository's contribution journey as a fixed
// eight-stage mermaid flowchart. The topology never changes; only the node
// labels are interpolated from the analyzed structure and repo metadata.
package mindmap

import (
	"fmt"
	"sort"
	"strings"

	"github.com/contrimap/contrimap/internal/structure"
)

// MaintainerStats summarizes maintainer responsiveness for label text.
type MaintainerStats struct {
	AvgResponseDays  int    `json:"avgResponseDays"`
	AvgResponseHours int    `json:"avgResponseHours"`
	ActivityLevel    string `json:"activityLevel"` // very-active, active, moderate, slow
}

// Context carries the repository metadata interpolated into the diagram.
type Context struct {
	MaintainerStats MaintainerStats
	Languages       []string
	OpenIssues      int
}

// Payload is the stored diagram artifact.
type Payload struct {
	MermaidCode string `json:"mermaidCode"`
}

// Area is a directory classified for the branch stage of the diagram.
type Area struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// EssentialFile is a first-stage display file with its fixed priority.
type EssentialFile struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Priority    int    `json:"priority"`
	Description string `json:"description"`
}

type areaRule struct {
	name        string
	description string
	areaType    string
}

// beginnerRules classify low-risk directories: docs, assets, styling and
// generic utility folders. Ordered; first match wins.
var beginnerRules = []areaRule{
	{"docs", "Documentation files", "documentation"},
	{"public", "Static assets", "assets"},
	{"styles", "CSS/Styling", "styling"},
	{"assets", "Images & resources", "assets"},
	{"components", "UI components", "frontend"},
	{"utils", "Helper functions", "utilities"},
	{"helpers", "Utility functions", "utilities"},
}

// coreRules classify business-logic layers a newcomer should approach later.
var coreRules = []areaRule{
	{"controllers", "Business logic", "backend"},
	{"models", "Data models", "backend"},
	{"services", "Core services", "backend"},
	{"routes", "API routes", "backend"},
	{"middleware", "Request processing", "backend"},
	{"api", "API layer", "backend"},
	{"core", "Core functionality", "system"},
	{"engine", "Main engine", "system"},
}

// essentialRules rank the files shown in the diagram's first stage.
var essentialRules = []EssentialFile{
	{Name: "README.md", Priority: 1, Description: "Project overview"},
	{Name: "CONTRIBUTING.md", Priority: 2, Description: "How to contribute"},
	{Name: "package.json", Priority: 3, Description: "Dependencies & scripts"},
	{Name: "requirements.txt", Priority: 3, Description: "Python dependencies"},
}

// Build derives the flow diagram from a normalized structure. A nil tree
// yields a placeholder diagram rather than an error: this is pure string
// templating and has no failure mode.
func Build(tree *structure.Tree, repoName string, ctx Context) Payload {
	if tree == nil {
		tree = &structure.Tree{
			Directories: map[string]structure.DirInfo{},
			Files:       map[string]structure.FileInfo{},
		}
	}

	beginnerAreas := BeginnerAreas(tree)
	coreAreas := CoreAreas(tree)
	essential := EssentialFiles(tree)
	testDirs := TestDirectories(tree)

	primaryLang := "General"
	if len(ctx.Languages) > 0 {
		primaryLang = ctx.Languages[0]
	}

	waitTime := ctx.MaintainerStats.AvgResponseDays
	if waitTime == 0 {
		waitTime = 3
	}
	emoji := activityEmoji(ctx.MaintainerStats.ActivityLevel)

	var b strings.Builder
	b.WriteString("flowchart TD\n")
	b.WriteString("    classDef startNode fill:#10b981,stroke:#059669,stroke-width:3px,color:#fff\n")
	b.WriteString("    classDef easyNode fill:#22c55e,stroke:#16a34a,stroke-width:2px,color:#fff\n")
	b.WriteString("    classDef mediumNode fill:#3b82f6,stroke:#2563eb,stroke-width:2px,color:#fff\n")
	b.WriteString("    classDef hardNode fill:#ef4444,stroke:#dc2626,stroke-width:2px,color:#fff\n")
	b.WriteString("    classDef successNode fill:#fbbf24,stroke:#f59e0b,stroke-width:3px,color:#000\n\n")

	filesList := joinNames(essentialNames(essential), 3)
	fmt.Fprintf(&b, "    A[\"📖 Step 1: Read These First<br/>%s\"]:::easyNode\n", filesList)

	techList := joinStrings(ctx.Languages, 3)
	fmt.Fprintf(&b, "    B[\"💻 Step 2: Learn %s<br/>Stack: %s\"]:::easyNode\n", primaryLang, techList)
	b.WriteString("    A --> B\n\n")

	fmt.Fprintf(&b, "    C{\"🚀 Step 3: Pick Your Area<br/>%d beginner | %d advanced\"}:::startNode\n",
		len(beginnerAreas), len(coreAreas))
	b.WriteString("    B --> C\n\n")

	fmt.Fprintf(&b, "    D[\"🟢 Beginner Areas<br/>Start: %s\"]:::easyNode\n", joinNames(areaNames(beginnerAreas), 2))
	b.WriteString("    C -->|\"Easy Start\"| D\n\n")

	fmt.Fprintf(&b, "    E[\"🔴 Advanced Areas<br/>Complex: %s\"]:::hardNode\n", joinNames(areaNames(coreAreas), 2))
	b.WriteString("    C -->|\"Advanced\"| E\n\n")

	testDir := "tests"
	if len(testDirs) > 0 {
		testDir = testDirs[0].Name
	}
	fmt.Fprintf(&b, "    F[\"✏️ Step 4: Make Changes & Write Tests<br/>Add tests in: %s\"]:::mediumNode\n", testDir)
	b.WriteString("    D --> F\n")
	b.WriteString("    E --> F\n\n")

	fmt.Fprintf(&b, "    G[\"✅ Step 5: Pre-PR Checklist & Submit<br/>Run %s tests + format | %d open issues\"]:::mediumNode\n",
		primaryLang, ctx.OpenIssues)
	b.WriteString("    F --> G\n\n")

	fmt.Fprintf(&b, "    H[\"%s Step 6: Maintainer Review<br/>Avg response: ~%d days\"]:::mediumNode\n", emoji, waitTime)
	b.WriteString("    G --> H\n\n")

	fmt.Fprintf(&b, "    I[\"🎉 Merged to %s!<br/>You're now a contributor!\"]:::successNode\n", repoName)
	b.WriteString("    H --> I\n")

	return Payload{MermaidCode: b.String()}
}

// activityEmoji maps a responsiveness tier to its display emoji.
func activityEmoji(level string) string {
	switch level {
	case "very-active":
		return "⚡"
	case "active":
		return "🔥"
	case "moderate":
		return "⏳"
	default:
		return "🐌"
	}
}

// BeginnerAreas returns directories a newcomer can change with low risk.
func BeginnerAreas(t *structure.Tree) []Area {
	return classify(t, beginnerRules)
}

// CoreAreas returns directories holding the business-logic layers.
func CoreAreas(t *structure.Tree) []Area {
	return classify(t, coreRules)
}

func classify(t *structure.Tree, rules []areaRule) []Area {
	var areas []Area
	for _, d := range sortedDirs(t) {
		lower := strings.ToLower(d.Name)
		for _, rule := range rules {
			if strings.Contains(lower, rule.name) {
				areas = append(areas, Area{
					Name:        d.Name,
					Path:        d.Path,
					Description: rule.description,
					Type:        rule.areaType,
				})
				break
			}
		}
	}
	return areas
}

// TestDirectories returns directories whose names look test-related.
func TestDirectories(t *structure.Tree) []Area {
	var dirs []Area
	for _, d := range sortedDirs(t) {
		lower := strings.ToLower(d.Name)
		if strings.Contains(lower, "test") || strings.Contains(lower, "spec") || strings.Contains(lower, "__tests__") {
			dirs = append(dirs, Area{Name: d.Name, Path: d.Path, Type: "test-directory"})
		}
	}
	return dirs
}

// EssentialFiles returns the readme/contributing/manifest files present in
// the tree, sorted by display priority.
func EssentialFiles(t *structure.Tree) []EssentialFile {
	var found []EssentialFile
	for _, f := range sortedFiles(t) {
		for _, rule := range essentialRules {
			if strings.EqualFold(f.Name, rule.Name) {
				found = append(found, EssentialFile{
					Name:        f.Name,
					Path:        f.Path,
					Priority:    rule.Priority,
					Description: rule.Description,
				})
				break
			}
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].Priority < found[j].Priority })
	return found
}

func essentialNames(files []EssentialFile) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return names
}

func areaNames(areas []Area) []string {
	names := make([]string, len(areas))
	for i, a := range areas {
		names[i] = a.Name
	}
	return names
}

func joinNames(names []string, max int) string {
	return joinStrings(names, max)
}

func joinStrings(items []string, max int) string {
	if len(items) > max {
		items = items[:max]
	}
	return strings.Join(items, ", ")
}

func sortedDirs(t *structure.Tree) []structure.DirInfo {
	dirs := make([]structure.DirInfo, 0, len(t.Directories))
	for _, d := range t.Directories {
		dirs = append(dirs, d)
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Path < dirs[j].Path })
	return dirs
}

func sortedFiles(t *structure.Tree) []structure.FileInfo {
	files := make([]structure.FileInfo, 0, len(t.Files))
	for _, f := range t.Files {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}
