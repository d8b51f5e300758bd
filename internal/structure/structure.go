package structure

import (
	"sort"
	"strings"
)

// TreeEntry is one filesystem object from the host's recursive tree listing.
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // "tree" for directories, "blob" for files
	Size int64  `json:"size,omitempty"`
}

// DirInfo describes a directory in the normalized structure.
type DirInfo struct {
	Path  string `json:"path"`
	Name  string `json:"name"`
	Depth int    `json:"depth"`
}

// FileInfo describes a file in the normalized structure.
type FileInfo struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	Extension string `json:"extension"`
	Size      int64  `json:"size"`
	Depth     int    `json:"depth"`
}

// Stats holds aggregate counts over the normalized structure.
type Stats struct {
	TotalFiles  int            `json:"totalFiles"`
	TotalDirs   int            `json:"totalDirs"`
	FilesByType map[string]int `json:"filesByType"`
}

// Node is one node of the hierarchy tree.
type Node struct {
	Name     string  `json:"name"`
	Path     string  `json:"path,omitempty"`
	Type     string  `json:"type"` // "blob", "tree" or "directory" (root)
	Children []*Node `json:"children"`
}

// Tree is the normalized repository structure: filtered directory and file
// maps, aggregate stats, and a rooted hierarchy.
type Tree struct {
	Directories map[string]DirInfo  `json:"directories"`
	Files       map[string]FileInfo `json:"files"`
	Stats       Stats               `json:"stats"`
	Hierarchy   *Node               `json:"hierarchy"`
}

// NoExtension is the sentinel extension for files without a dot suffix.
const NoExtension = "no-ext"

// ignoredPaths are directory tokens excluded from analysis: dependency
// caches, build output, VCS metadata and virtual environments.
var ignoredPaths = []string{
	"node_modules",
	".git",
	"dist",
	"build",
	"coverage",
	".next",
	".cache",
	"vendor",
	"__pycache__",
	".pytest_cache",
	"venv",
	"env",
}

// Parse normalizes a raw recursive tree listing. It never fails: an empty
// or malformed listing yields an empty Tree.
func Parse(entries []TreeEntry) *Tree {
	t := &Tree{
		Directories: make(map[string]DirInfo),
		Files:       make(map[string]FileInfo),
		Stats:       Stats{FilesByType: make(map[string]int)},
	}

	filtered := make([]TreeEntry, 0, len(entries))
	for _, e := range entries {
		if e.Path == "" || isIgnored(e.Path) {
			continue
		}
		filtered = append(filtered, e)
	}

	for _, e := range filtered {
		parts := strings.Split(e.Path, "/")
		name := parts[len(parts)-1]

		switch e.Type {
		case "tree":
			t.Stats.TotalDirs++
			t.Directories[e.Path] = DirInfo{
				Path:  e.Path,
				Name:  name,
				Depth: len(parts),
			}
		case "blob":
			t.Stats.TotalFiles++
			ext := fileExtension(name)
			t.Stats.FilesByType[ext]++
			t.Files[e.Path] = FileInfo{
				Path:      e.Path,
				Name:      name,
				Extension: ext,
				Size:      e.Size,
				Depth:     len(parts),
			}
		}
	}

	t.Hierarchy = buildHierarchy(filtered)
	return t
}

// isIgnored reports whether any segment of the path matches an ignored token.
func isIgnored(path string) bool {
	for _, ignored := range ignoredPaths {
		if strings.Contains(path, ignored) {
			return true
		}
	}
	return false
}

// buildHierarchy folds the listing into a single rooted tree. Each path
// prefix maps to exactly one node; revisiting a prefix is a no-op, so the
// construction is idempotent.
func buildHierarchy(entries []TreeEntry) *Node {
	root := &Node{Name: "root", Type: "directory", Children: []*Node{}}
	pathMap := map[string]*Node{"": root}

	for _, e := range entries {
		parts := strings.Split(e.Path, "/")
		currentPath := ""

		for i, part := range parts {
			parentPath := currentPath
			if currentPath == "" {
				currentPath = part
			} else {
				currentPath = currentPath + "/" + part
			}

			if _, exists := pathMap[currentPath]; exists {
				continue
			}

			nodeType := "tree"
			if i == len(parts)-1 {
				nodeType = e.Type
			}
			node := &Node{
				Name:     part,
				Path:     currentPath,
				Type:     nodeType,
				Children: []*Node{},
			}
			pathMap[currentPath] = node

			if parent, ok := pathMap[parentPath]; ok {
				parent.Children = append(parent.Children, node)
			}
		}
	}

	return root
}

// fileExtension returns the substring after the final dot, or NoExtension.
func fileExtension(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return NoExtension
	}
	return name[idx+1:]
}

// importantPatterns are filenames that anchor downstream code scanning:
// build manifests, licensing, docs and tool configuration.
var importantPatterns = []string{
	"package.json",
	"requirements.txt",
	"Cargo.toml",
	"go.mod",
	"pom.xml",
	"build.gradle",
	"Makefile",
	"Dockerfile",
	"docker-compose.yml",
	"README.md",
	"CONTRIBUTING.md",
	"LICENSE",
	".env.example",
	"tsconfig.json",
	"webpack.config.js",
	"vite.config.js",
	"next.config.js",
}

// ImportantFiles returns the paths of files whose names match one of the
// important-file patterns, by case-insensitive substring match.
func ImportantFiles(t *Tree) []string {
	var found []string
	for _, f := range sortedFiles(t) {
		lower := strings.ToLower(f.Name)
		for _, p := range importantPatterns {
			if strings.Contains(lower, strings.ToLower(p)) {
				found = append(found, f.Path)
				break
			}
		}
	}
	return found
}

// KeyDirectory is a directory matched against the key-pattern table.
type KeyDirectory struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// keyDirRule pairs a directory-name fragment with its description. The
// table is ordered; earlier rules win when several fragments match.
type keyDirRule struct {
	pattern     string
	description string
}

var keyDirRules = []keyDirRule{
	{"src", "Source code"},
	{"lib", "Library code"},
	{"app", "Application code"},
	{"components", "UI components"},
	{"pages", "Page components"},
	{"routes", "Route definitions"},
	{"api", "API endpoints"},
	{"controllers", "Controllers"},
	{"models", "Data models"},
	{"views", "View templates"},
	{"services", "Business logic services"},
	{"utils", "Utility functions"},
	{"helpers", "Helper functions"},
	{"config", "Configuration files"},
	{"tests", "Test files"},
	{"docs", "Documentation"},
	{"public", "Public assets"},
	{"static", "Static files"},
	{"assets", "Assets"},
	{"styles", "Stylesheets"},
	{"css", "CSS files"},
	{"scripts", "Scripts"},
	{"bin", "Binary/executable files"},
	{"migrations", "Database migrations"},
	{"seeds", "Database seeds"},
}

// KeyDirectories returns directories whose names contain a known fragment,
// annotated with what usually lives there.
func KeyDirectories(t *Tree) []KeyDirectory {
	var dirs []KeyDirectory
	for _, d := range sortedDirs(t) {
		lower := strings.ToLower(d.Name)
		for _, rule := range keyDirRules {
			if strings.Contains(lower, rule.pattern) {
				dirs = append(dirs, KeyDirectory{
					Path:        d.Path,
					Name:        d.Name,
					Description: rule.description,
				})
				break
			}
		}
	}
	return dirs
}

// ProjectType is one detected ecosystem with a match-ratio confidence.
type ProjectType struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// ecosystemRule lists the indicator filenames of one ecosystem. Declaration
// order is the tie-break for equal confidence.
type ecosystemRule struct {
	name       string
	indicators []string
}

var ecosystemRules = []ecosystemRule{
	{"React", []string{"package.json", "jsx", "tsx"}},
	{"Vue", []string{"package.json", "vue"}},
	{"Angular", []string{"package.json", "angular.json"}},
	{"Next.js", []string{"next.config.js", "package.json"}},
	{"Node.js", []string{"package.json", "server.js", "index.js"}},
	{"Python", []string{"requirements.txt", "setup.py", "pyproject.toml"}},
	{"Django", []string{"manage.py", "settings.py"}},
	{"Flask", []string{"app.py", "requirements.txt"}},
	{"FastAPI", []string{"main.py", "requirements.txt"}},
	{"Go", []string{"go.mod", "main.go"}},
	{"Rust", []string{"Cargo.toml", "src/main.rs"}},
	{"Java", []string{"pom.xml", "build.gradle"}},
	{"Spring Boot", []string{"pom.xml", "application.properties"}},
	{"Ruby on Rails", []string{"Gemfile", "config.ru"}},
	{"PHP", []string{"composer.json", "index.php"}},
	{"Laravel", []string{"artisan", "composer.json"}},
}

// DetectProjectType scores each ecosystem by the fraction of its indicator
// filenames present anywhere in the listing, ranked by confidence descending.
// Ties keep declaration order.
func DetectProjectType(t *Tree) []ProjectType {
	paths := make([]string, 0, len(t.Files))
	for p := range t.Files {
		paths = append(paths, p)
	}

	var detected []ProjectType
	for _, rule := range ecosystemRules {
		matches := 0
		for _, indicator := range rule.indicators {
			for _, p := range paths {
				if strings.Contains(p, indicator) {
					matches++
					break
				}
			}
		}
		if matches > 0 {
			detected = append(detected, ProjectType{
				Type:       rule.name,
				Confidence: float64(matches) / float64(len(rule.indicators)),
			})
		}
	}

	sort.SliceStable(detected, func(i, j int) bool {
		return detected[i].Confidence > detected[j].Confidence
	})
	return detected
}

// sortedFiles returns the file infos in path order, for deterministic output.
func sortedFiles(t *Tree) []FileInfo {
	files := make([]FileInfo, 0, len(t.Files))
	for _, f := range t.Files {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}

// sortedDirs returns the directory infos in path order.
func sortedDirs(t *Tree) []DirInfo {
	dirs := make([]DirInfo, 0, len(t.Directories))
	for _, d := range t.Directories {
		dirs = append(dirs, d)
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Path < dirs[j].Path })
	return dirs
}
