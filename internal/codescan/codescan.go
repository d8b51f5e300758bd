// Package codescan extracts function names, class names and import targets
// from raw file text using regex heuristics. It is deliberately not a parser:
// false positives and negatives are acceptable, crashing is not.
package codescan

import (
	"regexp"
	"sort"
)

// FileScan is the best-effort symbol extraction for one file.
type FileScan struct {
	Functions []string `json:"functions"`
	Classes   []string `json:"classes"`
	Imports   []string `json:"imports"`
}

// scriptExts are the extensions handled by the script-family patterns.
var scriptExts = map[string]bool{
	"js":  true,
	"jsx": true,
	"ts":  true,
	"tsx": true,
}

var (
	scriptFuncPatterns = []*regexp.Regexp{
		regexp.MustCompile(`function\s+(\w+)\s*\(`),
		regexp.MustCompile(`const\s+(\w+)\s*=\s*\(`),
		regexp.MustCompile(`(\w+)\s*:\s*function\s*\(`),
		regexp.MustCompile(`(\w+)\s*\([^)]*\)\s*\{`),
	}
	pythonFuncPattern = regexp.MustCompile(`def\s+(\w+)\s*\(`)

	classPattern = regexp.MustCompile(`class\s+(\w+)`)

	scriptImportPatterns = []*regexp.Regexp{
		regexp.MustCompile(`import\s+.*?\s+from\s+['"]([^'"]+)['"]`),
		regexp.MustCompile(`require\s*\(['"]([^'"]+)['"]\)`),
	}
	pythonImportPatterns = []*regexp.Regexp{
		regexp.MustCompile(`import\s+(\w+)`),
		regexp.MustCompile(`from\s+(\w+)\s+import`),
	}
)

// Scan extracts symbols from content according to the extension tag. Unknown
// extensions yield empty (non-nil) slices. Scan never fails, whatever the
// input bytes look like.
func Scan(content, ext string) FileScan {
	return FileScan{
		Functions: extractFunctions(content, ext),
		Classes:   extractClasses(content, ext),
		Imports:   extractImports(content, ext),
	}
}

func extractFunctions(content, ext string) []string {
	switch {
	case scriptExts[ext]:
		return matchAll(content, scriptFuncPatterns)
	case ext == "py":
		return matchAll(content, []*regexp.Regexp{pythonFuncPattern})
	default:
		return []string{}
	}
}

func extractClasses(content, ext string) []string {
	if scriptExts[ext] || ext == "py" {
		return matchAll(content, []*regexp.Regexp{classPattern})
	}
	return []string{}
}

func extractImports(content, ext string) []string {
	switch {
	case scriptExts[ext]:
		return matchAll(content, scriptImportPatterns)
	case ext == "py":
		return matchAll(content, pythonImportPatterns)
	default:
		return []string{}
	}
}

// matchAll unions the first capture group of every pattern, deduplicated.
func matchAll(content string, patterns []*regexp.Regexp) []string {
	seen := make(map[string]bool)
	for _, p := range patterns {
		for _, m := range p.FindAllStringSubmatch(content, -1) {
			if len(m) > 1 && m[1] != "" {
				seen[m[1]] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
