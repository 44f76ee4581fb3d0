package graph

import (
	"path/filepath"
	"strings"
	"unicode"
)

// NormalizeTitle produces the dedup key for an entity title: lower-cased,
// punctuation stripped, whitespace collapsed to single spaces.
// "Support  Offline-Mode!" and "support offline mode" normalize identically.
func NormalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))

	lastSpace := true
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}

	return strings.TrimRight(b.String(), " ")
}

// IsTestPath reports whether a path looks like a test file. The artifact
// schema has no dedicated test kind, so impact analysis classifies by path.
func IsTestPath(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	if strings.Contains(base, "_test.") || strings.HasPrefix(base, "test_") ||
		strings.Contains(base, ".spec.") || strings.Contains(base, ".test.") {
		return true
	}

	lower := "/" + strings.ToLower(filepath.ToSlash(path))
	return strings.Contains(lower, "/tests/") || strings.Contains(lower, "/test/") ||
		strings.Contains(lower, "/__tests__/")
}

// extLanguages maps file extensions to language names for auto-detection
// when track-changes callers omit the language.
var extLanguages = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".rs":    "rust",
	".java":  "java",
	".kt":    "kotlin",
	".rb":    "ruby",
	".c":     "c",
	".h":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".swift": "swift",
	".sh":    "shell",
	".sql":   "sql",
	".tf":    "terraform",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".md":    "markdown",
}

// DetectLanguage guesses a language from the file extension.
// Returns "" when the extension is unknown.
func DetectLanguage(path string) string {
	return extLanguages[strings.ToLower(filepath.Ext(path))]
}
