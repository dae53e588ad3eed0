package document

import (
	"path/filepath"
	"strings"
)

// extensionLanguages maps file extensions (without the dot) to language
// names recorded on documents. Paths with other extensions index with an
// empty language and are still searchable.
var extensionLanguages = map[string]string{
	"py": "python", "pyw": "python", "pyx": "python",
	"go":   "go",
	"js":   "javascript",
	"jsx":  "javascript",
	"mjs":  "javascript",
	"ts":   "typescript",
	"tsx":  "tsx",
	"java": "java",
	"cs":   "csharp",
	"cpp":  "cpp", "cc": "cpp", "cxx": "cpp", "hpp": "cpp",
	"c": "c", "h": "c",
	"rs":    "rust",
	"php":   "php",
	"rb":    "ruby",
	"swift": "swift",
	"kt":    "kotlin", "kts": "kotlin",
	"scala": "scala",
	"pl":    "perl", "pm": "perl",
	"sh": "bash", "bash": "bash",
	"ps1":  "powershell",
	"sql":  "sql",
	"yml":  "yaml",
	"yaml": "yaml",
	"json": "json",
	"xml":  "xml",
	"html": "html",
	"css":  "css",
	"md":   "markdown", "markdown": "markdown",
	"txt": "text",
	"rst": "text",
}

// LanguageForPath returns the language recorded for a file path, or the
// empty string when the extension is not recognized.
func LanguageForPath(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return extensionLanguages[ext]
}
