package diff

import (
	"path"
	"strings"
)

// languageByExtension is a closed mapping; anything outside it is
// reported as "unknown".
var languageByExtension = map[string]string{
	".py":  "python",
	".pyx": "python",
	".pyi": "python",

	".js":  "javascript",
	".jsx": "javascript",
	".mjs": "javascript",
	".cjs": "javascript",
	".ts":  "typescript",
	".tsx": "typescript",

	".java": "java",

	".c":   "c",
	".h":   "c",
	".cpp": "cpp",
	".cxx": "cpp",
	".cc":  "cpp",
	".hpp": "cpp",
	".hxx": "cpp",

	".cs": "csharp",
	".go": "go",
	".rs": "rust",

	".rb":  "ruby",
	".rbw": "ruby",

	".php":   "php",
	".phtml": "php",

	".sh":   "shell",
	".bash": "shell",
	".zsh":  "shell",

	".html": "html",
	".htm":  "html",
	".css":  "css",
	".scss": "scss",

	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
	".toml": "toml",
	".xml":  "xml",
	".ini":  "ini",

	".md":  "markdown",
	".txt": "text",
	".sql": "sql",

	".swift": "swift",
	".kt":    "kotlin",
	".scala": "scala",
	".dart":  "dart",
}

var languageByFilename = map[string]string{
	"dockerfile": "dockerfile",
	"makefile":   "makefile",
	"rakefile":   "ruby",
	"gemfile":    "ruby",
}

// DetectLanguage maps a file path to a language tag by extension,
// with a few special filenames checked first.
func DetectLanguage(filePath string) string {
	if filePath == "" {
		return "unknown"
	}

	name := strings.ToLower(path.Base(filePath))
	if lang, ok := languageByFilename[name]; ok {
		return lang
	}

	if lang, ok := languageByExtension[strings.ToLower(path.Ext(filePath))]; ok {
		return lang
	}
	return "unknown"
}
