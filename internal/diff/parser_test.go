package diff

import (
	"testing"

	"github.com/maxbolgarin/critique/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modifyDiff = `diff --git a/src/app.py b/src/app.py
--- a/src/app.py
+++ b/src/app.py
@@ -1,4 +1,4 @@
 def main():
-    x = 1
+    x = 2
     return x
`

func TestParseModifyPairing(t *testing.T) {
	parsed, err := NewParser().Parse(modifyDiff)
	require.NoError(t, err)
	require.Len(t, parsed.Files, 1)

	file := parsed.Files[0]
	assert.Equal(t, "src/app.py", file.FilePath)
	assert.Equal(t, "python", file.Language)
	assert.False(t, file.IsBinary)

	// A single -/+ pair at the same hunk position is one modification.
	require.Len(t, file.Modifications, 1)
	assert.Empty(t, file.Additions)
	assert.Empty(t, file.Deletions)

	mod := file.Modifications[0]
	assert.Equal(t, model.ChangeTypeModify, mod.Kind)
	assert.Equal(t, "    x = 2", mod.Content)
	assert.Equal(t, "    x = 1", mod.OldContent)
	assert.Equal(t, 2, mod.OldLine)
	assert.Equal(t, 2, mod.NewLine)
}

func TestParseAdditionsAndDeletions(t *testing.T) {
	content := `diff --git a/main.go b/main.go
--- a/main.go
+++ b/main.go
@@ -10,3 +10,4 @@
 func run() {
+	log.Println("start")
+	log.Println("ready")
 }
@@ -20,4 +22,3 @@
 func stop() {
-	cleanup()
 }
`
	parsed, err := NewParser().Parse(content)
	require.NoError(t, err)
	require.Len(t, parsed.Files, 1)

	file := parsed.Files[0]
	require.Len(t, file.Additions, 2)
	assert.Equal(t, 11, file.Additions[0].NewLine)
	assert.Equal(t, 12, file.Additions[1].NewLine)

	require.Len(t, file.Deletions, 1)
	assert.Equal(t, 21, file.Deletions[0].OldLine)
	assert.Empty(t, file.Modifications)

	assert.Equal(t, 3, file.ChangedLines())
	assert.Equal(t, 1, parsed.FilesAnalyzed())
	assert.Equal(t, 3, parsed.LinesChanged())
}

func TestParseUnbalancedRuns(t *testing.T) {
	content := `diff --git a/a.go b/a.go
--- a/a.go
+++ b/a.go
@@ -1,3 +1,4 @@
-old one
-old two
+new one
 ctx
+trailing add
`
	parsed, err := NewParser().Parse(content)
	require.NoError(t, err)

	file := parsed.Files[0]
	// Two deletes, one add: first pair becomes a modify, the second
	// delete stays a delete. The add after context stays an add.
	require.Len(t, file.Modifications, 1)
	require.Len(t, file.Deletions, 1)
	require.Len(t, file.Additions, 1)
	assert.Equal(t, "old one", file.Modifications[0].OldContent)
	assert.Equal(t, "new one", file.Modifications[0].Content)
	assert.Equal(t, "old two", file.Deletions[0].Content)
	assert.Equal(t, "trailing add", file.Additions[0].Content)
}

func TestParseEmptyContent(t *testing.T) {
	parsed, err := NewParser().Parse("   \n  ")
	require.NoError(t, err)
	assert.Empty(t, parsed.Files)
	assert.Equal(t, 0, parsed.FilesAnalyzed())
}

func TestParseGarbage(t *testing.T) {
	_, err := NewParser().Parse("this is not a diff at all\njust some text\n")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnrecognizable)
}

func TestParseWithoutGitHeader(t *testing.T) {
	content := `--- a/x.py
+++ b/x.py
@@ -1,1 +1,1 @@
-print(1)
+print(2)
`
	parsed, err := NewParser().Parse(content)
	require.NoError(t, err)
	require.Len(t, parsed.Files, 1)
	assert.Equal(t, "x.py", parsed.Files[0].FilePath)
	assert.Len(t, parsed.Files[0].Modifications, 1)
}

func TestParseBinaryFile(t *testing.T) {
	content := `diff --git a/logo.png b/logo.png
Binary files a/logo.png and b/logo.png differ
diff --git a/main.go b/main.go
--- a/main.go
+++ b/main.go
@@ -1,1 +1,2 @@
 package main
+var x = 1
`
	parsed, err := NewParser().Parse(content)
	require.NoError(t, err)
	require.Len(t, parsed.Files, 2)

	assert.True(t, parsed.Files[0].IsBinary)
	assert.Empty(t, parsed.Files[0].Additions)
	assert.False(t, parsed.Files[1].IsBinary)

	// Binary files do not count as analyzed.
	assert.Equal(t, 1, parsed.FilesAnalyzed())
	assert.Equal(t, 1, parsed.LinesChanged())
}

func TestParseMalformedHunkSkipsHunkOnly(t *testing.T) {
	content := `diff --git a/a.go b/a.go
--- a/a.go
+++ b/a.go
@@ broken header @@
+ignored line
@@ -1,1 +1,2 @@
 package a
+var ok = true
`
	parsed, err := NewParser().Parse(content)
	require.NoError(t, err)
	require.Len(t, parsed.Files, 1)
	require.Len(t, parsed.Files[0].Additions, 1)
	assert.Equal(t, "var ok = true", parsed.Files[0].Additions[0].Content)
}

func TestParseHunkContentResemblingHeaders(t *testing.T) {
	// Changed lines that start with "-- " or "++ " render as
	// "--- "/"+++ " in the diff. They are content, not file headers.
	content := `diff --git a/a.sh b/a.sh
--- a/a.sh
+++ b/a.sh
@@ -1,2 +1,2 @@
 echo start
--- a/old.go
+++ b/evil.go
`
	parsed, err := NewParser().Parse(content)
	require.NoError(t, err)
	require.Len(t, parsed.Files, 1)

	file := parsed.Files[0]
	assert.Equal(t, "a.sh", file.FilePath)
	assert.Equal(t, "shell", file.Language)

	require.Len(t, file.Modifications, 1)
	assert.Equal(t, "-- a/old.go", file.Modifications[0].OldContent)
	assert.Equal(t, "++ b/evil.go", file.Modifications[0].Content)
	assert.Equal(t, 2, file.Modifications[0].OldLine)
	assert.Equal(t, 2, file.Modifications[0].NewLine)
}

func TestParseDeletedFile(t *testing.T) {
	content := `diff --git a/gone.rb b/gone.rb
--- a/gone.rb
+++ /dev/null
@@ -1,2 +0,0 @@
-def gone
-end
`
	parsed, err := NewParser().Parse(content)
	require.NoError(t, err)
	require.Len(t, parsed.Files, 1)
	assert.Equal(t, "gone.rb", parsed.Files[0].FilePath)
	assert.Len(t, parsed.Files[0].Deletions, 2)
}

func TestHasLine(t *testing.T) {
	parsed, err := NewParser().Parse(modifyDiff)
	require.NoError(t, err)

	file := parsed.File("src/app.py")
	require.NotNil(t, file)
	assert.True(t, file.HasLine(2))
	assert.False(t, file.HasLine(99))
	assert.Nil(t, parsed.File("missing.py"))
}

func TestDetectLanguage(t *testing.T) {
	cases := map[string]string{
		"a/b/main.go":       "go",
		"script.PY":         "python",
		"web/app.tsx":       "typescript",
		"lib.rs":            "rust",
		"Dockerfile":        "dockerfile",
		"Makefile":          "makefile",
		"Gemfile":           "ruby",
		"notes.weird":       "unknown",
		"noextension":       "unknown",
		"include/defs.hpp":  "cpp",
		"legacy/handler.php": "php",
	}
	for path, want := range cases {
		assert.Equal(t, want, DetectLanguage(path), path)
	}
}
