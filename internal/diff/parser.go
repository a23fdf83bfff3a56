package diff

import (
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/maxbolgarin/critique/internal/model"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
)

// ErrUnrecognizable is returned only when the payload is not a
// unified diff at all. Individual malformed hunks are skipped.
var ErrUnrecognizable = errm.New("content is not a recognizable unified diff")

// Parser parses unified diff text into a structured ParsedDiff.
type Parser struct {
	hunkHeaderRegex *regexp.Regexp
	log             logze.Logger
}

func NewParser() *Parser {
	return &Parser{
		hunkHeaderRegex: regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`),
		log:             logze.With("component", "diff_parser"),
	}
}

// Parse converts raw unified diff content into one FileChange per
// file section. An empty payload yields an empty diff, not an error.
func (p *Parser) Parse(content string) (*model.ParsedDiff, error) {
	if strings.TrimSpace(content) == "" {
		p.log.Warn("empty diff content provided")
		return &model.ParsedDiff{}, nil
	}

	sections := p.splitFileSections(content)
	if len(sections) == 0 {
		return nil, errm.Wrap(ErrUnrecognizable, "no file sections found")
	}

	parsed := &model.ParsedDiff{Files: make([]*model.FileChange, 0, len(sections))}
	for _, section := range sections {
		file := p.parseFileSection(section)
		if file == nil {
			continue
		}
		parsed.Files = append(parsed.Files, file)
	}

	if len(parsed.Files) == 0 {
		return nil, errm.Wrap(ErrUnrecognizable, "no parsable file sections")
	}

	return parsed, nil
}

// splitFileSections cuts the diff into per-file chunks. Without any
// "diff --git" marker the whole payload is treated as one section if
// it still carries unified diff structure.
func (p *Parser) splitFileSections(content string) [][]string {
	lines := strings.Split(content, "\n")

	var sections [][]string
	var current []string
	for _, line := range lines {
		if strings.HasPrefix(line, "diff --git ") {
			if len(current) > 0 {
				sections = append(sections, current)
			}
			current = []string{line}
			continue
		}
		if current != nil {
			current = append(current, line)
		}
	}
	if len(current) > 0 {
		sections = append(sections, current)
	}

	if len(sections) == 0 && hasDiffStructure(lines) {
		sections = append(sections, lines)
	}
	return sections
}

func hasDiffStructure(lines []string) bool {
	hasOld, hasNew, hasHunk := false, false, false
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "--- "):
			hasOld = true
		case strings.HasPrefix(line, "+++ "):
			hasNew = true
		case strings.HasPrefix(line, "@@ "):
			hasHunk = true
		}
	}
	return hasOld && hasNew && hasHunk
}

// parseFileSection parses one per-file chunk. Returns nil when the
// section carries no usable information.
func (p *Parser) parseFileSection(lines []string) *model.FileChange {
	filePath, isBinary := p.extractFileHeader(lines)
	if filePath == "" {
		return nil
	}

	file := &model.FileChange{
		FilePath: filePath,
		Language: DetectLanguage(filePath),
		IsBinary: isBinary || isBinaryPath(filePath),
	}
	if file.IsBinary {
		// Content of binary files is never decoded.
		return file
	}

	p.extractLineChanges(lines, file)
	return file
}

// extractFileHeader resolves the post-change path, falling back to
// the pre-change path for pure deletions. Rename-with-edits keeps a
// single FileChange keyed on the post-change path. The scan stops at
// the first hunk: "+++ "/"--- " inside hunk bodies is content, not a
// header.
func (p *Parser) extractFileHeader(lines []string) (filePath string, isBinary bool) {
	var oldPath, newPath string
	for _, line := range lines {
		if strings.HasPrefix(line, "@@") {
			break
		}
		switch {
		case strings.HasPrefix(line, "diff --git "):
			// diff --git a/old b/new
			parts := strings.Fields(line)
			if len(parts) >= 4 {
				oldPath = stripPathPrefix(parts[2])
				newPath = stripPathPrefix(parts[3])
			}
		case strings.HasPrefix(line, "--- "):
			oldPath = stripPathPrefix(strings.TrimSpace(strings.TrimPrefix(line, "--- ")))
		case strings.HasPrefix(line, "+++ "):
			newPath = stripPathPrefix(strings.TrimSpace(strings.TrimPrefix(line, "+++ ")))
		case strings.HasPrefix(line, "Binary files ") && strings.HasSuffix(strings.TrimSpace(line), "differ"):
			isBinary = true
		case strings.HasPrefix(line, "GIT binary patch"):
			isBinary = true
		}
	}

	if newPath != "" {
		return newPath, isBinary
	}
	return oldPath, isBinary
}

func stripPathPrefix(raw string) string {
	raw = strings.Trim(raw, `"`)
	if raw == "/dev/null" {
		return ""
	}
	for _, prefix := range []string{"a/", "b/"} {
		if strings.HasPrefix(raw, prefix) {
			return raw[len(prefix):]
		}
	}
	return raw
}

// extractLineChanges walks the hunks of a section and classifies
// line events. A '-' run immediately followed by a '+' run pairs
// positionally into modifications; leftovers stay plain deletes or
// adds. Malformed hunk headers skip the hunk, not the file.
func (p *Parser) extractLineChanges(lines []string, file *model.FileChange) {
	var oldLine, newLine int
	inHunk := false

	var pendingDeletes []model.LineChange
	flushDeletes := func() {
		file.Deletions = append(file.Deletions, pendingDeletes...)
		pendingDeletes = pendingDeletes[:0]
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "@@") {
			flushDeletes()
			matches := p.hunkHeaderRegex.FindStringSubmatch(line)
			if len(matches) < 4 {
				p.log.Debug("skipping malformed hunk header", "file", file.FilePath, "header", line)
				inHunk = false
				continue
			}
			oldLine, _ = strconv.Atoi(matches[1])
			newLine, _ = strconv.Atoi(matches[3])
			inHunk = true
			continue
		}
		if !inHunk || len(line) == 0 {
			continue
		}

		switch line[0] {
		case '+':
			if len(pendingDeletes) > 0 {
				// Paired with the preceding delete at the same hunk
				// position: a modification carrying both sides.
				del := pendingDeletes[0]
				pendingDeletes = pendingDeletes[1:]
				file.Modifications = append(file.Modifications, model.LineChange{
					Kind:       model.ChangeTypeModify,
					Content:    line[1:],
					OldContent: del.Content,
					OldLine:    del.OldLine,
					NewLine:    newLine,
				})
			} else {
				file.Additions = append(file.Additions, model.LineChange{
					Kind:    model.ChangeTypeAdd,
					Content: line[1:],
					NewLine: newLine,
				})
			}
			newLine++

		case '-':
			pendingDeletes = append(pendingDeletes, model.LineChange{
				Kind:    model.ChangeTypeDelete,
				Content: line[1:],
				OldLine: oldLine,
			})
			oldLine++

		case ' ':
			flushDeletes()
			oldLine++
			newLine++

		case '\\':
			// "\ No newline at end of file"

		default:
			flushDeletes()
			oldLine++
			newLine++
		}
	}
	flushDeletes()
}

var binaryExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".bmp": {}, ".ico": {}, ".webp": {},
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {},
	".zip": {}, ".tar": {}, ".gz": {}, ".bz2": {}, ".7z": {}, ".rar": {},
	".exe": {}, ".dll": {}, ".so": {}, ".dylib": {}, ".bin": {},
	".mp3": {}, ".mp4": {}, ".avi": {}, ".mov": {}, ".wav": {},
	".ttf": {}, ".otf": {}, ".woff": {}, ".woff2": {},
	".pyc": {}, ".class": {}, ".jar": {}, ".war": {},
}

func isBinaryPath(filePath string) bool {
	_, ok := binaryExtensions[strings.ToLower(path.Ext(filePath))]
	return ok
}
