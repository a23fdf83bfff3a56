package model

// ChangeType classifies a single line event in a parsed diff.
type ChangeType string

const (
	ChangeTypeAdd    ChangeType = "add"
	ChangeTypeDelete ChangeType = "delete"
	ChangeTypeModify ChangeType = "modify"
)

// LineChange is one classified line event. Adds and modifies carry
// the post-change line number, deletes and modifies the pre-change one.
type LineChange struct {
	Kind    ChangeType `json:"kind"`
	Content string     `json:"content"`
	OldLine int        `json:"old_line,omitempty"`
	NewLine int        `json:"new_line,omitempty"`

	// OldContent is set for modifications only.
	OldContent string `json:"old_content,omitempty"`
}

// FileChange represents parsed changes in a single file.
type FileChange struct {
	FilePath      string       `json:"file_path"`
	Language      string       `json:"language"`
	IsBinary      bool         `json:"is_binary"`
	Additions     []LineChange `json:"additions"`
	Deletions     []LineChange `json:"deletions"`
	Modifications []LineChange `json:"modifications"`
}

// ChangedLines returns the number of line events in the file.
func (f *FileChange) ChangedLines() int {
	return len(f.Additions) + len(f.Deletions) + len(f.Modifications)
}

// HasLine reports whether the given post-change line number appears
// among the file's additions or modifications, or pre-change among
// deletions. Findings referencing other lines are dropped.
func (f *FileChange) HasLine(line int) bool {
	for _, lc := range f.Additions {
		if lc.NewLine == line {
			return true
		}
	}
	for _, lc := range f.Modifications {
		if lc.NewLine == line {
			return true
		}
	}
	for _, lc := range f.Deletions {
		if lc.OldLine == line {
			return true
		}
	}
	return false
}

// ParsedDiff is the structured representation of a unified diff,
// immutable once built.
type ParsedDiff struct {
	Files []*FileChange `json:"files"`
}

// FilesAnalyzed counts non-binary files in the diff.
func (d *ParsedDiff) FilesAnalyzed() int {
	n := 0
	for _, f := range d.Files {
		if !f.IsBinary {
			n++
		}
	}
	return n
}

// LinesChanged sums line events over non-binary files.
func (d *ParsedDiff) LinesChanged() int {
	n := 0
	for _, f := range d.Files {
		if !f.IsBinary {
			n += f.ChangedLines()
		}
	}
	return n
}

// File returns the change for the given path, or nil.
func (d *ParsedDiff) File(path string) *FileChange {
	for _, f := range d.Files {
		if f.FilePath == path {
			return f
		}
	}
	return nil
}

// ChangeMetadata describes the pull request a diff came from.
// Nullable in the manual path.
type ChangeMetadata struct {
	Repository string `json:"repository"`
	PRNumber   int    `json:"pr_number"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	CommitSHA  string `json:"head_commit_sha"`
	BaseBranch string `json:"base_branch"`
	HeadBranch string `json:"head_branch"`
}

// ChangeSource is the tagged input of a review: either a remote
// reference (URL or repository+number) or a raw diff payload.
type ChangeSource struct {
	PRURL       string `json:"pr_url,omitempty"`
	Repository  string `json:"repository,omitempty"`
	PRNumber    int    `json:"pr_number,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
	DiffContent string `json:"diff_content,omitempty"`
}

// IsRemote reports whether the source needs a provider fetch.
func (s ChangeSource) IsRemote() bool {
	return s.DiffContent == ""
}

// Validate enforces that exactly one of URL, repo+number or raw diff
// is present.
func (s ChangeSource) Validate() error {
	hasURL := s.PRURL != ""
	hasRepo := s.Repository != "" && s.PRNumber > 0
	hasDiff := s.DiffContent != ""

	switch {
	case hasDiff && !hasURL:
		return nil
	case hasURL && !hasDiff && !hasRepo:
		return nil
	case hasRepo && !hasDiff && !hasURL:
		return nil
	}
	return NewValidationError("exactly one of pr_url, repository+pr_number or diff_content must be provided")
}
