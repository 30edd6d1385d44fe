// Package diff parses unified diffs into structured representations and
// renders the line-numbered form that review prompts depend on.
package diff

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bluekeyes/go-gitdiff/gitdiff"

	"github.com/sprite-ai/revmcp/internal/model"
)

// File represents a single file in a diff with its parsed fragments.
type File struct {
	Path       string
	OldPath    string // set when the file was renamed
	ChangeType model.ChangeType
	IsBinary   bool
	Additions  int
	Deletions  int
	Fragments  []*gitdiff.TextFragment
}

// Diff holds the parsed diff for one revision.
type Diff struct {
	RevisionID string
	Metadata   model.Metadata
	Files      []*File
	Raw        string // original unified diff text, immutable

	numberedOnce sync.Once
	numbered     string
}

// Parse reads a unified diff string into a Diff. Parsing is deliberately
// lenient: diffs arrive from varied sources (Phabricator, git, pasted
// text), so fundamentally unparseable input yields an empty file list and
// a warn log rather than an error.
func Parse(raw, revisionID string, meta model.Metadata, logger *slog.Logger) *Diff {
	if logger == nil {
		logger = slog.Default()
	}

	d := &Diff{RevisionID: revisionID, Metadata: meta, Raw: raw}

	parsed, _, err := gitdiff.Parse(strings.NewReader(raw))
	if err != nil {
		logger.Warn("unparseable diff, degrading to empty file list",
			"revision", revisionID, "error", err)
		return d
	}

	for _, f := range parsed {
		df := &File{
			IsBinary:  f.IsBinary,
			Fragments: f.TextFragments,
		}

		switch {
		case f.IsNew:
			df.ChangeType = model.ChangeAdded
			df.Path = f.NewName
		case f.IsDelete:
			df.ChangeType = model.ChangeDeleted
			df.Path = f.OldName
		default:
			df.ChangeType = model.ChangeModified
			df.Path = f.NewName
			if df.Path == "" {
				df.Path = f.OldName
			}
			if f.IsRename {
				df.OldPath = f.OldName
			}
		}

		for _, frag := range f.TextFragments {
			for _, line := range frag.Lines {
				switch line.Op {
				case gitdiff.OpAdd:
					df.Additions++
				case gitdiff.OpDelete:
					df.Deletions++
				}
			}
		}

		d.Files = append(d.Files, df)
	}

	return d
}

// Paths returns the post-change path of every non-deleted file.
func (d *Diff) Paths() []string {
	var paths []string
	for _, f := range d.Files {
		if f.ChangeType != model.ChangeDeleted {
			paths = append(paths, f.Path)
		}
	}
	return paths
}

// Stats returns aggregate statistics.
func (d *Diff) Stats() (files, added, deleted int) {
	files = len(d.Files)
	for _, f := range d.Files {
		added += f.Additions
		deleted += f.Deletions
	}
	return
}

// Numbered renders the diff with every added and context line prefixed by
// its post-change line number, e.g. "NEW_LINE_42: +color: red;". Removed
// lines keep their bare "-" prefix. This is the convention review prompts
// instruct the model to cite, so the running counter must track the
// hunk's declared new-file start line exactly.
//
// The rendering is a pure function of Raw (cached on first use); it is
// never mutated independently.
func (d *Diff) Numbered() string {
	d.numberedOnce.Do(func() {
		d.numbered = d.renderNumbered()
	})
	return d.numbered
}

func (d *Diff) renderNumbered() string {
	var b strings.Builder

	for _, f := range d.Files {
		fmt.Fprintf(&b, "=== %s (%s) ===\n", f.Path, f.ChangeType)
		if f.IsBinary {
			b.WriteString("(binary file, no hunks)\n")
			continue
		}

		for _, frag := range f.Fragments {
			fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n",
				frag.OldPosition, frag.OldLines, frag.NewPosition, frag.NewLines)

			newLine := frag.NewPosition
			for _, line := range frag.Lines {
				text := strings.TrimSuffix(line.Line, "\n")
				switch line.Op {
				case gitdiff.OpAdd:
					fmt.Fprintf(&b, "NEW_LINE_%d: +%s\n", newLine, text)
					newLine++
				case gitdiff.OpContext:
					fmt.Fprintf(&b, "NEW_LINE_%d:  %s\n", newLine, text)
					newLine++
				case gitdiff.OpDelete:
					fmt.Fprintf(&b, "-%s\n", text)
				}
			}
		}
	}

	return b.String()
}
