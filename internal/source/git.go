package source

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sprite-ai/revmcp/internal/model"
)

// Git fetches diffs from a local repository by shelling out to git.
type Git struct {
	RepoDir string
}

// NewGit creates a git client rooted at repoDir.
func NewGit(repoDir string) *Git {
	return &Git{RepoDir: repoDir}
}

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.RepoDir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return string(out), nil
}

// FetchDiff returns the patch for a commit or commit range.
func (g *Git) FetchDiff(ctx context.Context, id string) (string, error) {
	if strings.Contains(id, "..") {
		return g.run(ctx, "diff", "--no-color", id)
	}
	return g.run(ctx, "show", "--format=", "--no-color", id)
}

// FetchMetadata returns the subject, body, and author of a commit. For a
// range, metadata of the newest commit is used.
func (g *Git) FetchMetadata(ctx context.Context, id string) (model.Metadata, error) {
	ref := id
	if i := strings.LastIndex(id, ".."); i >= 0 {
		ref = strings.TrimPrefix(id[i+2:], ".")
	}

	out, err := g.run(ctx, "show", "-s", "--format=%s%x00%an%x00%b", ref)
	if err != nil {
		return model.Metadata{}, err
	}

	parts := strings.SplitN(strings.TrimRight(out, "\n"), "\x00", 3)
	meta := model.Metadata{DiffID: ref}
	if len(parts) > 0 {
		meta.Title = parts[0]
	}
	if len(parts) > 1 {
		meta.Author = parts[1]
	}
	if len(parts) > 2 {
		meta.Summary = strings.TrimSpace(parts[2])
	}
	return meta, nil
}
