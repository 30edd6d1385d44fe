// Package source fetches raw diffs and revision metadata from the systems
// under review: Phabricator (Conduit API) and plain git.
package source

import (
	"context"
	"regexp"

	"github.com/sprite-ai/revmcp/internal/model"
)

// Client fetches diff text and metadata for a revision identifier. Every
// call is bounded by the caller's context; implementations must not hang.
type Client interface {
	FetchDiff(ctx context.Context, id string) (string, error)
	FetchMetadata(ctx context.Context, id string) (model.Metadata, error)
}

var phabRevision = regexp.MustCompile(`^D\d+$`)

// IsPhabricatorID reports whether id names a Phabricator revision.
func IsPhabricatorID(id string) bool {
	return phabRevision.MatchString(id)
}

// Resolver picks the right client for a revision identifier: Phabricator
// revision ids look like "D12345", anything else is treated as a git ref.
type Resolver struct {
	Phabricator Client
	Git         Client
}

// For returns the client responsible for id.
func (r *Resolver) For(id string) Client {
	if phabRevision.MatchString(id) && r.Phabricator != nil {
		return r.Phabricator
	}
	return r.Git
}
