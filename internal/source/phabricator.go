package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sprite-ai/revmcp/internal/model"
)

// Phabricator talks to a Phabricator instance via the Conduit API.
type Phabricator struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewPhabricator creates a Conduit client. timeout bounds every request.
func NewPhabricator(baseURL, token string, timeout time.Duration) *Phabricator {
	return &Phabricator{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// conduitEnvelope is the standard Conduit response wrapper.
type conduitEnvelope struct {
	Result    json.RawMessage `json:"result"`
	ErrorCode *string         `json:"error_code"`
	ErrorInfo *string         `json:"error_info"`
}

func (p *Phabricator) call(ctx context.Context, method string, params url.Values, result any) error {
	params.Set("api.token", p.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/api/"+method, strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("building conduit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("conduit %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading conduit response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("conduit %s: HTTP %d", method, resp.StatusCode)
	}

	var envelope conduitEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decoding conduit response: %w", err)
	}
	if envelope.ErrorCode != nil && *envelope.ErrorCode != "" {
		info := ""
		if envelope.ErrorInfo != nil {
			info = *envelope.ErrorInfo
		}
		return fmt.Errorf("conduit %s: %s: %s", method, *envelope.ErrorCode, info)
	}

	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("decoding conduit result: %w", err)
		}
	}
	return nil
}

// revisionInfo is the subset of differential.query output we use.
type revisionInfo struct {
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	AuthorName string   `json:"authorName"`
	Diffs      []string `json:"diffs"` // newest first
}

func (p *Phabricator) queryRevision(ctx context.Context, id string) (*revisionInfo, error) {
	num := strings.TrimPrefix(id, "D")
	params := url.Values{}
	params.Set("ids[0]", num)

	var revisions []revisionInfo
	if err := p.call(ctx, "differential.query", params, &revisions); err != nil {
		return nil, err
	}
	if len(revisions) == 0 {
		return nil, fmt.Errorf("revision %s not found", id)
	}
	return &revisions[0], nil
}

// FetchDiff returns the raw unified diff of the revision's newest diff.
func (p *Phabricator) FetchDiff(ctx context.Context, id string) (string, error) {
	rev, err := p.queryRevision(ctx, id)
	if err != nil {
		return "", err
	}
	if len(rev.Diffs) == 0 {
		return "", fmt.Errorf("revision %s has no diffs", id)
	}

	params := url.Values{}
	params.Set("diffID", rev.Diffs[0])

	var raw string
	if err := p.call(ctx, "differential.getrawdiff", params, &raw); err != nil {
		return "", err
	}
	return raw, nil
}

// FetchMetadata returns title, summary, author, and newest diff id.
func (p *Phabricator) FetchMetadata(ctx context.Context, id string) (model.Metadata, error) {
	rev, err := p.queryRevision(ctx, id)
	if err != nil {
		return model.Metadata{}, err
	}

	meta := model.Metadata{
		Title:   rev.Title,
		Summary: rev.Summary,
		Author:  rev.AuthorName,
	}
	if len(rev.Diffs) > 0 {
		meta.DiffID = rev.Diffs[0]
	}
	return meta, nil
}

// PostComment publishes one review comment on a revision. Issues are
// rendered as a file:line message since Conduit inline comments require a
// draft changeset context we do not hold.
func (p *Phabricator) PostComment(ctx context.Context, revision, message string) error {
	params := url.Values{}
	params.Set("revision_id", strings.TrimPrefix(revision, "D"))
	params.Set("message", message)
	params.Set("action", "comment")

	return p.call(ctx, "differential.createcomment", params, nil)
}
