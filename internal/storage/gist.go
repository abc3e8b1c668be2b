package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"

	"uptimeledger/internal/config"
)

const gistRequestTimeout = 30 * time.Second

// GistStore keeps the ledger as one file of a GitHub gist.
//
// The gist API has no conditional update, so a conditional write re-reads the gist and
// compares its updated_at first; a concurrent writer can still slip in between the two
// requests. updated_at has one-second precision, so two writes within the same second
// share a version and a conditional write cannot tell them apart.
type GistStore struct {
	client   *github.Client
	id       string
	filename string
}

// NewGistStore validates the gist settings. A nil client gets a default one.
func NewGistStore(cfg config.GistConfig, client *http.Client) (*GistStore, error) {
	if cfg.ID == "" || cfg.Token == "" {
		return nil, fmt.Errorf("gist store: %w: GIST_ID and GH_PAT are required", ErrNotConfigured)
	}
	if client == nil {
		client = &http.Client{Timeout: gistRequestTimeout}
	}
	gh := github.NewClient(client).WithAuthToken(cfg.Token)
	if apiURL := strings.TrimSuffix(cfg.APIURL, "/"); apiURL != "" {
		base, err := url.Parse(apiURL + "/")
		if err != nil {
			return nil, fmt.Errorf("gist store: invalid api url %q: %w", cfg.APIURL, err)
		}
		gh.BaseURL = base
	}

	filename := cfg.Filename
	if filename == "" {
		filename = "uptime.json"
	}
	return &GistStore{client: gh, id: cfg.ID, filename: filename}, nil
}

// Read fetches the gist. A gist without the ledger file is reported as absent.
func (s *GistStore) Read(ctx context.Context) (*Document, error) {
	gist, _, err := s.client.Gists.Get(ctx, s.id)
	if err != nil {
		return nil, fmt.Errorf("read gist: %w", err)
	}
	file, ok := gist.Files[github.GistFilename(s.filename)]
	if !ok {
		return nil, nil
	}

	content := file.GetContent()
	// The API cuts large files short; the full body is behind raw_url.
	if file.GetRawURL() != "" && file.GetSize() > len(content) {
		raw, err := s.fetchRaw(ctx, file.GetRawURL())
		if err != nil {
			return nil, fmt.Errorf("read gist raw content: %w", err)
		}
		content = raw
	}
	return &Document{Data: []byte(content), Version: gistVersion(gist)}, nil
}

// Write updates the ledger file in the gist.
func (s *GistStore) Write(ctx context.Context, data []byte, pre Precondition) (string, error) {
	if pre.Enabled {
		current, err := s.Read(ctx)
		if err != nil {
			return "", err
		}
		version := ""
		if current != nil {
			version = current.Version
		}
		if version != pre.Version {
			return "", ErrVersionConflict
		}
	}

	update := &github.Gist{
		Files: map[github.GistFilename]github.GistFile{
			github.GistFilename(s.filename): {Content: github.String(string(data))},
		},
	}
	gist, _, err := s.client.Gists.Edit(ctx, s.id, update)
	if err != nil {
		return "", fmt.Errorf("write gist: %w", err)
	}
	return gistVersion(gist), nil
}

// Close is a no-op.
func (s *GistStore) Close() error {
	return nil
}

func (s *GistStore) fetchRaw(ctx context.Context, rawURL string) (string, error) {
	req, err := s.client.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := s.client.Do(ctx, req, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func gistVersion(gist *github.Gist) string {
	ts := gist.GetUpdatedAt()
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}
