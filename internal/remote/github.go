package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GitHubConfig points at a file in a repository.
type GitHubConfig struct {
	Repo    string // owner/name
	APIBase string // defaults to https://api.github.com
	Token   string
	Branch  string // default branch when empty
}

// GitHub stores objects as files through the repository contents API. The
// blob sha is the version.
type GitHub struct {
	client *http.Client
	api    string
	repo   string
	token  string
	branch string
	logger *zap.Logger
}

// GitHubOption configures GitHub.
type GitHubOption func(*GitHub)

func WithHTTPClient(c *http.Client) GitHubOption {
	return func(g *GitHub) { g.client = c }
}

func WithGitHubLogger(l *zap.Logger) GitHubOption {
	return func(g *GitHub) {
		if l != nil {
			g.logger = l
		}
	}
}

func NewGitHub(cfg GitHubConfig, opts ...GitHubOption) (*GitHub, error) {
	if strings.Count(cfg.Repo, "/") != 1 {
		return nil, fmt.Errorf("github repo must be owner/name, got %q", cfg.Repo)
	}
	if cfg.Token == "" {
		return nil, errors.New("github token is required")
	}
	api := strings.TrimRight(cfg.APIBase, "/")
	if api == "" {
		api = "https://api.github.com"
	}
	g := &GitHub{
		client: &http.Client{Timeout: 30 * time.Second},
		api:    api,
		repo:   cfg.Repo,
		token:  cfg.Token,
		branch: cfg.Branch,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

type contentFile struct {
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type apiMessage struct {
	Message string `json:"message"`
}

func (g *GitHub) contentsURL(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return g.api + "/repos/" + g.repo + "/contents/" + strings.Join(parts, "/")
}

func (g *GitHub) do(ctx context.Context, method, addr string, body any, out any) (int, string, error) {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, "", err
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, addr, rd)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", err
	}
	if resp.StatusCode/100 != 2 {
		var m apiMessage
		_ = json.Unmarshal(raw, &m)
		return resp.StatusCode, m.Message, nil
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, "", fmt.Errorf("decode github response: %w", err)
		}
	}
	return resp.StatusCode, "", nil
}

func (g *GitHub) Get(ctx context.Context, path string) (Object, error) {
	addr := g.contentsURL(path)
	if g.branch != "" {
		addr += "?ref=" + url.QueryEscape(g.branch)
	}
	var f contentFile
	status, msg, err := g.do(ctx, http.MethodGet, addr, nil, &f)
	if err != nil {
		return Object{}, fmt.Errorf("github get: %w", err)
	}
	switch {
	case status == http.StatusNotFound:
		return Object{}, ErrNotFound
	case status != http.StatusOK:
		return Object{}, fmt.Errorf("github get: %d %s", status, msg)
	}
	// Files over 1 MB come back without inline content.
	if f.Content == "" || f.Encoding != "base64" {
		var blob contentFile
		status, msg, err := g.do(ctx, http.MethodGet, g.api+"/repos/"+g.repo+"/git/blobs/"+f.SHA, nil, &blob)
		if err != nil {
			return Object{}, fmt.Errorf("github blob: %w", err)
		}
		if status != http.StatusOK {
			return Object{}, fmt.Errorf("github blob: %d %s", status, msg)
		}
		f.Content, f.Encoding = blob.Content, blob.Encoding
	}
	data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(f.Content, "\n", ""))
	if err != nil {
		return Object{}, fmt.Errorf("github content: %w", err)
	}
	return Object{Data: data, Version: f.SHA}, nil
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

type putResponse struct {
	Content contentFile `json:"content"`
}

func (g *GitHub) Put(ctx context.Context, path string, data []byte, expected string) (string, error) {
	pushID := uuid.NewString()
	req := putRequest{
		Message: "moneysync: update ledger (push " + pushID + ")",
		Content: base64.StdEncoding.EncodeToString(data),
		SHA:     expected,
		Branch:  g.branch,
	}
	var out putResponse
	status, msg, err := g.do(ctx, http.MethodPut, g.contentsURL(path), req, &out)
	if err != nil {
		return "", fmt.Errorf("github put: %w", err)
	}
	switch {
	case status == http.StatusConflict:
		return "", ErrVersionConflict
	case status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "sha"):
		return "", ErrVersionConflict
	case status != http.StatusOK && status != http.StatusCreated:
		return "", fmt.Errorf("github put: %d %s", status, msg)
	}
	g.logger.Debug("github file updated", zap.String("repo", g.repo), zap.String("path", path),
		zap.String("sha", out.Content.SHA), zap.String("push_id", pushID))
	return out.Content.SHA, nil
}
