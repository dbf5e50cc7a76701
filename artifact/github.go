/* Copyright © 2025-2026 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this repository for license terms
 */
package artifact

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/mikeb26/knockout-tdbot/internal"
)

type GitHubParams struct {
	User          string
	Repo          string
	Branch        string
	Prefix        string
	Token         string
	PublicBaseURL string
	// APIBaseURL defaults to the public GitHub API.
	APIBaseURL string
}

// GitHubStore commits artifacts into a repository through the contents API.
type GitHubStore struct {
	params     GitHubParams
	httpClient *http.Client
}

func NewGitHubStore(ctx context.Context, params GitHubParams) *GitHubStore {
	if params.APIBaseURL == "" {
		params.APIBaseURL = internal.GitHubBaseURL
	}
	params.APIBaseURL = strings.TrimRight(params.APIBaseURL, "/")
	if params.Branch == "" {
		params.Branch = "main"
	}

	// oauth2 layers the token on top of our user agent transport
	base := internal.NewAuthHttpClient("", nil)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: params.Token, TokenType: "Bearer"}))
	hc.Timeout = base.Timeout

	return &GitHubStore{params: params, httpClient: hc}
}

func (s *GitHubStore) path(key string) string {
	return joinKey(s.params.Prefix, key)
}

func (s *GitHubStore) contentsEndpoint(key string) string {
	return fmt.Sprintf("%v/repos/%v/%v/contents/%v", s.params.APIBaseURL,
		url.PathEscape(s.params.User), url.PathEscape(s.params.Repo),
		s.path(key))
}

func (s *GitHubStore) do(ctx context.Context, method, endpoint string,
	body any) (*http.Response, error) {

	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("artifact.github: encoding request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, rdr)
	if err != nil {
		return nil, fmt.Errorf("artifact.github: creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("artifact.github: performing HTTP %v: %w",
			method, err)
	}
	return resp, nil
}

func unexpected(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("artifact.github.%v: unexpected status %d: %s", op,
		resp.StatusCode, strings.TrimSpace(string(b)))
}

// Check verifies the repository is visible to the token and that the token
// may push to it.
func (s *GitHubStore) Check(ctx context.Context) error {
	endpoint := fmt.Sprintf("%v/repos/%v/%v", s.params.APIBaseURL,
		url.PathEscape(s.params.User), url.PathEscape(s.params.Repo))
	resp, err := s.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return unexpected("check", resp)
	}

	var repo struct {
		FullName    string `json:"full_name"`
		Permissions struct {
			Push bool `json:"push"`
		} `json:"permissions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&repo); err != nil {
		return fmt.Errorf("artifact.github.check: decoding JSON: %w", err)
	}
	if !repo.Permissions.Push {
		return fmt.Errorf("artifact.github.check: token does not permit pushing to %v/%v",
			s.params.User, s.params.Repo)
	}

	return nil
}

// sha returns the blob sha of an existing file, or "" when it does not
// exist.
func (s *GitHubStore) sha(ctx context.Context, key string) (string, error) {
	endpoint := s.contentsEndpoint(key) + "?ref=" +
		url.QueryEscape(s.params.Branch)
	resp, err := s.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", nil
	default:
		return "", unexpected("sha", resp)
	}

	var file struct {
		SHA string `json:"sha"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
		return "", fmt.Errorf("artifact.github.sha: decoding JSON: %w", err)
	}
	return file.SHA, nil
}

type putContents struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

func (s *GitHubStore) put(ctx context.Context, key string,
	body putContents) (int, error) {

	resp, err := s.do(ctx, http.MethodPut, s.contentsEndpoint(key), body)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	case http.StatusUnprocessableEntity, http.StatusConflict:
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	default:
		return resp.StatusCode, unexpected("put", resp)
	}
}

// Publish creates the file when isNew and updates it otherwise. Updates need
// the current blob sha; a create that collides with an existing file is
// retried once as an update.
func (s *GitHubStore) Publish(ctx context.Context, key string, data []byte,
	isNew bool) error {

	body := putContents{
		Content: base64.StdEncoding.EncodeToString(data),
		Branch:  s.params.Branch,
	}

	if isNew {
		body.Message = "Add " + s.path(key)
		code, err := s.put(ctx, key, body)
		if err != nil {
			return err
		}
		if code == http.StatusOK || code == http.StatusCreated {
			return nil
		}
	}

	sha, err := s.sha(ctx, key)
	if err != nil {
		return err
	}
	body.SHA = sha
	body.Message = "Update " + s.path(key)
	code, err := s.put(ctx, key, body)
	if err != nil {
		return err
	}
	if code != http.StatusOK && code != http.StatusCreated {
		return fmt.Errorf("artifact.github.put: update of %v rejected with %d",
			s.path(key), code)
	}

	return nil
}

func (s *GitHubStore) PublicURL(key string) string {
	if s.params.PublicBaseURL != "" {
		return publicURL(s.params.PublicBaseURL, s.path(key))
	}
	return fmt.Sprintf("https://raw.githubusercontent.com/%v/%v/%v/%v",
		s.params.User, s.params.Repo, s.params.Branch, s.path(key))
}
