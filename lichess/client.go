/* Copyright © 2025-2026 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this repository for license terms
 */
package lichess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mikeb26/knockout-tdbot/internal"
)

var ErrNotFound = errors.New("not found")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("lichess.%v: unexpected status %d: %s", e.Op, e.Code,
		e.Body)
}

// Client talks to the Lichess Swiss tournament API on behalf of one team.
type Client struct {
	baseURL      string
	teamID       string
	token        string
	httpClient   *http.Client
	cachedClient *http.Client
	limiter      *rate.Limiter
}

// NewClient returns a client for teamID. Lichess asks API users to avoid
// bursts so requests are spaced by a limiter.
func NewClient(baseURL, teamID, token string) *Client {
	if baseURL == "" {
		baseURL = internal.LichessBaseURL
	}

	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		teamID:       teamID,
		token:        token,
		httpClient:   internal.NewAuthHttpClient(token, nil),
		cachedClient: internal.NewCachedHttpClient(token, 24*time.Hour),
		limiter:      rate.NewLimiter(rate.Every(time.Second), 3),
	}
}

// SetLimiter replaces the request limiter.
func (client *Client) SetLimiter(l *rate.Limiter) {
	client.limiter = l
}

func (client *Client) TournamentURL(id string) string {
	return fmt.Sprintf("%v/swiss/%v", client.baseURL, id)
}

func (client *Client) do(ctx context.Context, hc *http.Client, op, method,
	endpoint string, form url.Values) (*http.Response, error) {

	var body io.Reader
	contentType := ""
	if form != nil {
		body = strings.NewReader(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}
	return client.doRaw(ctx, hc, op, method, endpoint, body, contentType)
}

func (client *Client) doRaw(ctx context.Context, hc *http.Client, op, method,
	endpoint string, body io.Reader, contentType string) (*http.Response, error) {

	if err := client.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method,
		client.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("lichess.%v: creating request: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lichess.%v: performing HTTP %v: %w", op,
			method, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		serr := &StatusError{Op: op, Code: resp.StatusCode,
			Body: strings.TrimSpace(string(b))}
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, serr)
		}
		return nil, serr
	}

	return resp, nil
}

func (client *Client) post(ctx context.Context, op, endpoint string,
	form url.Values) error {

	if form == nil {
		form = url.Values{}
	}
	resp, err := client.do(ctx, client.httpClient, op, http.MethodPost,
		endpoint, form)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

func (client *Client) getJSON(ctx context.Context, hc *http.Client, op,
	endpoint string, out any) error {

	resp, err := client.do(ctx, hc, op, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("lichess.%v: decoding JSON: %w", op, err)
	}

	return nil
}
