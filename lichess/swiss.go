/* Copyright © 2025-2026 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this repository for license terms
 */
package lichess

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mikeb26/knockout-tdbot/config"
	"github.com/mikeb26/knockout-tdbot/internal"
	"github.com/mikeb26/knockout-tdbot/knockout"
)

// manualRoundInterval keeps Lichess from pairing rounds on its own; every
// round is started explicitly.
const manualRoundInterval = 99999999

var chatFor = map[config.ChatScope]int{
	config.ChatNone:     0,
	config.ChatLeaders:  10,
	config.ChatMembers:  20,
	config.ChatEveryone: 30,
}

var _ knockout.Host = (*Client)(nil)

// clampRounds keeps nbRounds inside the range Lichess accepts.
func clampRounds(n int) int {
	return min(max(n, knockout.MinHostRounds), knockout.MaxHostRounds)
}

func millis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// EncodePairings renders games in the manualPairings format: one
// "white black" pair per line, with "player 1" for a bye.
func EncodePairings(games []knockout.Game) string {
	lines := make([]string, 0, len(games))
	for _, g := range games {
		if g.IsBye() {
			lines = append(lines, g.White+" 1")
		} else {
			lines = append(lines, g.White+" "+g.Black)
		}
	}
	return strings.Join(lines, "\n")
}

func (client *Client) Create(ctx context.Context,
	req knockout.CreateRequest) (string, error) {

	form := url.Values{}
	form.Set("name", req.Title)
	form.Set("clock.limit", strconv.Itoa(req.ClockInit))
	form.Set("clock.increment", strconv.Itoa(req.ClockInc))
	form.Set("nbRounds", strconv.Itoa(clampRounds(req.TotalRounds)))
	form.Set("startsAt", millis(req.StartsAt))
	form.Set("roundInterval", strconv.Itoa(manualRoundInterval))
	form.Set("variant", req.Variant)
	form.Set("description", req.Description)
	form.Set("rated", strconv.FormatBool(req.Rated))
	form.Set("chatFor", strconv.Itoa(chatFor[req.ChatScope]))

	resp, err := client.do(ctx, client.httpClient, "create", http.MethodPost,
		"/api/swiss/new/"+url.PathEscape(client.teamID), form)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("lichess.create: decoding JSON: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("lichess.create: response carried no id")
	}

	return created.ID, nil
}

// EditForm builds the form posted by Edit. Lichess requires the clock and
// round count on every edit.
func EditForm(req knockout.EditRequest) url.Values {
	form := url.Values{}
	form.Set("clock.limit", strconv.Itoa(req.ClockInit))
	form.Set("clock.increment", strconv.Itoa(req.ClockInc))
	form.Set("nbRounds", strconv.Itoa(clampRounds(req.TotalRounds)))
	if req.Description != "" {
		form.Set("description", req.Description)
	}
	if len(req.AllowList) > 0 {
		form.Set("conditions.allowList", strings.Join(req.AllowList, "\n"))
	}
	if len(req.ManualPairings) > 0 {
		form.Set("manualPairings", EncodePairings(req.ManualPairings))
	}
	if !req.StartsAt.IsZero() {
		form.Set("startsAt", millis(req.StartsAt))
	}
	return form
}

func (client *Client) Edit(ctx context.Context, id string,
	req knockout.EditRequest) error {

	return client.post(ctx, "edit", "/api/swiss/"+url.PathEscape(id)+"/edit",
		EditForm(req))
}

func (client *Client) ScheduleNextRound(ctx context.Context, id string,
	start time.Time) error {

	form := url.Values{}
	form.Set("date", millis(start))
	return client.post(ctx, "scheduleNextRound",
		"/api/swiss/"+url.PathEscape(id)+"/schedule-next-round", form)
}

func (client *Client) Terminate(ctx context.Context, id string) error {
	return client.post(ctx, "terminate",
		"/api/swiss/"+url.PathEscape(id)+"/terminate", nil)
}

type apiResult struct {
	Username string  `json:"username"`
	Points   float64 `json:"points"`
	Rating   int     `json:"rating"`
}

// Results returns the full standings. Lichess streams them as NDJSON, one
// player per line.
func (client *Client) Results(ctx context.Context,
	id string) ([]knockout.Standing, error) {

	resp, err := client.do(ctx, client.httpClient, "results", http.MethodGet,
		"/api/swiss/"+url.PathEscape(id)+"/results", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var standings []knockout.Standing
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var r apiResult
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			return nil, fmt.Errorf("lichess.results: decoding %q: %w", line, err)
		}
		standings = append(standings, knockout.Standing{
			ID:       strings.ToLower(r.Username),
			Username: r.Username,
			Points:   r.Points,
			Rating:   r.Rating,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("lichess.results: reading stream: %w", err)
	}

	return standings, nil
}

type apiSwiss struct {
	ID        string `json:"id"`
	Round     int    `json:"round"`
	NbOngoing int    `json:"nbOngoing"`
	Status    string `json:"status"`
	StartsAt  string `json:"startsAt"`
}

func (client *Client) Status(ctx context.Context,
	id string) (*knockout.HostStatus, error) {

	var swiss apiSwiss
	err := client.getJSON(ctx, client.httpClient, "status",
		"/api/swiss/"+url.PathEscape(id), &swiss)
	if err != nil {
		return nil, err
	}

	startsAt, err := internal.ParseDateOrZero(swiss.StartsAt)
	if err != nil {
		return nil, fmt.Errorf("lichess.status: parsing startsAt %q: %w",
			swiss.StartsAt, err)
	}

	return &knockout.HostStatus{
		Round:      swiss.Round,
		InProgress: swiss.NbOngoing,
		Status:     knockout.LifecycleStatus(swiss.Status),
		StartsAt:   startsAt,
	}, nil
}
