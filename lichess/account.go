/* Copyright © 2025-2026 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this repository for license terms
 */
package lichess

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

// RequiredScope is the token scope needed to create and run Swiss events.
const RequiredScope = "tournament:write"

type Team struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	NbMembers int    `json:"nbMembers"`
}

// CheckToken verifies that the client's token is live and carries
// RequiredScope.
func (client *Client) CheckToken(ctx context.Context) error {
	resp, err := client.doRaw(ctx, client.httpClient, "checkToken",
		http.MethodPost, "/api/token/test", strings.NewReader(client.token),
		"text/plain")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var info map[string]*struct {
		Scopes string `json:"scopes"`
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return fmt.Errorf("lichess.checkToken: decoding JSON: %w", err)
	}
	tok := info[client.token]
	if tok == nil {
		return fmt.Errorf("lichess.checkToken: token is invalid or expired")
	}
	if !slices.Contains(strings.Split(tok.Scopes, ","), RequiredScope) {
		return fmt.Errorf("lichess.checkToken: token for %v lacks scope %v",
			tok.UserID, RequiredScope)
	}

	return nil
}

// Team looks up the hosting team. Team details do not change during an
// event so the response is cached.
func (client *Client) Team(ctx context.Context) (*Team, error) {
	var team Team
	err := client.getJSON(ctx, client.cachedClient, "team",
		"/api/team/"+url.PathEscape(client.teamID), &team)
	if err != nil {
		return nil, err
	}

	return &team, nil
}
