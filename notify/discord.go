/* Copyright © 2025-2026 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this repository for license terms
 */
package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/mikeb26/knockout-tdbot/internal"
	"github.com/mikeb26/knockout-tdbot/knockout"
)

// maxContent is Discord's message length limit.
const maxContent = 2000

const DefaultUsername = "Knockout TD"

// Discord posts announcements through a channel webhook.
type Discord struct {
	session   *discordgo.Session
	webhookID string
	token     string
	Username  string
}

var _ knockout.Notifier = (*Discord)(nil)

// NewDiscord parses a webhook URL of the form
// https://discord.com/api/webhooks/<id>/<token>.
func NewDiscord(webhookURL string) (*Discord, error) {
	id, token, err := parseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}

	// webhooks authenticate through the URL token
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("notify.discord: creating session: %w", err)
	}
	session.UserAgent = internal.UserAgent

	return &Discord{
		session:   session,
		webhookID: id,
		token:     token,
		Username:  DefaultUsername,
	}, nil
}

func parseWebhookURL(raw string) (string, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("notify.discord: parsing webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("notify.discord: %q is not a webhook url", raw)
}

// SetHTTPClient replaces the client used to reach Discord.
func (d *Discord) SetHTTPClient(c *http.Client) {
	d.session.Client = c
}

func (d *Discord) Announce(ctx context.Context, msg string) error {
	if r := []rune(msg); len(r) > maxContent {
		msg = string(r[:maxContent-1]) + "…"
	}
	params := &discordgo.WebhookParams{
		Content:  msg,
		Username: d.Username,
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{},
		},
	}

	_, err := d.session.WebhookExecute(d.webhookID, d.token, false, params,
		discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("notify.discord: executing webhook: %w", err)
	}
	return nil
}
