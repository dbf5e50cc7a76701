/* Copyright © 2025-2026 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this repository for license terms
 */
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mikeb26/knockout-tdbot/internal"
)

// ErrInvalidConfig is wrapped by every configuration failure. These are
// always detected before any remote call is made.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete runtime configuration of one knock-out event.
type Config struct {
	Lichess   LichessConfig  `yaml:"lichess"`
	Artifacts ArtifactConfig `yaml:"artifacts"`
	Discord   DiscordConfig  `yaml:"discord"`
	Options   Options        `yaml:"options"`
}

// LichessConfig identifies the hosting team. The token is never read from
// the config file.
type LichessConfig struct {
	TeamID  string `yaml:"team_id" validate:"required,max=60,teamid"`
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`

	Token string `yaml:"-"`
}

// ArtifactConfig selects where bracket images are published.
type ArtifactConfig struct {
	Store         string `yaml:"store" validate:"oneof=local s3 github"`
	Dir           string `yaml:"dir" validate:"required"`
	Bucket        string `yaml:"bucket"`
	Prefix        string `yaml:"prefix"`
	PublicBaseURL string `yaml:"public_base_url" validate:"omitempty,url"`
	GitHubUser    string `yaml:"github_user" validate:"omitempty,max=39,ghuser"`
	GitHubRepo    string `yaml:"github_repo" validate:"omitempty,max=100,ghrepo"`
	GitHubBranch  string `yaml:"github_branch" validate:"required"`

	GitHubToken string `yaml:"-"`
}

type DiscordConfig struct {
	WebhookURL string `yaml:"webhook_url" validate:"omitempty,url"`
}

type ChatScope string

const (
	ChatNone     ChatScope = "none"
	ChatLeaders  ChatScope = "leaders"
	ChatMembers  ChatScope = "members"
	ChatEveryone ChatScope = "everyone"
)

// Options are the tournament rules. They are immutable once validated.
type Options struct {
	MaxParticipants int       `yaml:"max_participants" validate:"min=4,max=8192"`
	MinParticipants int       `yaml:"min_participants" validate:"min=4,ltefield=MaxParticipants"`
	StartAtMax      bool      `yaml:"start_at_max"`
	GamesPerMatch   int       `yaml:"games_per_match" validate:"min=1,max=20"`
	Rated           bool      `yaml:"rated"`
	Variant         string    `yaml:"variant" validate:"oneof=standard chess960 crazyhouse antichess atomic horde kingOfTheHill racingKings threeCheck fromPosition"`
	ClockInit       int       `yaml:"clock_init" validate:"clockinit"`
	ClockInc        int       `yaml:"clock_inc" validate:"min=0,max=120"`
	ChatScope       ChatScope `yaml:"chat_scope" validate:"oneof=none leaders members everyone"`
	RandomizeSeeds  bool      `yaml:"randomize_seeds"`
	EventName       string    `yaml:"event_name" validate:"eventname"`
	MinutesToStart  int       `yaml:"minutes_to_start" validate:"min=5,max=10080"`
	TieBreak        TieBreak  `yaml:"tie_break" validate:"required"`
}

// MatchRounds is the number of bracket levels planned for a full field.
func (o Options) MatchRounds() int {
	return internal.Log2(internal.NextPowerOfTwo(o.MaxParticipants))
}

// TotalRounds is the number of game rounds planned for a full field.
func (o Options) TotalRounds() int {
	return o.MatchRounds() * o.GamesPerMatch
}

// Default returns a Config populated with the values used when a key is
// absent from the config file.
func Default() *Config {
	return &Config{
		Lichess: LichessConfig{
			BaseURL: internal.LichessBaseURL,
		},
		Artifacts: ArtifactConfig{
			Store:        "local",
			Dir:          "png",
			GitHubBranch: "main",
		},
		Options: Options{
			MaxParticipants: 16,
			MinParticipants: 4,
			GamesPerMatch:   1,
			Variant:         "standard",
			ClockInit:       180,
			ClockInc:        2,
			ChatScope:       ChatEveryone,
			MinutesToStart:  60,
			TieBreak:        TieBreakRating,
		},
	}
}

// LoadConfig loads the configuration from a YAML file, then applies secrets
// and overrides from the environment (optionally seeded from a .env file).
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("config.load: %w: %v", ErrInvalidConfig, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	// a missing .env is fine; real environment variables still apply
	_ = godotenv.Load()
	cfg.applyEnv()

	return cfg, nil
}

// Parse decodes a YAML document on top of Default().
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config.parse: %w: %v", ErrInvalidConfig, err)
	}

	return cfg, nil
}

func (cfg *Config) applyEnv() {
	if v := os.Getenv("LICHESS_TOKEN"); v != "" && cfg.Lichess.Token == "" {
		cfg.Lichess.Token = strings.TrimSpace(v)
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" && cfg.Artifacts.GitHubToken == "" {
		cfg.Artifacts.GitHubToken = strings.TrimSpace(v)
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Discord.WebhookURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("LICHESS_BASE_URL"); v != "" {
		cfg.Lichess.BaseURL = strings.TrimSpace(v)
	}
}
