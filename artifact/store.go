/* Copyright © 2025-2026 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this repository for license terms
 */
package artifact

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mikeb26/knockout-tdbot/config"
)

// Store persists rendered brackets under a key and reports where the public
// can fetch them.
type Store interface {
	Publish(ctx context.Context, key string, data []byte, isNew bool) error
	PublicURL(key string) string
	// Check verifies the store is reachable and writable before an event
	// is created.
	Check(ctx context.Context) error
}

// New builds the store selected by cfg.Store.
func New(ctx context.Context, cfg config.ArtifactConfig,
	log logrus.FieldLogger) (Store, error) {

	switch cfg.Store {
	case "", "local":
		return NewLocalStore(cfg.Dir, cfg.PublicBaseURL), nil
	case "s3":
		s := NewS3Store(cfg.Bucket, cfg.Prefix, cfg.PublicBaseURL, log)
		if err := s.Init(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case "github":
		return NewGitHubStore(ctx, GitHubParams{
			User:          cfg.GitHubUser,
			Repo:          cfg.GitHubRepo,
			Branch:        cfg.GitHubBranch,
			Prefix:        cfg.Prefix,
			Token:         cfg.GitHubToken,
			PublicBaseURL: cfg.PublicBaseURL,
		}), nil
	default:
		return nil, fmt.Errorf("artifact.new: unknown store %q", cfg.Store)
	}
}

func joinKey(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

func publicURL(base, objectKey string) string {
	return strings.TrimRight(base, "/") + "/" + objectKey
}
