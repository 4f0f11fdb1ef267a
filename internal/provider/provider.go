// Package provider turns hosting-service APIs into streams of repositories
// to back up.
package provider

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"repovault/internal/config"
)

// Descriptor identifies one repository to sync: where its clone lives under
// the backup root and where to fetch it from. Descriptors are immutable and
// compared by value.
type Descriptor struct {
	// Dest is the clone's path relative to the backup root, always
	// slash-separated: host/owner/name.
	Dest string

	// URL is the clone URL, ssh or https depending on provider settings.
	URL string
}

// Provider streams the repositories of one hosting service.
//
// Repositories returns immediately; a background goroutine feeds the
// descriptor channel lazily and closes it when the sequence ends. The error
// channel (capacity 1) delivers at most one terminal error. A provider that
// fails mid-stream keeps everything it already emitted and then stops; it
// never swallows the failure. Provider values are single-use.
type Provider interface {
	Name() string
	Repositories(ctx context.Context) (<-chan Descriptor, <-chan error)
}

// FromConfig builds one provider per enabled config section.
func FromConfig(cfg *config.Config, logger *zap.Logger, opts ...Option) ([]Provider, error) {
	var providers []Provider
	if cfg.GitHub != nil {
		p, err := NewGitHub(*cfg.GitHub, logger, opts...)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	if cfg.GitLab != nil {
		p, err := NewGitLab(*cfg.GitLab, logger, opts...)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, nil
}

// send delivers one descriptor, giving up when the context ends.
func send(ctx context.Context, out chan<- Descriptor, d Descriptor) error {
	select {
	case out <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// hostLabel reduces a base URL to the bare hostname used as the first
// destination path segment ("https://gitlab.com/" -> "gitlab.com").
func hostLabel(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return strings.Trim(raw, "/")
	}
	return u.Hostname()
}
