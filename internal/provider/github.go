package provider

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/go-github/v81/github"
	"go.uber.org/zap"

	"repovault/internal/config"
)

const (
	githubHost     = "github.com"
	githubPageSize = 100
)

// GitHub streams the authenticated user's repositories from the GitHub API:
// affiliated repositories (owner/collaborator/organization member, per
// config) followed by starred ones.
type GitHub struct {
	client *github.Client
	cfg    config.GitHub
	host   string
	logger *zap.Logger
}

func NewGitHub(cfg config.GitHub, logger *zap.Logger, opts ...Option) (*GitHub, error) {
	if logger == nil {
		return nil, fmt.Errorf("github provider: logger is nil")
	}

	o := applyOptions(opts)
	client := github.NewClient(newHTTPClient(cfg.APIKey, logger, o))

	host := githubHost
	if cfg.Host != "" {
		ec, err := client.WithEnterpriseURLs(cfg.Host, cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("github provider: enterprise host %q: %w", cfg.Host, err)
		}
		client = ec
		host = hostLabel(cfg.Host)
	}

	return &GitHub{
		client: client,
		cfg:    cfg,
		host:   host,
		logger: logger.Named("github"),
	}, nil
}

func (p *GitHub) Name() string { return "github" }

func (p *GitHub) Repositories(ctx context.Context) (<-chan Descriptor, <-chan error) {
	out := make(chan Descriptor)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)
		if err := p.stream(ctx, out); err != nil {
			errc <- err
		}
	}()

	return out, errc
}

func (p *GitHub) stream(ctx context.Context, out chan<- Descriptor) error {
	if affiliation := p.affiliation(); affiliation != "" {
		p.logger.Info("listing affiliated repositories", zap.String("affiliation", affiliation))
		if err := p.streamAffiliated(ctx, out, affiliation); err != nil {
			return fmt.Errorf("github: list affiliated repositories: %w", err)
		}
	}
	if !p.cfg.SkipStarred {
		p.logger.Info("listing starred repositories")
		if err := p.streamStarred(ctx, out); err != nil {
			return fmt.Errorf("github: list starred repositories: %w", err)
		}
	}
	return nil
}

// affiliation builds the comma-separated affiliation filter for the
// /user/repos endpoint. Collaborator repositories ride along with owned
// ones: both are "yours" for backup purposes.
func (p *GitHub) affiliation() string {
	var parts []string
	if !p.cfg.SkipOwned {
		parts = append(parts, "owner", "collaborator")
	}
	if !p.cfg.SkipOrganisations {
		parts = append(parts, "organization_member")
	}
	return strings.Join(parts, ",")
}

func (p *GitHub) streamAffiliated(ctx context.Context, out chan<- Descriptor, affiliation string) error {
	fetch := func(ctx context.Context, page int) ([]*github.Repository, int, error) {
		opts := &github.RepositoryListByAuthenticatedUserOptions{
			Affiliation: affiliation,
			ListOptions: github.ListOptions{Page: page, PerPage: githubPageSize},
		}
		repos, resp, err := p.client.Repositories.ListByAuthenticatedUser(ctx, opts)
		if err != nil {
			return nil, 0, err
		}
		return repos, resp.NextPage, nil
	}

	return walkPages(ctx, p.logger, fetch, func(r *github.Repository) error {
		return send(ctx, out, p.describe(r))
	})
}

func (p *GitHub) streamStarred(ctx context.Context, out chan<- Descriptor) error {
	fetch := func(ctx context.Context, page int) ([]*github.StarredRepository, int, error) {
		opts := &github.ActivityListStarredOptions{
			ListOptions: github.ListOptions{Page: page, PerPage: githubPageSize},
		}
		starred, resp, err := p.client.Activity.ListStarred(ctx, "", opts)
		if err != nil {
			return nil, 0, err
		}
		return starred, resp.NextPage, nil
	}

	return walkPages(ctx, p.logger, fetch, func(s *github.StarredRepository) error {
		return send(ctx, out, p.describe(s.GetRepository()))
	})
}

func (p *GitHub) describe(r *github.Repository) Descriptor {
	cloneURL := r.GetCloneURL()
	if p.cfg.UseSSH {
		cloneURL = r.GetSSHURL()
	}
	return Descriptor{
		Dest: path.Join(p.host, r.GetFullName()),
		URL:  cloneURL,
	}
}
