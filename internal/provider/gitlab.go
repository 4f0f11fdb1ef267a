package provider

import (
	"context"
	"fmt"
	"path"

	"github.com/xanzy/go-gitlab"
	"go.uber.org/zap"

	"repovault/internal/config"
)

const gitlabPageSize = 100

// GitLab streams the authenticated user's projects from a GitLab instance:
// owned, membership (group/organisation) and starred projects as separate
// queries, per config. Categories can overlap; the driver de-duplicates by
// destination.
type GitLab struct {
	client *gitlab.Client
	cfg    config.GitLab
	host   string
	logger *zap.Logger
}

func NewGitLab(cfg config.GitLab, logger *zap.Logger, opts ...Option) (*GitLab, error) {
	if logger == nil {
		return nil, fmt.Errorf("gitlab provider: logger is nil")
	}

	o := applyOptions(opts)
	client, err := gitlab.NewClient(cfg.APIKey,
		gitlab.WithBaseURL(cfg.Host),
		gitlab.WithHTTPClient(newHTTPClient("", logger, o)),
	)
	if err != nil {
		return nil, fmt.Errorf("gitlab provider: %w", err)
	}

	return &GitLab{
		client: client,
		cfg:    cfg,
		host:   hostLabel(cfg.Host),
		logger: logger.Named("gitlab"),
	}, nil
}

func (p *GitLab) Name() string { return "gitlab" }

func (p *GitLab) Repositories(ctx context.Context) (<-chan Descriptor, <-chan error) {
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

func (p *GitLab) stream(ctx context.Context, out chan<- Descriptor) error {
	if !p.cfg.SkipOwned {
		p.logger.Info("listing owned projects")
		if err := p.streamProjects(ctx, out, gitlab.ListProjectsOptions{Owned: gitlab.Ptr(true)}); err != nil {
			return fmt.Errorf("gitlab: list owned projects: %w", err)
		}
	}
	if !p.cfg.SkipOrganisations {
		p.logger.Info("listing membership projects")
		if err := p.streamProjects(ctx, out, gitlab.ListProjectsOptions{Membership: gitlab.Ptr(true)}); err != nil {
			return fmt.Errorf("gitlab: list membership projects: %w", err)
		}
	}
	if !p.cfg.SkipStarred {
		p.logger.Info("listing starred projects")
		if err := p.streamProjects(ctx, out, gitlab.ListProjectsOptions{Starred: gitlab.Ptr(true)}); err != nil {
			return fmt.Errorf("gitlab: list starred projects: %w", err)
		}
	}
	return nil
}

func (p *GitLab) streamProjects(ctx context.Context, out chan<- Descriptor, base gitlab.ListProjectsOptions) error {
	fetch := func(ctx context.Context, page int) ([]*gitlab.Project, int, error) {
		opts := base
		opts.ListOptions = gitlab.ListOptions{Page: page, PerPage: gitlabPageSize}
		projects, resp, err := p.client.Projects.ListProjects(&opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, 0, err
		}
		return projects, resp.NextPage, nil
	}

	return walkPages(ctx, p.logger, fetch, func(project *gitlab.Project) error {
		return send(ctx, out, p.describe(project))
	})
}

func (p *GitLab) describe(project *gitlab.Project) Descriptor {
	cloneURL := project.SSHURLToRepo
	if p.cfg.UseHTTP {
		cloneURL = project.HTTPURLToRepo
	}
	return Descriptor{
		Dest: path.Join(p.host, project.PathWithNamespace),
		URL:  cloneURL,
	}
}
