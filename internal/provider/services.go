package provider

import (
	"context"
	"iter"

	"go.uber.org/zap"
)

// DefaultServiceTemplates are public logo lookup services, tried in order.
var DefaultServiceTemplates = []string{
	"https://logo.clearbit.com/{domain}",
	"https://icons.duckduckgo.com/ip3/{domain}.ico",
	"https://www.google.com/s2/favicons?domain={domain}&sz=256",
}

// URLFinder looks up a logo URL by other means, such as an LLM web search.
type URLFinder interface {
	FindLogoURL(ctx context.Context, domain, name string) (string, error)
}

// ServicesStrategy asks third-party logo services, then optionally a
// URLFinder, for the logo of a domain.
type ServicesStrategy struct {
	templates []string
	finder    URLFinder
	logger    *zap.Logger
}

// NewServicesStrategy creates the strategy. finder may be nil.
func NewServicesStrategy(templates []string, finder URLFinder, logger *zap.Logger) *ServicesStrategy {
	if len(templates) == 0 {
		templates = DefaultServiceTemplates
	}
	return &ServicesStrategy{templates: templates, finder: finder, logger: logger}
}

func (s *ServicesStrategy) Name() string { return NameServices }

func (s *ServicesStrategy) Candidates(ctx context.Context, t Target) iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		for _, tmpl := range s.templates {
			if !yield(Candidate{URL: expand(tmpl, t.Domain)}) {
				return
			}
		}

		if s.finder == nil || ctx.Err() != nil {
			return
		}
		u, err := s.finder.FindLogoURL(ctx, t.Domain, t.Name)
		if err != nil {
			s.logger.Debug("logo lookup found nothing",
				zap.String("domain", t.Domain),
				zap.Error(err),
			)
			return
		}
		yield(Candidate{URL: u})
	}
}
