package provider

import (
	"context"
	"iter"
)

var commonLogoPaths = []string{
	"/logo.png",
	"/logo.svg",
	"/images/logo.png",
	"/img/logo.png",
	"/assets/logo.png",
	"/assets/images/logo.png",
	"/static/logo.png",
	"/logo.jpg",
}

// CommonPathsStrategy guesses well-known logo locations on the site.
type CommonPathsStrategy struct {
	siteTemplate string
}

func NewCommonPathsStrategy(siteTemplate string) *CommonPathsStrategy {
	if siteTemplate == "" {
		siteTemplate = DefaultSiteTemplate
	}
	return &CommonPathsStrategy{siteTemplate: siteTemplate}
}

func (c *CommonPathsStrategy) Name() string { return NameCommonPaths }

func (c *CommonPathsStrategy) Candidates(_ context.Context, t Target) iter.Seq[Candidate] {
	return fixedPaths(c.siteTemplate, commonLogoPaths, t)
}
