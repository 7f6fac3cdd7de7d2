package provider

import (
	"context"
	"iter"
)

var faviconPaths = []string{
	"favicon.ico",
	"favicon.png",
	"favicon.svg",
	"apple-touch-icon.png",
	"apple-touch-icon-precomposed.png",
}

// FaviconStrategy probes the conventional icon locations at the site root.
type FaviconStrategy struct {
	siteTemplate string
}

func NewFaviconStrategy(siteTemplate string) *FaviconStrategy {
	if siteTemplate == "" {
		siteTemplate = DefaultSiteTemplate
	}
	return &FaviconStrategy{siteTemplate: siteTemplate}
}

func (f *FaviconStrategy) Name() string { return NameFavicon }

func (f *FaviconStrategy) Candidates(_ context.Context, t Target) iter.Seq[Candidate] {
	return fixedPaths(f.siteTemplate, faviconPaths, t)
}
