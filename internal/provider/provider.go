// Package provider holds the logo acquisition strategies. A strategy does not
// download anything itself: it proposes candidate image URLs, in preference
// order, and the orchestrator tries each one with the image fetcher until
// one yields a valid image.
package provider

import (
	"context"
	"iter"
	"strings"
)

// Strategy names, also used as metric labels.
const (
	NameServices    = "services"
	NameFavicon     = "favicon"
	NameScraper     = "scraper"
	NameCommonPaths = "common_paths"
)

// DefaultSiteTemplate is where a domain's own site is reached.
const DefaultSiteTemplate = "https://{domain}/"

// Target is the site a logo is being searched for.
type Target struct {
	Domain string
	Name   string
}

// Candidate is one URL proposed by a strategy. A non-nil Err reports that
// the strategy could not even produce candidates from URL (for example the
// scraper failed to load the page); it is recorded as a failed attempt.
type Candidate struct {
	URL string
	Err error
}

// Strategy proposes candidate logo URLs for a target. Candidates is lazy:
// expensive work (page fetches, LLM calls) happens only when the consumer
// asks for the next candidate, so stopping early saves it.
type Strategy interface {
	Name() string
	Candidates(ctx context.Context, t Target) iter.Seq[Candidate]
}

// expand substitutes the domain into a URL template.
func expand(template, domain string) string {
	return strings.ReplaceAll(template, "{domain}", domain)
}

// siteURL joins a path onto the site root for domain.
func siteURL(template, domain, path string) string {
	return strings.TrimSuffix(expand(template, domain), "/") + "/" + strings.TrimPrefix(path, "/")
}

// fixedPaths yields one candidate per path on the target's own site.
func fixedPaths(template string, paths []string, t Target) iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		for _, p := range paths {
			if !yield(Candidate{URL: siteURL(template, t.Domain, p)}) {
				return
			}
		}
	}
}
