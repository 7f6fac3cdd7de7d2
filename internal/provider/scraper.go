package provider

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/fleveque/domain-logo-service/internal/fetch"
	"github.com/fleveque/domain-logo-service/internal/imaging"
	"github.com/fleveque/domain-logo-service/internal/model"
)

const htmlAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

// defaultMaxPageBytes bounds how much HTML is parsed.
const defaultMaxPageBytes = 2 << 20

// ScraperStrategy loads the site's home page and ranks logo-looking images
// found in it.
type ScraperStrategy struct {
	client       *http.Client
	siteTemplate string
	maxPageBytes int64
	logger       *zap.Logger
}

// NewScraperStrategy creates the strategy. client should enforce the
// redirect limit (see fetch.NewHTTPClient).
func NewScraperStrategy(client *http.Client, siteTemplate string, logger *zap.Logger) *ScraperStrategy {
	if siteTemplate == "" {
		siteTemplate = DefaultSiteTemplate
	}
	return &ScraperStrategy{
		client:       client,
		siteTemplate: siteTemplate,
		maxPageBytes: defaultMaxPageBytes,
		logger:       logger,
	}
}

func (s *ScraperStrategy) Name() string { return NameScraper }

func (s *ScraperStrategy) Candidates(ctx context.Context, t Target) iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		pageURL := expand(s.siteTemplate, t.Domain)
		urls, err := s.scrape(ctx, pageURL)
		if err != nil {
			yield(Candidate{URL: pageURL, Err: err})
			return
		}
		s.logger.Debug("scraped logo candidates",
			zap.String("domain", t.Domain),
			zap.Int("count", len(urls)),
		)
		for _, u := range urls {
			if !yield(Candidate{URL: u}) {
				return
			}
		}
	}
}

func (s *ScraperStrategy) scrape(ctx context.Context, pageURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	fetch.SetBrowserHeaders(req, htmlAccept)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, fmt.Errorf("page returned HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, s.maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}

	// Relative references resolve against where the redirects ended up.
	base := resp.Request.URL
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = b
		}
	}

	return rankCandidates(extractCandidates(doc, base)), nil
}

var iconRels = map[string]bool{
	"icon":                         true,
	"shortcut icon":                true,
	"apple-touch-icon":             true,
	"apple-touch-icon-precomposed": true,
	"mask-icon":                    true,
}

// extractCandidates collects image URLs from logo-indicative places in the
// page, resolved against base, filtered to image types and deduplicated in
// first-seen order.
func extractCandidates(doc *goquery.Document, base *url.URL) []string {
	var raw []string

	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		src := imageSource(img)
		if src == "" {
			return
		}
		for _, v := range []string{src, img.AttrOr("alt", ""), img.AttrOr("class", ""), img.AttrOr("id", "")} {
			if strings.Contains(strings.ToLower(v), "logo") {
				raw = append(raw, src)
				return
			}
		}
	})

	doc.Find(`header [class*="logo"] img, nav [class*="logo"] img, header [id*="logo"] img, nav [id*="logo"] img, [class*="logo"] img, [class*="brand"] img`).
		Each(func(_ int, img *goquery.Selection) {
			if src := imageSource(img); src != "" {
				raw = append(raw, src)
			}
		})

	doc.Find("link[rel][href]").Each(func(_ int, link *goquery.Selection) {
		rel := strings.Join(strings.Fields(strings.ToLower(link.AttrOr("rel", ""))), " ")
		if iconRels[rel] {
			raw = append(raw, link.AttrOr("href", ""))
		}
	})

	doc.Find(`meta[property="og:image"], meta[name="og:image"], meta[name="twitter:image"], meta[property="twitter:image"]`).
		Each(func(_ int, meta *goquery.Selection) {
			raw = append(raw, meta.AttrOr("content", ""))
		})

	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		abs, ok := resolveImageURL(base, r)
		if !ok || seen[abs] {
			continue
		}
		seen[abs] = true
		out = append(out, abs)
	}
	return out
}

func imageSource(img *goquery.Selection) string {
	for _, attr := range []string{"src", "data-src"} {
		if v := strings.TrimSpace(img.AttrOr(attr, "")); v != "" {
			return v
		}
	}
	return ""
}

// resolveImageURL makes ref absolute against base and keeps it only if it
// is an http(s) URL that looks like a supported image.
func resolveImageURL(base *url.URL, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(strings.ToLower(ref), "data:") {
		return "", false
	}
	u, err := base.Parse(ref)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	u.Fragment = ""
	abs := u.String()
	if imaging.FormatFromURL(abs) == "" {
		return "", false
	}
	return abs, true
}

var dimensionToken = regexp.MustCompile(`(\d{1,4})x(\d{1,4})`)

// scoreCandidate rates how likely a URL is to be the site's primary logo.
func scoreCandidate(u string) int {
	lower := strings.ToLower(u)
	score := 0

	if strings.Contains(lower, "logo") {
		score += 10
	}

	switch imaging.FormatFromURL(u) {
	case model.FormatSVG:
		score += 6
	case model.FormatPNG:
		score += 4
	case model.FormatJPEG:
		score += 2
	}

	if strings.Contains(lower, "/assets/") || strings.Contains(lower, "/images/") || strings.Contains(lower, "/img/") {
		score += 3
	}
	if strings.Contains(lower, "static") {
		score += 2
	}

	for _, m := range dimensionToken.FindAllStringSubmatch(fileName(lower), -1) {
		w, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		if w < 50 || h < 50 {
			score -= 5
			break
		}
	}
	return score
}

// fileName returns the last path segment of u, ignoring host, query and
// fragment.
func fileName(u string) string {
	if parsed, err := url.Parse(u); err == nil {
		return path.Base(parsed.Path)
	}
	return path.Base(u)
}

// rankCandidates orders URLs by descending score, keeping page order on ties.
func rankCandidates(urls []string) []string {
	type scored struct {
		url   string
		score int
	}
	items := make([]scored, len(urls))
	for i, u := range urls {
		items[i] = scored{u, scoreCandidate(u)}
	}
	slices.SortStableFunc(items, func(a, b scored) int { return b.score - a.score })

	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.url
	}
	return out
}
