// Package llm asks a web-search capable LLM for the URL of a domain's
// official logo. It is the last lookup tried by the services strategy.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNoResult is returned when the model finished without proposing a URL.
var ErrNoResult = errors.New("llm returned no logo url")

// maxTurns bounds the tool-calling conversation with a model.
const maxTurns = 5

// submitToolName is the structured-output tool the model calls with its answer.
const submitToolName = "submit_logo_url"

// LogoSearchResult contains the result of an LLM-powered logo search.
type LogoSearchResult struct {
	LogoURL    string // Direct URL to the logo image
	SiteName   string // Organization name as the model understood it
	Source     string // Where the logo was found (e.g., "wikipedia.org")
	Confidence string // "high", "medium", "low"
}

// Client is implemented by each LLM vendor.
type Client interface {
	FindLogoURL(ctx context.Context, domain string, name string) (*LogoSearchResult, error)
	ProviderName() string
	ModelName() string
}

// submission is the argument payload of the submit tool.
type submission struct {
	LogoURL    string `json:"logo_url"`
	SiteName   string `json:"site_name"`
	Source     string `json:"source"`
	Confidence string `json:"confidence"`
}

// submissionProperties is the JSON schema of the submit tool arguments,
// shared by both vendors.
func submissionProperties() map[string]interface{} {
	return map[string]interface{}{
		"logo_url": map[string]interface{}{
			"type":        "string",
			"description": "Direct URL to the logo image (PNG, SVG, or JPG). Must be an image, not a webpage.",
		},
		"site_name": map[string]interface{}{
			"type":        "string",
			"description": "The name of the organization that owns the domain.",
		},
		"source": map[string]interface{}{
			"type":        "string",
			"description": "The website where the logo was found (e.g., 'wikipedia.org', the domain itself).",
		},
		"confidence": map[string]interface{}{
			"type":        "string",
			"enum":        []string{"high", "medium", "low"},
			"description": "How confident you are this is the official logo.",
		},
	}
}

// parseSubmission validates the raw tool arguments returned by a model.
func parseSubmission(raw []byte, domain string) (*LogoSearchResult, error) {
	var s submission
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parsing tool arguments: %w", err)
	}
	s.LogoURL = strings.TrimSpace(s.LogoURL)
	if s.LogoURL == "" {
		return nil, fmt.Errorf("%w for %s", ErrNoResult, domain)
	}
	u, err := url.Parse(s.LogoURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("model returned unusable url %q for %s", s.LogoURL, domain)
	}
	return &LogoSearchResult{
		LogoURL:    s.LogoURL,
		SiteName:   s.SiteName,
		Source:     s.Source,
		Confidence: s.Confidence,
	}, nil
}

// buildPrompt creates the user prompt for the LLM.
func buildPrompt(domain string, name string) string {
	hint := ""
	if name != "" && name != domain {
		hint = fmt.Sprintf(" (organization name: %s)", name)
	}

	return fmt.Sprintf(`Find the official logo for the website "%s"%s.

Search the web to find a high-quality logo image. Prefer:
1. The logo served by the website itself
2. Wikipedia commons logos (often high-quality SVG/PNG)
3. Well-known brand asset directories

Requirements for the logo URL:
- Must be a DIRECT link to an image file (ending in .png, .svg, .jpg, or similar)
- Must be the primary logo, not a favicon or social-media banner, when a better one exists
- The URL must be publicly accessible (no authentication required)

Once you find the best logo, call the %s tool with the URL and details.
If you cannot find a suitable logo, explain why in your response.`, domain, hint, submitToolName)
}
