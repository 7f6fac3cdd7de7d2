package provider

// Rule pairs a strategy with the predicate deciding whether it runs for a
// given domain.
type Rule struct {
	Strategy Strategy
	Include  func(domain string) bool
}

// Always includes a strategy for every domain.
func Always(string) bool { return true }

// Selector holds the ordered strategy table.
type Selector struct {
	rules []Rule
}

// NewSelector creates a selector over rules, kept in the given order.
func NewSelector(rules ...Rule) *Selector {
	return &Selector{rules: rules}
}

// NewDefaultSelector builds the standard order: services, favicon, scraper,
// common paths. The scraper is skipped for blocklisted domains.
func NewDefaultSelector(services, favicon, scraper, paths Strategy, blocklist *Blocklist) *Selector {
	return NewSelector(
		Rule{Strategy: services, Include: Always},
		Rule{Strategy: favicon, Include: Always},
		Rule{Strategy: scraper, Include: func(domain string) bool { return !blocklist.Blocked(domain) }},
		Rule{Strategy: paths, Include: Always},
	)
}

// Select evaluates the table for domain and returns the strategies to run,
// in order.
func (s *Selector) Select(domain string) []Strategy {
	out := make([]Strategy, 0, len(s.rules))
	for _, r := range s.rules {
		if r.Strategy == nil {
			continue
		}
		if r.Include == nil || r.Include(domain) {
			out = append(out, r.Strategy)
		}
	}
	return out
}
