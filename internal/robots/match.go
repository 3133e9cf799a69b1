package robots

import (
	"regexp"
	"strings"
	"sync"
	"time"
)

// selectGroup returns the Group whose Agents list contains an exact,
// case-insensitive match for userAgent, preferring that over the wildcard
// "*" group (robots.txt UA-precedence rule).
func (r Rules) selectGroup(userAgent string) (Group, bool) {
	ua := strings.ToLower(userAgent)
	var wildcard (*Group)
	for i := range r.Groups {
		g := r.Groups[i]
		for _, a := range g.Agents {
			if a == ua {
				return g, true
			}
			if a == "*" && wildcard == nil {
				wc := g
				wildcard = &wc
			}
		}
	}
	if wildcard != nil {
		return *wildcard, true
	}
	return Group{}, false
}

// IsAllowed reports whether userAgent may fetch path, per the longest
// matching Allow/Disallow rule in the applicable group (exact UA group
// takes precedence over the wildcard group). Ties between an Allow and a
// Disallow rule of equal pattern length favor Allow. Absent any matching
// rule, the path is allowed.
func (r Rules) IsAllowed(userAgent, path string) bool {
	g, ok := r.selectGroup(userAgent)
	if !ok {
		return true
	}
	bestLen := -1
	bestAllow := true
	for _, pat := range g.Disallow {
		if pat == "" {
			continue
		}
		if matchesPattern(pat, path) && len(pat) > bestLen {
			bestLen = len(pat)
			bestAllow = false
		}
	}
	for _, pat := range g.Allow {
		if pat == "" {
			continue
		}
		if matchesPattern(pat, path) && len(pat) >= bestLen {
			bestLen = len(pat)
			bestAllow = true
		}
	}
	return bestAllow
}

// CrawlDelayFor returns the Crawl-delay declared for userAgent's applicable
// group, or nil if none was declared.
func (r Rules) CrawlDelayFor(userAgent string) *time.Duration {
	g, ok := r.selectGroup(userAgent)
	if !ok {
		return nil
	}
	return g.CrawlDelay
}

var (
	patternRegexCacheMu sync.Mutex
	patternRegexCache   = make(map[string]*regexp.Regexp)
)

// matchesPattern implements robots.txt pattern matching: "*" matches any
// sequence of characters, and a trailing "$" anchors the match to the end
// of path. Everything else matches literally.
func matchesPattern(pattern, path string) bool {
	re := compilePattern(pattern)
	if re == nil {
		return false
	}
	return re.MatchString(path)
}

func compilePattern(pattern string) *regexp.Regexp {
	patternRegexCacheMu.Lock()
	defer patternRegexCacheMu.Unlock()
	if re, ok := patternRegexCache[pattern]; ok {
		return re
	}
	anchored := strings.HasSuffix(pattern, "$")
	body := strings.TrimSuffix(pattern, "$")
	var b strings.Builder
	b.WriteString("^")
	for _, part := range strings.Split(body, "*") {
		b.WriteString(regexp.QuoteMeta(part))
		b.WriteString(".*")
	}
	expr := strings.TrimSuffix(b.String(), ".*")
	if anchored {
		expr += "$"
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		patternRegexCache[pattern] = nil
		return nil
	}
	patternRegexCache[pattern] = re
	return re
}
