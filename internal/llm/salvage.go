package llm

import "strings"

// salvageJSON applies the three-step cascade from spec §4.1: (a) raw parse
// — here, just trust the trimmed string as-is; (b) strip a single fenced
// code block; (c) find the largest balanced {...} or [...] substring. The
// caller performs the actual json.Unmarshal; salvageJSON only narrows the
// candidate substring.
func salvageJSON(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	if looksLikeJSON(s) {
		return s, true
	}
	if stripped, ok := stripFence(s); ok && looksLikeJSON(stripped) {
		return stripped, true
	}
	if balanced, ok := largestBalanced(s); ok {
		return balanced, true
	}
	return "", false
}

func looksLikeJSON(s string) bool {
	if s == "" {
		return false
	}
	return s[0] == '{' || s[0] == '['
}

// stripFence removes a single ```...``` or ```json...``` fenced block and
// returns its inner content.
func stripFence(s string) (string, bool) {
	const fence = "```"
	first := strings.Index(s, fence)
	if first == -1 {
		return "", false
	}
	rest := s[first+len(fence):]
	// Drop an optional language tag on the opening fence line.
	if nl := strings.IndexByte(rest, '\n'); nl != -1 {
		tag := strings.TrimSpace(rest[:nl])
		if tag != "" && !strings.ContainsAny(tag, "{}[]") {
			rest = rest[nl+1:]
		}
	}
	second := strings.Index(rest, fence)
	if second == -1 {
		return strings.TrimSpace(rest), true
	}
	return strings.TrimSpace(rest[:second]), true
}

// largestBalanced scans s for the longest balanced-brace or balanced-bracket
// substring, preferring the brace substring when lengths tie.
func largestBalanced(s string) (string, bool) {
	best := ""
	for _, pair := range []struct{ open, close byte }{{'{', '}'}, {'[', ']'}} {
		if cand, ok := longestBalancedPair(s, pair.open, pair.close); ok && len(cand) > len(best) {
			best = cand
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

func longestBalancedPair(s string, open, close byte) (string, bool) {
	bestStart, bestEnd := -1, -1
	depth := 0
	start := -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case open:
			if depth == 0 {
				start = i
			}
			depth++
		case close:
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					if bestStart == -1 || i-start > bestEnd-bestStart {
						bestStart, bestEnd = start, i
					}
				}
			}
		}
	}
	if bestStart == -1 {
		return "", false
	}
	return s[bestStart : bestEnd+1], true
}
