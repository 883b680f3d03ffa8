package retrieval

import (
	"strings"

	"briefdoc/internal/knowledge"
)

// AlignToTerms keeps passages that mention at least one term
// (case-insensitive substring). It never empties a non-empty set: when no
// passage matches, the input is returned unchanged and applied is false.
func AlignToTerms(passages []knowledge.Passage, terms []string) (out []knowledge.Passage, applied bool) {
	terms = normalizeTerms(terms)
	if len(terms) == 0 || len(passages) == 0 {
		return passages, false
	}
	matched := matchTerms(passages, terms)
	if len(matched) == 0 {
		return passages, false
	}
	return matched, true
}

// FilterAllowedDomains keeps passages whose source host is one of allowed or
// a subdomain of one. An empty allowlist disables the filter. Passages
// without a host are dropped while the filter is active, and the result may
// be empty.
func FilterAllowedDomains(passages []knowledge.Passage, allowed []string) []knowledge.Passage {
	domains := make([]string, 0, len(allowed))
	for _, d := range allowed {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "www.")
		if d != "" {
			domains = append(domains, d)
		}
	}
	if len(domains) == 0 {
		return passages
	}

	out := make([]knowledge.Passage, 0, len(passages))
	for _, p := range passages {
		host := knowledge.Host(p.Source)
		if host == "" {
			continue
		}
		for _, d := range domains {
			if host == d || strings.HasSuffix(host, "."+d) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

func matchTerms(passages []knowledge.Passage, terms []string) []knowledge.Passage {
	out := make([]knowledge.Passage, 0, len(passages))
	for _, p := range passages {
		text := strings.ToLower(p.Text)
		for _, t := range terms {
			if strings.Contains(text, t) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

func normalizeTerms(terms []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
