package clause

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"github.com/ahrav/go-covenant/internal/domain"
)

// DefaultRegulations is the regulation vocabulary offered to the model and
// used to canonicalize the names it returns.
var DefaultRegulations = []string{
	"GDPR", "UK GDPR", "HIPAA", "SOX", "ITAR", "SEC", "FCPA", "PCI-DSS", "RBI", "SEBI", "IT Act",
	"CCPA", "CPRA", "GLBA", "FERPA", "COPPA", "NIST", "ISO 27001", "SOC 2", "SOC 1", "SOC 3",
	"FINRA", "MiFID II", "EMIR", "DORA", "eIDAS", "PIPEDA", "LGPD", "PDPA", "APPI", "POPIA",
	"BDSG", "Swiss FADP", "CIS Controls", "NYDFS", "MAS TRM", "Basel III", "AML/KYC",
	"OFAC", "EAR", "Export Control Act", "Bank Secrecy Act", "FedRAMP", "FISMA",
	"HITECH", "CMMC", "CSA STAR", "IRAP", "ENS", "NIS2", "PSD2", "ePrivacy Directive",
	"DPA 2018 (UK)", "PECR", "PRA/FCA (UK)", "OSFI (Canada)", "HKMA", "SAMA",
	"DFSA", "DIFC", "QFCRA", "APRA CPS 234", "OAIC (Australia)", "Privacy Act 1988",
	"Brazil LGPD", "Mexico Federal Data Law", "Chile Data Protection Bill",
	"South Africa POPIA", "Kenya Data Protection Act", "Nigeria NDPR",
	"Singapore PDPA", "Malaysia PDPA", "India DPDP Act 2023", "China PIPL",
	"China CSL", "China DSL", "Russia Federal Data Law 152-FZ", "UAE PDPL",
	"Qatar PDP Law", "Bahrain PDPL", "Turkey KVKK",
}

// minFuzzyRunes is the shortest name eligible for edit-distance matching.
// Short acronyms differ by one letter too easily (SOX, SOC, SEC).
const minFuzzyRunes = 5

// RegulationMatcher canonicalizes regulation names against a vocabulary.
// Names the vocabulary does not know are kept verbatim. The matcher is
// immutable after construction and safe for concurrent use.
type RegulationMatcher struct {
	names  []string
	folded []string
	index  map[string]int
}

// NewRegulationMatcher builds a matcher over vocab. A nil or empty vocab
// falls back to DefaultRegulations.
func NewRegulationMatcher(vocab []string) *RegulationMatcher {
	if len(vocab) == 0 {
		vocab = DefaultRegulations
	}

	fold := cases.Fold()
	m := &RegulationMatcher{
		names:  make([]string, 0, len(vocab)),
		folded: make([]string, 0, len(vocab)),
		index:  make(map[string]int, len(vocab)),
	}
	for _, name := range vocab {
		name = CleanText(name)
		if name == "" {
			continue
		}
		key := fold.String(name)
		if _, dup := m.index[key]; dup {
			continue
		}
		m.index[key] = len(m.names)
		m.names = append(m.names, name)
		m.folded = append(m.folded, key)
	}
	return m
}

// Vocabulary returns a copy of the canonical names in vocabulary order.
func (m *RegulationMatcher) Vocabulary() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// PromptList renders the vocabulary as a comma-separated list.
func (m *RegulationMatcher) PromptList() string {
	return strings.Join(m.names, ", ")
}

// Canonicalize cleans a model-supplied regulation value and rewrites each
// comma or semicolon separated part to its canonical spelling when the
// part is a known name or a near miss of one. Empty input yields Unknown.
func (m *RegulationMatcher) Canonicalize(raw string) string {
	raw = CleanText(raw)
	if raw == "" {
		return domain.UnknownValue
	}

	fold := cases.Fold()
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' })
	seen := make(map[string]bool, len(parts))
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name := m.match(fold.String(part))
		if name == "" {
			name = part
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}

	if len(out) == 0 {
		return domain.UnknownValue
	}
	return strings.Join(out, ", ")
}

func (m *RegulationMatcher) match(key string) string {
	if i, ok := m.index[key]; ok {
		return m.names[i]
	}

	n := utf8.RuneCountInString(key)
	if n < minFuzzyRunes || strings.IndexFunc(key, unicode.IsDigit) >= 0 {
		return ""
	}

	limit := 1
	if n > 8 {
		limit = 2
	}

	best, bestDist := "", limit+1
	for i, candidate := range m.folded {
		if utf8.RuneCountInString(candidate) < minFuzzyRunes {
			continue
		}
		if d := levenshtein.ComputeDistance(key, candidate); d < bestDist {
			best, bestDist = m.names[i], d
		}
	}
	return best
}
