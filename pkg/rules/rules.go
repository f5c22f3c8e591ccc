// Package rules defines the pattern catalog used to detect sensitive
// data. A catalog holds the built-in rules plus any custom patterns
// registered for a run; rules are compiled once and shared read-only
// across concurrent unit scans.
//
// Four matcher kinds exist: single-regex rules (email, ssn, ...),
// multi-regex rules that try several shapes for one concept (person
// names), token-list rules that look for indicator words (api keys,
// connection strings), and custom rules supplied by the caller.
package rules

import (
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/ajitpratap0/sleuth/pkg/errors"
)

// Confidence is the tier assigned to a rule's matches. Low-confidence
// matches are suppressed from default output at display time.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// rank orders tiers for threshold comparisons
func (c Confidence) rank() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether c meets the minimum tier
func (c Confidence) AtLeast(min Confidence) bool {
	return c.rank() >= min.rank()
}

// Kind identifies how a rule matches values
type Kind string

const (
	// KindRegex matches with a single regular expression
	KindRegex Kind = "regex"
	// KindMulti tries several regular expressions for one concept
	KindMulti Kind = "multi"
	// KindToken looks for indicator tokens with family validation
	KindToken Kind = "token"
	// KindCustom is a caller-supplied regular expression
	KindCustom Kind = "custom"
)

// Rule is one entry in the pattern catalog
type Rule struct {
	Name        string
	DisplayName string
	Confidence  Confidence
	Kind        Kind

	// Patterns holds the raw regex sources for regex kinds
	Patterns []string
	// Tokens holds the indicator words for token rules
	Tokens []string

	regexes []*regexp.Regexp
}

// connectionTokens and pathTokens drive the family validation in
// token matching: a connection token must co-occur with "://" or
// "jdbc:", a path token with a path separator.
var (
	connectionTokens = map[string]bool{
		"jdbc:": true, "mysql://": true, "postgresql://": true,
		"mongodb://": true, "redis://": true, "oracle://": true,
	}
	pathTokens = map[string]bool{
		"/home/": true, "/var/": true, "c:\\": true,
		"d:\\": true, "/tmp/": true, "/usr/": true,
	}
)

// Matches reports whether value triggers the rule
func (r *Rule) Matches(value string) bool {
	if r.Kind == KindToken {
		for _, token := range r.Tokens {
			if tokenMatch(value, token) {
				return true
			}
		}
		return false
	}
	for _, re := range r.regexes {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}

// FindAll returns every matched substring in line. Token rules report
// the whole line since the token only indicates that the surrounding
// value is sensitive.
func (r *Rule) FindAll(line string) []string {
	if r.Kind == KindToken {
		for _, token := range r.Tokens {
			if tokenMatch(line, token) {
				return []string{line}
			}
		}
		return nil
	}
	var found []string
	for _, re := range r.regexes {
		found = append(found, re.FindAllString(line, -1)...)
	}
	return found
}

// ShapeOK is a cheap structural check run before the rule's regexes.
// It filters values that cannot possibly match, which matters on the
// streaming path where every cell passes through here.
func (r *Rule) ShapeOK(value string) bool {
	switch r.Name {
	case "credit_card":
		// Rune count, not bytes: the en dash separator is multibyte
		n := utf8.RuneCountInString(value)
		if n < 13 || n > 19 {
			return false
		}
		return containsDigit(value)
	case "email":
		return len(value) >= 5 && len(value) <= 254 &&
			strings.Contains(value, "@") && strings.Contains(value, ".")
	case "ssn":
		if len(value) < 9 || len(value) > 11 {
			return false
		}
		return containsDigit(value)
	default:
		return true
	}
}

// tokenMatch checks one token against a line. A space-padded whole
// word matches outright; a plain substring only counts when the
// token's family validator confirms it, so "monkey" never triggers
// the "key" token.
func tokenMatch(line, token string) bool {
	lower := strings.ToLower(line)
	tok := strings.ToLower(token)

	if strings.Contains(" "+lower+" ", " "+tok+" ") {
		return true
	}
	if !strings.Contains(lower, tok) {
		return false
	}
	switch {
	case connectionTokens[tok]:
		return strings.Contains(lower, "://") || strings.Contains(lower, "jdbc:")
	case pathTokens[tok]:
		return strings.Contains(lower, "/") || strings.Contains(lower, "\\")
	default:
		return false
	}
}

func containsDigit(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			return true
		}
	}
	return false
}

// vnLower covers Vietnamese lowercase letters in the name patterns
const vnLower = "a-zàáạảãâầấậẩẫăằắặẳẵèéẹẻẽêềếệểễìíịỉĩòóọỏõôồốộổỗơờớợởỡùúụủũưừứựửữỳýỵỷỹđ"

// compile builds a rule's matchers. Built-in patterns are vetted, so
// compile failures panic at startup rather than surfacing per scan.
func compile(r *Rule, caseSensitive bool) *Rule {
	r.regexes = make([]*regexp.Regexp, 0, len(r.Patterns))
	for _, p := range r.Patterns {
		if !caseSensitive {
			p = "(?i)" + p
		}
		r.regexes = append(r.regexes, regexp.MustCompile(p))
	}
	return r
}

// defaultRules builds the built-in catalog. Most rules compile
// case-insensitively; person and company names stay case-sensitive
// because capitalization is the signal being matched.
func defaultRules() []*Rule {
	return []*Rule{
		compile(&Rule{
			Name:        "email",
			DisplayName: "Email Address",
			Confidence:  ConfidenceHigh,
			Kind:        KindRegex,
			Patterns:    []string{`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`},
		}, false),
		compile(&Rule{
			Name:        "phone",
			DisplayName: "Phone Number",
			Confidence:  ConfidenceMedium,
			Kind:        KindRegex,
			Patterns:    []string{`\b(?:\+\d{1,3}\s?)?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}\b`},
		}, false),
		compile(&Rule{
			Name:        "ssn",
			DisplayName: "Social Security Number",
			Confidence:  ConfidenceHigh,
			Kind:        KindRegex,
			Patterns:    []string{`\b\d{3}[-\s]?\d{2}[-\s]?\d{4}\b`},
		}, false),
		compile(&Rule{
			Name:        "credit_card",
			DisplayName: "Credit Card Number",
			Confidence:  ConfidenceHigh,
			Kind:        KindRegex,
			// Visa, MasterCard, AmEx and Discover, separated or solid
			Patterns: []string{`\b(` +
				`4\d{3}(?:[\s.\-_\x{2013}]?\d{4}){3}` +
				`|4\d{15}` +
				`|5[1-5]\d{2}(?:[\s.\-_\x{2013}]?\d{4}){3}` +
				`|5[1-5]\d{14}` +
				`|3[47]\d{2}[\s.\-_\x{2013}]?\d{6}[\s.\-_\x{2013}]?\d{5}` +
				`|3[47]\d{13}` +
				`|6011(?:[\s.\-_\x{2013}]?\d{4}){3}` +
				`|6011\d{12}` +
				`)\b`},
		}, false),
		compile(&Rule{
			Name:        "credit_card_masked",
			DisplayName: "Masked Credit Card Number",
			Confidence:  ConfidenceHigh,
			Kind:        KindRegex,
			Patterns:    []string{`\b\d{4}[-\s]?[*X]{4,8}[-\s]?\d{4}\b`},
		}, false),
		compile(&Rule{
			Name:        "ipv4",
			DisplayName: "IPv4 Address",
			Confidence:  ConfidenceMedium,
			Kind:        KindRegex,
			Patterns:    []string{`\b(?:\d{1,3}\.){3}\d{1,3}\b`},
		}, false),
		compile(&Rule{
			Name:        "ipv6",
			DisplayName: "IPv6 Address",
			Confidence:  ConfidenceMedium,
			Kind:        KindRegex,
			Patterns:    []string{`\b(?:[A-F0-9]{1,4}:){7}[A-F0-9]{1,4}\b`},
		}, false),
		compile(&Rule{
			Name:        "url",
			DisplayName: "URL",
			Confidence:  ConfidenceMedium,
			Kind:        KindRegex,
			Patterns:    []string{`https?://(?:[-\w.]|(?:%[\da-fA-F]{2}))+`},
		}, false),
		compile(&Rule{
			Name:        "mac",
			DisplayName: "MAC Address",
			Confidence:  ConfidenceMedium,
			Kind:        KindRegex,
			Patterns:    []string{`\b(?:[0-9A-Fa-f]{2}[:-]){5}(?:[0-9A-Fa-f]{2})\b`},
		}, false),
		compile(&Rule{
			Name:        "date",
			DisplayName: "Date",
			Confidence:  ConfidenceLow,
			Kind:        KindRegex,
			Patterns:    []string{`\b\d{4}[-/]\d{1,2}[-/]\d{1,2}\b`},
		}, false),
		compile(&Rule{
			Name:        "time",
			DisplayName: "Time",
			Confidence:  ConfidenceLow,
			Kind:        KindRegex,
			Patterns:    []string{`\b\d{1,2}:\d{2}(?::\d{2})?(?:\s?[AP]M)?\b`},
		}, false),
		compile(&Rule{
			Name:        "person_name",
			DisplayName: "Person Name",
			Confidence:  ConfidenceMedium,
			Kind:        KindMulti,
			Patterns: []string{
				// Vietnamese names
				`\b[A-Z][` + vnLower + `]+ [A-Z][` + vnLower + `]+\b`,
				// English names, First Last
				`\b[A-Z][a-z]+ [A-Z][a-z]+\b`,
				// English names, First M. Last
				`\b[A-Z][a-z]+ [A-Z]\. [A-Z][a-z]+\b`,
				// English names, First Middle Last
				`\b[A-Z][a-z]+ [A-Z][a-z]+ [A-Z][a-z]+\b`,
				// Names with titles
				`\b(?:Mr\.|Mrs\.|Ms\.|Dr\.|Prof\.)\s+[A-Z][` + vnLower + `]+ [A-Z][` + vnLower + `]+\b`,
				// Names with suffixes
				`\b[A-Z][` + vnLower + `]+ [A-Z][` + vnLower + `]+ (?:Jr\.|Sr\.|III|IV)\b`,
			},
		}, true),
		compile(&Rule{
			Name:        "company_name",
			DisplayName: "Company Name",
			Confidence:  ConfidenceLow,
			Kind:        KindMulti,
			Patterns: []string{
				`\b[A-Z][a-zA-Z\s&.,'-]+(?:Inc\.|Corp\.|LLC|Ltd\.|Company|Co\.)\b`,
				`\b[A-Z][a-zA-Z\s&.,'-]+(?:Technologies|Technology|Systems|Solutions|Services)\b`,
			},
		}, true),
		{
			Name:        "api_key",
			DisplayName: "API Key",
			Confidence:  ConfidenceHigh,
			Kind:        KindToken,
			Tokens:      []string{"api", "key", "secret", "token", "auth", "password", "pwd"},
		},
		{
			Name:        "connection_string",
			DisplayName: "Database Connection String",
			Confidence:  ConfidenceHigh,
			Kind:        KindToken,
			Tokens:      []string{"jdbc:", "mysql://", "postgresql://", "mongodb://", "redis://", "oracle://"},
		},
		{
			Name:        "file_path",
			DisplayName: "File Path",
			Confidence:  ConfidenceLow,
			Kind:        KindToken,
			Tokens:      []string{"/home/", "/var/", `C:\`, `D:\`, "/tmp/", "/usr/"},
		},
	}
}

// Catalog holds the rules for a run. Custom rules can be added and
// removed before scanning starts; reads during a scan are lock-free
// on the returned slices.
type Catalog struct {
	mu       sync.RWMutex
	defaults []*Rule
	customs  []*Rule
}

// NewCatalog creates a catalog with the built-in rules
func NewCatalog() *Catalog {
	return &Catalog{defaults: defaultRules()}
}

// ValidatePattern reports whether a regex source compiles
func ValidatePattern(pattern string) error {
	if _, err := regexp.Compile(pattern); err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, "invalid regex pattern").
			WithDetail("pattern", pattern)
	}
	return nil
}

// AddCustom registers a custom rule. The pattern is validated before
// being added; an invalid regex is rejected and the catalog is left
// unchanged. Re-registering a name replaces the previous rule.
func (c *Catalog) AddCustom(name, pattern, displayName string, confidence Confidence) error {
	if name == "" {
		return errors.New(errors.ErrorTypeValidation, "custom rule name is required")
	}
	if err := ValidatePattern(pattern); err != nil {
		return err
	}
	if displayName == "" {
		displayName = name
	}
	if confidence == "" {
		confidence = ConfidenceMedium
	}

	rule := compile(&Rule{
		Name:        name,
		DisplayName: displayName,
		Confidence:  confidence,
		Kind:        KindCustom,
		Patterns:    []string{pattern},
	}, false)

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.customs {
		if existing.Name == name {
			c.customs[i] = rule
			return nil
		}
	}
	c.customs = append(c.customs, rule)
	return nil
}

// RemoveCustom removes a custom rule by name. Removing an unknown
// name is a no-op.
func (c *Catalog) RemoveCustom(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, rule := range c.customs {
		if rule.Name == name {
			c.customs = append(c.customs[:i], c.customs[i+1:]...)
			return true
		}
	}
	return false
}

// Rules returns the built-in rules followed by custom rules in
// registration order.
func (c *Catalog) Rules() []*Rule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Rule, 0, len(c.defaults)+len(c.customs))
	out = append(out, c.defaults...)
	out = append(out, c.customs...)
	return out
}

// PatternOptions narrows the catalog for one run
type PatternOptions struct {
	// Only restricts the catalog to the named rules. Wins over Except.
	Only []string
	// Except removes the named rules
	Except []string
	// AdHoc is a raw regex scanned alongside the selected rules
	AdHoc string
	// AdHocName labels ad-hoc matches (default "custom")
	AdHocName string
}

// Patterns returns the rules selected by opts. Unknown names in Only
// and Except pass through silently; filtering is by exact rule name.
// An invalid ad-hoc regex is the only error case.
func (c *Catalog) Patterns(opts PatternOptions) ([]*Rule, error) {
	selected := c.Rules()

	if len(opts.Only) > 0 {
		keep := make(map[string]bool, len(opts.Only))
		for _, name := range opts.Only {
			keep[name] = true
		}
		filtered := selected[:0:0]
		for _, r := range selected {
			if keep[r.Name] {
				filtered = append(filtered, r)
			}
		}
		selected = filtered
	} else if len(opts.Except) > 0 {
		drop := make(map[string]bool, len(opts.Except))
		for _, name := range opts.Except {
			drop[name] = true
		}
		filtered := selected[:0:0]
		for _, r := range selected {
			if !drop[r.Name] {
				filtered = append(filtered, r)
			}
		}
		selected = filtered
	}

	if opts.AdHoc != "" {
		if err := ValidatePattern(opts.AdHoc); err != nil {
			return nil, err
		}
		name := opts.AdHocName
		if name == "" {
			name = "custom"
		}
		// Ad-hoc patterns run exactly as written, case included
		selected = append(selected, compile(&Rule{
			Name:        name,
			DisplayName: "Custom Pattern",
			Confidence:  ConfidenceMedium,
			Kind:        KindCustom,
			Patterns:    []string{opts.AdHoc},
		}, true))
	}

	return selected, nil
}
