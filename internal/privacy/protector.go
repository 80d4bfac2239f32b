// Package privacy detects and masks personally identifiable information
// before document text is embedded, stored, or disclosed.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Category identifies a family of sensitive values.
type Category string

const (
	CategorySSN         Category = "ssn"
	CategoryCreditCard  Category = "credit_card"
	CategoryBankAccount Category = "bank_account"
	CategoryPhone       Category = "phone"
	CategoryEmail       Category = "email"
	CategoryAddress     Category = "address"
)

// MaskedValue records one substitution performed by Mask.
type MaskedValue struct {
	Original string
	Masked   string
}

// matcher pairs a category with its pattern family. Matchers are evaluated
// independently: a value may fire under more than one category, and all
// firing categories are reported.
type matcher struct {
	category Category
	patterns []*regexp.Regexp
}

// Protector is a stateless pattern-based detector and masker for sensitive
// spans. It is safe for concurrent use.
type Protector struct {
	matchers          []matcher
	sensitiveKeywords []string
}

func compileAll(exprs ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		compiled[i] = regexp.MustCompile(`(?i)` + expr)
	}
	return compiled
}

// NewProtector creates a Protector with the fixed pattern and keyword tables.
func NewProtector() *Protector {
	return &Protector{
		matchers: []matcher{
			{CategorySSN, compileAll(
				`\b\d{3}-?\d{2}-?\d{4}\b`,
				`\b\d{9}\b`,
				`\b\d{3}\s\d{2}\s\d{4}\b`,
			)},
			{CategoryCreditCard, compileAll(
				`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`,
				`\b\d{13,19}\b`,
			)},
			{CategoryBankAccount, compileAll(
				`\b\d{8,12}\b`,
				`routing.*?\d{9}`,
			)},
			{CategoryPhone, compileAll(
				`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`,
				`\(\d{3}\)\s?\d{3}[-.]?\d{4}`,
			)},
			{CategoryEmail, compileAll(
				`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
			)},
			{CategoryAddress, compileAll(
				`\b\d+\s+[A-Za-z\s]+(?:Street|St|Avenue|Ave|Road|Rd|Drive|Dr|Lane|Ln|Boulevard|Blvd)\b`,
			)},
		},
		sensitiveKeywords: []string{
			"social security", "ssn", "social security number",
			"credit card", "card number", "bank account",
			"account number", "routing number", "phone number",
			"address", "email address", "personal information",
			"private information", "confidential", "sensitive",
		},
	}
}

// Detect scans text and returns, per category, the distinct matched values in
// a stable sorted order. Categories with no matches are absent from the map.
func (p *Protector) Detect(text string) map[Category][]string {
	found := make(map[Category][]string)
	for _, m := range p.matchers {
		seen := make(map[string]struct{})
		for _, re := range m.patterns {
			for _, match := range re.FindAllString(text, -1) {
				seen[match] = struct{}{}
			}
		}
		if len(seen) == 0 {
			continue
		}
		values := make([]string, 0, len(seen))
		for v := range seen {
			values = append(values, v)
		}
		sort.Strings(values)
		found[m.category] = values
	}
	return found
}

// Placeholder computes the deterministic mask for one matched value. The same
// original value always maps to the same placeholder within and across runs.
func Placeholder(category Category, value string) string {
	sum := sha256.Sum256([]byte(value))
	return fmt.Sprintf("[%s_MASKED_%s]", strings.ToUpper(string(category)), hex.EncodeToString(sum[:])[:8])
}

// Mask replaces every occurrence of each detected value with its placeholder
// and reports what was substituted. Substitution is literal and processed
// longest-match-first so a shorter match that is a substring of a longer one
// can never corrupt it.
func (p *Protector) Mask(text string) (string, map[Category][]MaskedValue) {
	detected := p.Detect(text)

	type pending struct {
		category Category
		value    string
	}
	var all []pending
	for category, values := range detected {
		for _, v := range values {
			all = append(all, pending{category, v})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if len(all[i].value) != len(all[j].value) {
			return len(all[i].value) > len(all[j].value)
		}
		if all[i].value != all[j].value {
			return all[i].value < all[j].value
		}
		return all[i].category < all[j].category
	})

	masked := text
	info := make(map[Category][]MaskedValue)
	for _, item := range all {
		placeholder := Placeholder(item.category, item.value)
		masked = strings.ReplaceAll(masked, item.value, placeholder)
		info[item.category] = append(info[item.category], MaskedValue{
			Original: item.value,
			Masked:   placeholder,
		})
	}
	return masked, info
}

// IsQuestionAboutSensitiveData reports whether a question asks for sensitive
// information. The check is a coarse keyword containment: over-blocking is
// acceptable, missing a paraphrase is a known risk.
func (p *Protector) IsQuestionAboutSensitiveData(question string) bool {
	q := strings.ToLower(question)
	for _, keyword := range p.sensitiveKeywords {
		if strings.Contains(q, keyword) {
			return true
		}
	}
	return false
}

// Refusal builds the human-readable refusal for a sensitive-disclosure
// request, naming the categories detected in the question itself.
func (p *Protector) Refusal(detected []Category) string {
	names := make([]string, len(detected))
	for i, c := range detected {
		names[i] = string(c)
	}
	if len(names) == 0 {
		names = []string{"personal information"}
	}

	return fmt.Sprintf(`I cannot provide sensitive information such as %s.

This information is protected for privacy and security reasons. If you need specific details from the lease documents, please ask about non-sensitive information such as:

- Lease terms and dates
- Rent amounts and payment schedules
- Property details and amenities
- Tenant and landlord responsibilities
- Maintenance procedures
- Lease renewal terms

For sensitive information, please contact the appropriate parties directly.`, strings.Join(names, ", "))
}

// DetectedCategories returns the categories present in text, in the fixed
// matcher order.
func (p *Protector) DetectedCategories(text string) []Category {
	detected := p.Detect(text)
	var categories []Category
	for _, m := range p.matchers {
		if _, ok := detected[m.category]; ok {
			categories = append(categories, m.category)
		}
	}
	return categories
}
