package processing

import (
	"regexp"
	"strings"
	"unicode"
)

// CleaningRule is a single text transformation applied to review bodies.
type CleaningRule interface {
	Name() string
	Apply(text string) string
}

// TextCleaner applies its rules in order. Rules are pure string functions,
// so the cleaner is safe for concurrent use.
type TextCleaner struct {
	rules []CleaningRule
}

// NewTextCleaner returns a cleaner with the default rule set.
func NewTextCleaner() *TextCleaner {
	return &TextCleaner{
		rules: []CleaningRule{
			&ControlCharRule{},
			&EncodingArtifactRule{},
			&WhitespaceRule{},
		},
	}
}

// AddRule appends a custom rule after the defaults.
func (c *TextCleaner) AddRule(rule CleaningRule) {
	c.rules = append(c.rules, rule)
}

// Clean runs every rule over the text in order.
func (c *TextCleaner) Clean(text string) string {
	for _, rule := range c.rules {
		text = rule.Apply(text)
	}
	return text
}

// ControlCharRule strips non-printable characters, keeping newlines and
// tabs.
type ControlCharRule struct{}

func (r *ControlCharRule) Name() string { return "control_chars" }

func (r *ControlCharRule) Apply(text string) string {
	return strings.Map(func(c rune) rune {
		if c == '\n' || c == '\t' {
			return c
		}
		if unicode.IsControl(c) || c == unicode.ReplacementChar {
			return -1
		}
		return c
	}, text)
}

// EncodingArtifactRule replaces characters that survive the site's HTML
// rendering in decorative form with their plain equivalents.
type EncodingArtifactRule struct{}

var encodingReplacer = strings.NewReplacer(
	" ", " ",
	"‘", "'",
	"’", "'",
	"“", `"`,
	"”", `"`,
	"–", "-",
	"—", "-",
	"…", "...",
)

func (r *EncodingArtifactRule) Name() string { return "encoding_artifacts" }

func (r *EncodingArtifactRule) Apply(text string) string {
	return encodingReplacer.Replace(text)
}

// WhitespaceRule collapses runs of blank lines and spaces and trims the
// ends.
type WhitespaceRule struct{}

var (
	multiBlankRe = regexp.MustCompile(`\n{3,}`)
	multiSpaceRe = regexp.MustCompile(`[ \t]{2,}`)
)

func (r *WhitespaceRule) Name() string { return "whitespace" }

func (r *WhitespaceRule) Apply(text string) string {
	text = multiBlankRe.ReplaceAllString(text, "\n\n")
	text = multiSpaceRe.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
