// Package segmenter splits extracted paper text into (heading, body) sections.
//
// Heading detection is a list of matchers tried in order; the first one that
// accepts a line wins. The default list recognises numbered headings such as
// "2.1. Model Details" anywhere in the text, and a fixed vocabulary of keyword
// headings ("Introduction", "Results", ...) only while no section is open.
package segmenter

import (
	"regexp"
	"sort"
	"strings"

	"github.com/xhad/paperqa/internal/models"
)

// PreambleHeading names the section holding text that precedes the first heading.
const PreambleHeading = "Preamble"

// DefaultKeywords is the keyword heading vocabulary.
var DefaultKeywords = []string{
	"Introduction",
	"Related Work",
	"Background",
	"Methodology",
	"Method",
	"Model",
	"Approach",
	"Experiments",
	"Results",
	"Discussion",
	"Conclusion",
	"References",
}

// Matcher decides whether a line opens a new section. open reports whether a
// section is currently being accumulated. On a match it returns the heading
// and any text on the same line that belongs to the body.
type Matcher interface {
	Match(line string, open bool) (heading, rest string, ok bool)
}

// MatcherFunc adapts a function to the Matcher interface.
type MatcherFunc func(line string, open bool) (string, string, bool)

func (f MatcherFunc) Match(line string, open bool) (string, string, bool) {
	return f(line, open)
}

var numberedHeading = regexp.MustCompile(`^\s*([1-9][0-9]*(?:\.[1-9][0-9]*)*)\.\s+([A-Z][A-Za-z0-9\- ]*?)\s*$`)

// NumberedMatcher matches "N[.N...]. Title" headings. The leading digit must be
// 1-9, so fractional values like "0.05" never match.
func NumberedMatcher() Matcher {
	return MatcherFunc(func(line string, _ bool) (string, string, bool) {
		m := numberedHeading.FindStringSubmatch(line)
		if m == nil {
			return "", "", false
		}
		return m[1] + ". " + m[2], "", true
	})
}

// KeywordMatcher matches lines beginning, case-insensitively, with one of the
// keywords. The rest of the first word stays in the heading, so "Methods" and
// "Conclusions" match "Method" and "Conclusion". It only fires while no
// section is open.
func KeywordMatcher(keywords ...string) Matcher {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	alts := make([]string, len(keywords))
	for i, k := range keywords {
		alts[i] = regexp.QuoteMeta(k)
	}
	// Longest first: RE2 alternation prefers the leftmost branch.
	sort.SliceStable(alts, func(i, j int) bool { return len(alts[i]) > len(alts[j]) })
	re := regexp.MustCompile(`(?i)^\s*(` + strings.Join(alts, "|") + `)(\S*)(.*)$`)

	return MatcherFunc(func(line string, open bool) (string, string, bool) {
		if open {
			return "", "", false
		}
		m := re.FindStringSubmatch(line)
		if m == nil {
			return "", "", false
		}
		return strings.TrimRight(m[1]+m[2], ".:"), strings.TrimSpace(m[3]), true
	})
}

// RegexpMatcher matches lines against re and uses the first capture group, or
// the whole trimmed line when re has no groups, as the heading.
func RegexpMatcher(re *regexp.Regexp) Matcher {
	return MatcherFunc(func(line string, _ bool) (string, string, bool) {
		m := re.FindStringSubmatch(line)
		if m == nil {
			return "", "", false
		}
		if len(m) > 1 {
			return strings.TrimSpace(m[1]), "", true
		}
		return strings.TrimSpace(line), "", true
	})
}

type Option func(*Segmenter)

// WithMatchers replaces the default matcher list.
func WithMatchers(matchers ...Matcher) Option {
	return func(s *Segmenter) { s.matchers = matchers }
}

// WithPreamble keeps text before the first heading as a PreambleHeading section.
func WithPreamble(keep bool) Option {
	return func(s *Segmenter) { s.keepPreamble = keep }
}

type Segmenter struct {
	matchers     []Matcher
	keepPreamble bool
}

func New(opts ...Option) *Segmenter {
	s := &Segmenter{
		matchers: []Matcher{NumberedMatcher(), KeywordMatcher()},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Segment scans the pages in order and returns the detected sections. A text
// without recognisable headings yields no sections.
func (s *Segmenter) Segment(pages []models.Page) []models.Section {
	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = p.Text
	}
	return s.SegmentText(strings.Join(texts, "\n"))
}

func (s *Segmenter) SegmentText(text string) []models.Section {
	var (
		sections []models.Section
		heading  string
		body     []string
		open     bool
		preamble []string
	)

	closeSection := func() {
		if open {
			sections = append(sections, models.Section{
				Heading: heading,
				Body:    strings.TrimSpace(strings.Join(body, "\n")),
			})
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if h, rest, ok := s.match(line, open); ok {
			closeSection()
			heading, body, open = h, nil, true
			if rest != "" {
				body = append(body, rest)
			}
			continue
		}
		if open {
			body = append(body, line)
		} else {
			preamble = append(preamble, line)
		}
	}
	closeSection()

	if s.keepPreamble {
		if p := strings.TrimSpace(strings.Join(preamble, "\n")); p != "" {
			sections = append([]models.Section{{Heading: PreambleHeading, Body: p}}, sections...)
		}
	}

	return sections
}

func (s *Segmenter) match(line string, open bool) (string, string, bool) {
	for _, m := range s.matchers {
		if h, rest, ok := m.Match(line, open); ok {
			return h, rest, true
		}
	}
	return "", "", false
}
