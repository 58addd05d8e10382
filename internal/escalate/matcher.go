package escalate

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"prism/internal/decide"
	"prism/internal/logging"
)

// How a match was made.
const (
	MethodKeyword    = "keyword"
	MethodClassifier = "classifier"
)

// MatchResult is the outcome of interpreting one human answer.
type MatchResult struct {
	Option        string `json:"option,omitempty"`
	Matched       bool   `json:"matched"`
	Method        string `json:"method,omitempty"`
	Clarification string `json:"clarification,omitempty"` // set when !Matched
}

// Matcher maps free-text answers onto a trigger's option set: exact
// keyword and alias hits first, then an optional classifier capability,
// then a clarification question listing the options verbatim.
type Matcher struct {
	registry   *Registry
	classifier decide.Capability // nil disables the secondary pass

	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

// NewMatcher returns a matcher over the given registry. classifier may be
// nil; unmatched answers then go straight to clarification.
func NewMatcher(registry *Registry, classifier decide.Capability) *Matcher {
	return &Matcher{
		registry:   registry,
		classifier: classifier,
		patterns:   map[string]*regexp.Regexp{},
	}
}

// Match interprets text as an answer to the given trigger. An unknown
// trigger is a programming error; an uninterpretable answer is not, it
// yields a clarification for the human instead.
func (m *Matcher) Match(ctx context.Context, trigger, text string) (MatchResult, error) {
	options, ok := m.registry.Resolve(trigger)
	if !ok {
		return MatchResult{}, fmt.Errorf("escalate: unknown trigger %q", trigger)
	}
	log := logging.New("escalate")

	if option, hit := m.keywordMatch(options, text); hit {
		return MatchResult{Option: option, Matched: true, Method: MethodKeyword}, nil
	}

	if m.classifier != nil && strings.TrimSpace(text) != "" {
		names := m.registry.OptionNames(trigger)
		resp, err := m.classifier.Decide(ctx, decide.Request{
			Topic:        "escalation_answer",
			Instructions: "Map the user's answer onto exactly one of the allowed options. Answer with the option name only.",
			Context:      map[string]string{"trigger": trigger, "answer": text},
			Schema:       names,
		})
		if err != nil {
			log.Warn("answer classifier failed, asking for clarification", "trigger", trigger, "err", err)
		} else {
			verdict := strings.ToLower(strings.TrimSpace(resp.Verdict))
			for _, name := range names {
				if verdict == name {
					return MatchResult{Option: name, Matched: true, Method: MethodClassifier}, nil
				}
			}
			log.Warn("answer classifier returned an unknown option", "trigger", trigger, "verdict", resp.Verdict)
		}
	}

	return MatchResult{Clarification: m.clarification(trigger)}, nil
}

// keywordMatch looks for whole-word occurrences of option names and
// aliases. A text that names phrases of more than one option is ambiguous
// and does not match.
func (m *Matcher) keywordMatch(options []Option, text string) (string, bool) {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return "", false
	}
	matched := ""
	for _, opt := range options {
		phrases := append([]string{opt.Name}, opt.Aliases...)
		for _, phrase := range phrases {
			if !m.containsPhrase(lower, strings.ToLower(phrase)) {
				continue
			}
			if matched != "" && matched != opt.Name {
				return "", false // ambiguous
			}
			matched = opt.Name
		}
	}
	return matched, matched != ""
}

func (m *Matcher) containsPhrase(text, phrase string) bool {
	m.mu.Lock()
	re, ok := m.patterns[phrase]
	if !ok {
		re = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`)
		m.patterns[phrase] = re
	}
	m.mu.Unlock()
	return re.MatchString(text)
}

func (m *Matcher) clarification(trigger string) string {
	names := m.registry.OptionNames(trigger)
	return fmt.Sprintf("I could not map that answer onto an option. Please answer with one of: %s.",
		strings.Join(names, ", "))
}
