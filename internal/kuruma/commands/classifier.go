package commands

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// ErrEmptyInput is returned by Classify for blank input; no command is
// resolved and the caller should prompt for one.
var ErrEmptyInput = errors.New("empty input")

// regexMeta are the characters that mark a pattern as a regular expression.
const regexMeta = ".*+?^$[](){}|"

type phraseRule struct {
	Phrase  string  `yaml:"phrase"`
	Command Command `yaml:"command"`
}

type patternRule struct {
	Command Command  `yaml:"command"`
	Match   []string `yaml:"match"`
	Exclude []string `yaml:"exclude"`
}

type ruleFile struct {
	Exact      []phraseRule  `yaml:"exact"`
	AdminExact []phraseRule  `yaml:"admin_exact"`
	Whole      []phraseRule  `yaml:"whole"`
	Patterns   []patternRule `yaml:"patterns"`
}

type matcher struct {
	literal string
	re      *regexp.Regexp
}

func (m matcher) match(input string) (hit, literal bool) {
	if m.re != nil {
		return m.re.MatchString(input), false
	}
	return strings.Contains(input, m.literal), true
}

type compiledPattern struct {
	command  Command
	matchers []matcher
	exclude  []string
}

// Classifier maps free text to a Command using ordered rule tables. It is
// immutable after construction and safe for concurrent use.
type Classifier struct {
	exact      []phraseRule
	adminExact []phraseRule
	whole      []phraseRule
	patterns   []compiledPattern
}

// NewClassifier returns a Classifier using the built-in rules.
func NewClassifier() *Classifier {
	c, err := LoadRules(defaultRules)
	if err != nil {
		panic(fmt.Sprintf("commands: built-in rules are invalid: %v", err))
	}
	return c
}

// LoadRules builds a Classifier from a YAML rule document in the format of
// the built-in rules.yaml.
func LoadRules(data []byte) (*Classifier, error) {
	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	c := &Classifier{}
	var err error
	if c.exact, err = checkPhrases("exact", rf.Exact); err != nil {
		return nil, err
	}
	if c.adminExact, err = checkPhrases("admin_exact", rf.AdminExact); err != nil {
		return nil, err
	}
	if c.whole, err = checkPhrases("whole", rf.Whole); err != nil {
		return nil, err
	}

	for i, p := range rf.Patterns {
		if err := checkCommand(p.Command); err != nil {
			return nil, fmt.Errorf("patterns[%d]: %w", i, err)
		}
		cp := compiledPattern{command: p.Command}
		for _, ex := range p.Exclude {
			cp.exclude = append(cp.exclude, strings.ToLower(ex))
		}
		for _, raw := range p.Match {
			cp.matchers = append(cp.matchers, compileMatcher(raw))
		}
		c.patterns = append(c.patterns, cp)
	}
	return c, nil
}

func checkPhrases(table string, rules []phraseRule) ([]phraseRule, error) {
	out := make([]phraseRule, 0, len(rules))
	for i, r := range rules {
		if err := checkCommand(r.Command); err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", table, i, err)
		}
		phrase := strings.ToLower(strings.TrimSpace(r.Phrase))
		if phrase == "" {
			return nil, fmt.Errorf("%s[%d]: empty phrase", table, i)
		}
		out = append(out, phraseRule{Phrase: phrase, Command: r.Command})
	}
	return out, nil
}

func checkCommand(cmd Command) error {
	if _, ok := ParseCommand(string(cmd)); !ok || cmd == CmdUnknown {
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

// compileMatcher compiles regular expressions as written (case-insensitive)
// and lower-cases literals to match the normalised input.
func compileMatcher(pattern string) matcher {
	if !strings.ContainsAny(pattern, regexMeta) {
		return matcher{literal: strings.ToLower(pattern)}
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		slog.Debug("classifier: invalid pattern, matching literally", "pattern", pattern, "err", err)
		return matcher{literal: strings.ToLower(pattern)}
	}
	return matcher{re: re}
}

// Classify resolves text to a Command. admin enables the admin-only
// phrase table. Blank input returns ErrEmptyInput; anything unmatched is
// CmdUnknown.
func (c *Classifier) Classify(text string, admin bool) (Command, error) {
	input := strings.ToLower(strings.TrimSpace(text))
	if input == "" {
		return "", ErrEmptyInput
	}

	if cmd, ok := prefixMatch(c.exact, input); ok {
		return cmd, nil
	}
	if admin {
		if cmd, ok := prefixMatch(c.adminExact, input); ok {
			return cmd, nil
		}
	}
	for _, r := range c.whole {
		if input == r.Phrase {
			return r.Command, nil
		}
	}

	for _, p := range c.patterns {
		for _, m := range p.matchers {
			hit, literal := m.match(input)
			if !hit {
				continue
			}
			if literal && containsAny(input, p.exclude) {
				continue
			}
			return p.command, nil
		}
	}
	return CmdUnknown, nil
}

func prefixMatch(rules []phraseRule, input string) (Command, bool) {
	for _, r := range rules {
		if strings.HasPrefix(input, r.Phrase) {
			return r.Command, true
		}
	}
	return "", false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
