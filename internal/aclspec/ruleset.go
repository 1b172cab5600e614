package aclspec

import (
	"fmt"
	"io"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// RuleSet is the parsed contents of one ACL file. Path is the directory the
// rules govern. A terminal ruleset stops rule inheritance below it.
type RuleSet struct {
	Rules    []*Rule `yaml:"rules,omitempty"`
	Terminal bool    `yaml:"terminal,omitempty"`
	Path     string  `yaml:"-"`
}

func NewRuleSet(path string, terminal bool, rules ...*Rule) *RuleSet {
	return &RuleSet{
		Path:     WithoutACLPath(path),
		Terminal: terminal,
		Rules:    rules,
	}
}

func (r *RuleSet) AllRules() []*Rule {
	return r.Rules
}

// LoadFromFile reads the ACL file at path. The path may name either the
// ACL file itself or its directory.
func LoadFromFile(path string) (*RuleSet, error) {
	fd, err := os.Open(AsACLPath(path))
	if err != nil {
		return nil, err
	}
	defer fd.Close()
	return LoadFromReader(path, fd)
}

// LoadFromReader parses YAML rules from reader. The path sets RuleSet.Path.
func LoadFromReader(path string, reader io.Reader) (*RuleSet, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	var ruleset RuleSet
	if err := yaml.Unmarshal(data, &ruleset); err != nil {
		return nil, err
	}

	ruleset.Path = WithoutACLPath(path)
	return setDefaults(&ruleset)
}

// Save writes the ruleset to its ACL file.
func (r *RuleSet) Save() error {
	file, err := os.Create(AsACLPath(r.Path))
	if err != nil {
		return fmt.Errorf("create acl file %q: %w", r.Path, err)
	}
	defer file.Close()

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(r); err != nil {
		return fmt.Errorf("encode ruleset: %w", err)
	}
	return nil
}

// setDefaults validates rules and guarantees a catch-all private rule.
func setDefaults(ruleset *RuleSet) (*RuleSet, error) {
	if ruleset.Rules == nil {
		ruleset.Rules = []*Rule{NewDefaultRule(PrivateAccess(), DefaultLimits())}
		return ruleset, nil
	}

	hasDefault := false
	for _, rule := range ruleset.Rules {
		if rule.Pattern == "" {
			return nil, fmt.Errorf("rule pattern cannot be empty")
		}
		if !doublestar.ValidatePattern(rule.Pattern) {
			return nil, fmt.Errorf("invalid rule pattern %q", rule.Pattern)
		}
		if rule.Access == nil {
			return nil, fmt.Errorf("rule access cannot be nil")
		}
		if rule.Limits == nil {
			rule.Limits = DefaultLimits()
		}
		if rule.Pattern == AllFiles {
			hasDefault = true
		}
	}

	if !hasDefault {
		ruleset.Rules = append(ruleset.Rules, NewDefaultRule(PrivateAccess(), DefaultLimits()))
	}
	return ruleset, nil
}
