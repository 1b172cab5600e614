package aclspec

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRuleSet(t *testing.T) {
	// Test creating a new RuleSet with basic configuration
	rule1 := NewRule("*.txt", PublicReadAccess(), DefaultLimits())
	rule2 := NewRule("*.md", PrivateAccess(), DefaultLimits())

	ruleset := NewRuleSet("test/path", Terminal, rule1, rule2)

	assert.Equal(t, "test/path", ruleset.Path)
	assert.True(t, ruleset.Terminal)
	assert.Len(t, ruleset.Rules, 2)
	assert.Contains(t, ruleset.AllRules(), rule1)
	assert.Contains(t, ruleset.AllRules(), rule2)
}

func TestNewRuleSetStripsACLFileName(t *testing.T) {
	// The constructor normalizes paths by removing the ACL filename
	ruleset := NewRuleSet("test/path/syft.pub.yaml", NotTerminal)
	assert.Equal(t, "test/path/", ruleset.Path)
}

func TestLoadFromReader(t *testing.T) {
	yamlContent := `
terminal: true
rules:
  - pattern: "*.txt"
    access:
      read: ["*"]
  - pattern: "private/*"
    access:
      read: ["admin@example.com"]
      write: ["admin@example.com"]
`

	ruleset, err := LoadFromReader("test/path", strings.NewReader(yamlContent))
	require.NoError(t, err)

	assert.Equal(t, "test/path", ruleset.Path)
	assert.True(t, ruleset.Terminal)

	// 2 explicit rules plus the injected catch-all default
	require.Len(t, ruleset.Rules, 3)

	rule1 := ruleset.Rules[0]
	assert.Equal(t, "*.txt", rule1.Pattern)
	assert.True(t, rule1.Access.Read.Contains(Everyone))

	rule2 := ruleset.Rules[1]
	assert.Equal(t, "private/*", rule2.Pattern)
	assert.True(t, rule2.Access.Read.Contains("admin@example.com"))
	assert.True(t, rule2.Access.Write.Contains("admin@example.com"))
}

func TestLoadFromReaderMinimalYAML(t *testing.T) {
	// A file with only a terminal flag still gets the default rule injected
	ruleset, err := LoadFromReader("test", strings.NewReader(`terminal: false`))
	require.NoError(t, err)
	assert.False(t, ruleset.Terminal)
	require.Len(t, ruleset.Rules, 1)
	assert.Equal(t, AllFiles, ruleset.Rules[0].Pattern)
}

func TestLoadFromReaderEmptyYAML(t *testing.T) {
	ruleset, err := LoadFromReader("test", strings.NewReader(""))
	require.NoError(t, err)
	assert.False(t, ruleset.Terminal)
	require.Len(t, ruleset.Rules, 1)
	assert.Equal(t, AllFiles, ruleset.Rules[0].Pattern)
}

func TestLoadFromReaderInvalidYAML(t *testing.T) {
	yamlContent := `
invalid: yaml: content:
  - missing
    proper: structure
`
	ruleset, err := LoadFromReader("test", strings.NewReader(yamlContent))
	assert.Error(t, err)
	assert.Nil(t, ruleset)
}

func TestLoadFromFile(t *testing.T) {
	tempDir := t.TempDir()
	yamlContent := `
terminal: true
rules:
  - pattern: "*.go"
    access:
      read: ["developers@company.com"]
`
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, ACLFileName), []byte(yamlContent), 0o644))

	ruleset, err := LoadFromFile(tempDir)
	require.NoError(t, err)

	assert.Equal(t, tempDir, ruleset.Path)
	assert.True(t, ruleset.Terminal)
	assert.Len(t, ruleset.Rules, 2)
}

func TestLoadFromFileNonExistent(t *testing.T) {
	ruleset, err := LoadFromFile("/path/that/does/not/exist")
	assert.Error(t, err)
	assert.Nil(t, ruleset)
}

func TestRuleSetSaveAndRoundTrip(t *testing.T) {
	// Validates the entire serialization pipeline: create -> save -> load
	tempDir := t.TempDir()

	original := NewRuleSet(tempDir, Terminal,
		NewRule("*.go", SharedReadAccess("dev1@company.com", "dev2@university.edu"), DefaultLimits()),
		NewRule("docs/*", PublicReadAccess(), DefaultLimits()),
	)
	require.NoError(t, original.Save())

	assert.FileExists(t, filepath.Join(tempDir, ACLFileName))

	loaded, err := LoadFromFile(tempDir)
	require.NoError(t, err)

	assert.Equal(t, original.Path, loaded.Path)
	assert.Equal(t, original.Terminal, loaded.Terminal)
	// loaded gets the injected default rule on top of the two originals
	require.Len(t, loaded.Rules, 3)

	var goRule, docsRule *Rule
	for _, rule := range loaded.Rules {
		switch rule.Pattern {
		case "*.go":
			goRule = rule
		case "docs/*":
			docsRule = rule
		}
	}
	require.NotNil(t, goRule)
	require.NotNil(t, docsRule)

	assert.True(t, goRule.Access.Read.Contains("dev1@company.com"))
	assert.True(t, goRule.Access.Read.Contains("dev2@university.edu"))
	assert.True(t, docsRule.Access.Read.Contains(Everyone))
	assert.NotNil(t, docsRule.Limits)
}

func TestRuleSetSaveInvalidPath(t *testing.T) {
	ruleset := NewRuleSet("/invalid/path/that/cannot/be/created", NotTerminal)
	assert.Error(t, ruleset.Save())
}

func TestSetDefaults(t *testing.T) {
	// nil rules get exactly one private catch-all
	result, err := setDefaults(&RuleSet{Path: "test"})
	require.NoError(t, err)
	require.Len(t, result.Rules, 1)
	assert.Equal(t, AllFiles, result.Rules[0].Pattern)
	assert.Equal(t, 0, result.Rules[0].Access.Read.Cardinality())

	// an existing catch-all is not duplicated
	result, err = setDefaults(&RuleSet{
		Path: "test",
		Rules: []*Rule{
			NewRule("*.txt", PublicReadAccess(), DefaultLimits()),
			NewDefaultRule(PrivateAccess(), DefaultLimits()),
		},
	})
	require.NoError(t, err)
	assert.Len(t, result.Rules, 2)

	// missing limits are filled in
	result, err = setDefaults(&RuleSet{
		Path:  "test",
		Rules: []*Rule{NewRule("*.txt", PrivateAccess(), nil)},
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultLimits(), result.Rules[0].Limits)
}

func TestSetDefaultsValidation(t *testing.T) {
	// empty patterns are rejected
	_, err := setDefaults(&RuleSet{
		Rules: []*Rule{NewRule("", PrivateAccess(), DefaultLimits())},
	})
	assert.Error(t, err)

	// nil access is rejected
	_, err = setDefaults(&RuleSet{
		Rules: []*Rule{NewRule("*.txt", nil, DefaultLimits())},
	})
	assert.Error(t, err)
}
