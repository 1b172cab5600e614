package aclspec

// Rule grants Access to every path matching the glob Pattern, subject to
// optional Limits.
type Rule struct {
	Pattern string  `yaml:"pattern"`
	Access  *Access `yaml:"access"`
	Limits  *Limits `yaml:"limits,omitempty"`
}

func NewRule(pattern string, access *Access, limits *Limits) *Rule {
	return &Rule{
		Pattern: pattern,
		Access:  access,
		Limits:  limits,
	}
}

// NewDefaultRule builds a catch-all rule with the given access.
func NewDefaultRule(access *Access, limits *Limits) *Rule {
	return NewRule(AllFiles, access, limits)
}
