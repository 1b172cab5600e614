package aclspec

// Limits constrains what a rule's writers may store. Zero values mean
// unlimited.
type Limits struct {
	MaxFileSize   int64  `yaml:"maxFileSize,omitempty"`
	MaxFiles      uint32 `yaml:"maxFiles,omitempty"`
	AllowDirs     bool   `yaml:"allowDirs,omitempty"`
	AllowSymlinks bool   `yaml:"allowSymlinks,omitempty"`
}

func DefaultLimits() *Limits {
	return &Limits{
		MaxFileSize:   0,
		MaxFiles:      0,
		AllowDirs:     true,
		AllowSymlinks: false,
	}
}
