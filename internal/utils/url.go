package utils

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

const (
	syftScheme    = "syft"
	appDataDir    = "app_data"
	rpcDir        = "rpc"
	pathSeparator = "/"
)

// IsValidURL reports whether s parses as an absolute http(s) URL.
func IsValidURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ValidateURL is the error-returning form of IsValidURL.
func ValidateURL(s string) error {
	if !IsValidURL(s) {
		return fmt.Errorf("invalid url %q", s)
	}
	return nil
}

// SyftBoxURL is a parsed syft:// URL. The canonical form is
// syft://<datasite>/app_data/<app>/rpc/<endpoint>[?k=v].
type SyftBoxURL struct {
	Datasite    string `json:"datasite"`
	AppName     string `json:"app_name"`
	Endpoint    string `json:"endpoint"`
	queryParams map[string]string
}

func NewSyftBoxURL(datasite, appName, endpoint string) (*SyftBoxURL, error) {
	u := &SyftBoxURL{
		Datasite: datasite,
		AppName:  appName,
		Endpoint: endpoint,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// FromSyftURL parses a syft:// URL string.
func FromSyftURL(rawURL string) (*SyftBoxURL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse syft url: %w", err)
	}
	if parsed.Scheme != syftScheme {
		return nil, fmt.Errorf("invalid scheme: expected %q, got %q", syftScheme, parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("invalid syft url: missing datasite")
	}

	parts := splitPath(parsed.Path)
	if len(parts) < 4 {
		return nil, fmt.Errorf("invalid syft url path: expected 'app_data/<app>/rpc/<endpoint>'")
	}
	if parts[0] != appDataDir {
		return nil, fmt.Errorf("invalid syft url path: expected %q segment, got %q", appDataDir, parts[0])
	}
	if parts[2] != rpcDir {
		return nil, fmt.Errorf("invalid syft url path: expected %q segment, got %q", rpcDir, parts[2])
	}

	u, err := NewSyftBoxURL(parsed.Host, parts[1], strings.Join(parts[3:], pathSeparator))
	if err != nil {
		return nil, err
	}

	if parsed.RawQuery != "" {
		params, err := parseQueryParams(parsed.RawQuery)
		if err != nil {
			return nil, err
		}
		u.SetQueryParams(params)
	}
	return u, nil
}

func (s *SyftBoxURL) Validate() error {
	if s.Datasite == "" {
		return fmt.Errorf("syft url: datasite cannot be empty")
	}
	if s.AppName == "" {
		return fmt.Errorf("syft url: app_name cannot be empty")
	}
	if s.Endpoint == "" {
		return fmt.Errorf("syft url: endpoint cannot be empty")
	}
	if strings.ContainsAny(s.Endpoint, " ?&=") {
		return fmt.Errorf("syft url: endpoint cannot contain spaces or '?&=' characters")
	}
	return nil
}

// QueryParams returns a copy of the query parameters.
func (s *SyftBoxURL) QueryParams() map[string]string {
	result := make(map[string]string, len(s.queryParams))
	for k, v := range s.queryParams {
		result[k] = v
	}
	return result
}

func (s *SyftBoxURL) SetQueryParams(params map[string]string) {
	if params == nil {
		s.queryParams = nil
		return
	}
	s.queryParams = make(map[string]string, len(params))
	for k, v := range params {
		s.queryParams[k] = v
	}
}

func (s *SyftBoxURL) String() string {
	endpoint := strings.Trim(s.Endpoint, pathSeparator)
	base := fmt.Sprintf("%s://%s/%s/%s/%s/%s",
		syftScheme, s.Datasite, appDataDir, s.AppName, rpcDir, endpoint)

	if len(s.queryParams) > 0 {
		params := make([]string, 0, len(s.queryParams))
		for k, v := range s.queryParams {
			params = append(params, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
		base += "?" + strings.Join(params, "&")
	}
	return base
}

// ToLocalPath maps the URL onto a path relative to the datasites root.
func (s *SyftBoxURL) ToLocalPath() string {
	endpoint := strings.Trim(s.Endpoint, pathSeparator)
	return filepath.Join(s.Datasite, appDataDir, s.AppName, rpcDir, endpoint)
}

// UnmarshalText implements encoding.TextUnmarshaler so the URL binds
// directly from JSON string fields.
func (s *SyftBoxURL) UnmarshalText(text []byte) error {
	parsed, err := FromSyftURL(string(text))
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (s *SyftBoxURL) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func splitPath(p string) []string {
	parts := make([]string, 0, 4)
	for _, part := range strings.Split(strings.Trim(p, pathSeparator), pathSeparator) {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

func parseQueryParams(rawQuery string) (map[string]string, error) {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, fmt.Errorf("parse query parameters: %w", err)
	}

	params := make(map[string]string, len(values))
	for key, vals := range values {
		if strings.ContainsAny(key, " ?&=") {
			return nil, fmt.Errorf("query parameter key %q cannot contain spaces or '?&=' characters", key)
		}
		if len(vals) > 0 {
			params[key] = vals[0]
		}
	}
	return params, nil
}
