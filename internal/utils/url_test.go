package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSyftURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    *SyftBoxURL
		params  map[string]string
		wantErr bool
	}{
		{
			name: "valid basic url",
			url:  "syft://user@example.com/app_data/app1/rpc/endpoint1",
			want: &SyftBoxURL{
				Datasite: "user@example.com",
				AppName:  "app1",
				Endpoint: "endpoint1",
			},
		},
		{
			name: "valid url with nested endpoint",
			url:  "syft://user@example.com/app_data/app1/rpc/endpoint1/sub/path",
			want: &SyftBoxURL{
				Datasite: "user@example.com",
				AppName:  "app1",
				Endpoint: "endpoint1/sub/path",
			},
		},
		{
			name: "valid url with query params",
			url:  "syft://user@example.com/app_data/app1/rpc/endpoint1?param1=value1&param2=value2",
			want: &SyftBoxURL{
				Datasite: "user@example.com",
				AppName:  "app1",
				Endpoint: "endpoint1",
			},
			params: map[string]string{
				"param1": "value1",
				"param2": "value2",
			},
		},
		{
			name: "encoded spaces in query param values",
			url:  "syft://user@example.com/app_data/app1/rpc/endpoint1?param1=value%20with%20spaces",
			want: &SyftBoxURL{
				Datasite: "user@example.com",
				AppName:  "app1",
				Endpoint: "endpoint1",
			},
			params: map[string]string{
				"param1": "value with spaces",
			},
		},
		{
			name: "multiple values for same key keeps first",
			url:  "syft://user@example.com/app_data/app1/rpc/endpoint1?param1=value1&param1=value2",
			want: &SyftBoxURL{
				Datasite: "user@example.com",
				AppName:  "app1",
				Endpoint: "endpoint1",
			},
			params: map[string]string{
				"param1": "value1",
			},
		},
		{
			name:    "invalid scheme",
			url:     "http://user@example.com/app_data/app1/rpc/endpoint1",
			wantErr: true,
		},
		{
			name:    "missing app_data segment",
			url:     "syft://user@example.com/wrong/app1/rpc/endpoint1",
			wantErr: true,
		},
		{
			name:    "missing rpc segment",
			url:     "syft://user@example.com/app_data/app1/wrong/endpoint1",
			wantErr: true,
		},
		{
			name:    "missing datasite",
			url:     "syft:///app_data/app1/rpc/endpoint1",
			wantErr: true,
		},
		{
			name:    "spaces in query param keys",
			url:     "syft://user@example.com/app_data/app1/rpc/endpoint1?param with spaces=value1",
			wantErr: true,
		},
		{
			name:    "empty url",
			url:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromSyftURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Datasite, got.Datasite)
			assert.Equal(t, tt.want.AppName, got.AppName)
			assert.Equal(t, tt.want.Endpoint, got.Endpoint)
			if tt.params != nil {
				assert.Equal(t, tt.params, got.QueryParams())
			}
		})
	}
}

func TestSyftBoxURL_String(t *testing.T) {
	u := &SyftBoxURL{
		Datasite: "user@example.com",
		AppName:  "app1",
		Endpoint: "endpoint1",
	}
	assert.Equal(t, "syft://user@example.com/app_data/app1/rpc/endpoint1", u.String())

	u.SetQueryParams(map[string]string{"param1": "value with spaces"})
	assert.Equal(t, "syft://user@example.com/app_data/app1/rpc/endpoint1?param1=value+with+spaces", u.String())

	u.SetQueryParams(map[string]string{"param1": "value&with&chars"})
	assert.Equal(t, "syft://user@example.com/app_data/app1/rpc/endpoint1?param1=value%26with%26chars", u.String())
}

func TestSyftBoxURL_StringRoundTrip(t *testing.T) {
	orig := "syft://user@example.com/app_data/app1/rpc/endpoint1/sub"
	u, err := FromSyftURL(orig)
	require.NoError(t, err)
	assert.Equal(t, orig, u.String())
}

func TestSyftBoxURL_ToLocalPath(t *testing.T) {
	tests := []struct {
		name string
		url  *SyftBoxURL
		want string
	}{
		{
			name: "basic path",
			url: &SyftBoxURL{
				Datasite: "user@example.com",
				AppName:  "app1",
				Endpoint: "endpoint1",
			},
			want: "user@example.com/app_data/app1/rpc/endpoint1",
		},
		{
			name: "nested endpoint",
			url: &SyftBoxURL{
				Datasite: "user@example.com",
				AppName:  "app1",
				Endpoint: "endpoint1/sub/path",
			},
			want: "user@example.com/app_data/app1/rpc/endpoint1/sub/path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.url.ToLocalPath())
		})
	}
}

func TestSyftBoxURL_Validate(t *testing.T) {
	tests := []struct {
		name    string
		url     *SyftBoxURL
		wantErr bool
	}{
		{
			name:    "valid",
			url:     &SyftBoxURL{Datasite: "user@example.com", AppName: "app1", Endpoint: "endpoint1"},
			wantErr: false,
		},
		{
			name:    "empty datasite",
			url:     &SyftBoxURL{AppName: "app1", Endpoint: "endpoint1"},
			wantErr: true,
		},
		{
			name:    "empty app name",
			url:     &SyftBoxURL{Datasite: "user@example.com", Endpoint: "endpoint1"},
			wantErr: true,
		},
		{
			name:    "empty endpoint",
			url:     &SyftBoxURL{Datasite: "user@example.com", AppName: "app1"},
			wantErr: true,
		},
		{
			name:    "endpoint with spaces",
			url:     &SyftBoxURL{Datasite: "user@example.com", AppName: "app1", Endpoint: "endpoint with spaces"},
			wantErr: true,
		},
		{
			name:    "endpoint with special chars",
			url:     &SyftBoxURL{Datasite: "user@example.com", AppName: "app1", Endpoint: "endpoint?with=chars"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.url.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSyftBoxURL_UnmarshalText(t *testing.T) {
	var u SyftBoxURL
	require.NoError(t, u.UnmarshalText([]byte("syft://user@example.com/app_data/app1/rpc/endpoint1")))
	assert.Equal(t, "user@example.com", u.Datasite)
	assert.Equal(t, "app1", u.AppName)
	assert.Equal(t, "endpoint1", u.Endpoint)

	assert.Error(t, u.UnmarshalText([]byte("http://nope")))
}
