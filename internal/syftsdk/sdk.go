package syftsdk

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/imroc/req/v3"
	"github.com/openmined/syftbox-client/internal/utils"
	"github.com/openmined/syftbox-client/internal/version"
)

// TokenUpdateCallback is invoked whenever the SDK rotates its auth tokens,
// so the caller can persist them.
type TokenUpdateCallback func(accessToken string, refreshToken string)

// SyftSDK is the client for the SyftBox server API.
type SyftSDK struct {
	config    *SyftSDKConfig
	client    *req.Client
	httpStats *httpStats

	Blob     *BlobAPI
	Datasite *DatasiteAPI
	Events   *EventsAPI

	onTokenUpdate TokenUpdateCallback
	muAuth        sync.Mutex
}

// New creates a new SDK client. It does not perform any network calls;
// call Authenticate before using authenticated endpoints.
func New(config *SyftSDKConfig) (*SyftSDK, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	stats := newHTTPStats()
	setGlobalHTTPStats(stats)

	client := req.C().
		SetBaseURL(config.BaseURL).
		SetCommonRetryCount(3).
		SetCommonRetryFixedInterval(1*time.Second).
		SetUserAgent(SyftBoxUserAgent).
		SetCommonHeader(HeaderSyftVersion, version.Version).
		SetCommonHeader(HeaderSyftUser, config.Email).
		SetCommonHeader(HeaderSyftDeviceId, utils.HWID).
		SetCommonErrorResult(&APIError{}).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal).
		WrapRoundTripFunc(countingRoundTrip(stats))

	sdk := &SyftSDK{
		config:    config,
		client:    client,
		httpStats: stats,
	}

	sdk.Blob = newBlobAPI(client)
	sdk.Datasite = newDatasiteAPI(client)
	sdk.Events = newEventsAPI(config.BaseURL, sdk.authHeader, sdk.refreshAuth)

	return sdk, nil
}

// OnTokenUpdate registers a callback fired after every token rotation.
func (s *SyftSDK) OnTokenUpdate(cb TokenUpdateCallback) {
	s.onTokenUpdate = cb
}

// Authenticate ensures the SDK holds a valid access token, refreshing it
// through the refresh token when the current one is absent or expiring.
func (s *SyftSDK) Authenticate(ctx context.Context) error {
	s.muAuth.Lock()
	defer s.muAuth.Unlock()

	if isAuthDisabled(s.config.BaseURL) {
		slog.Warn("sdk auth disabled", "server", s.config.BaseURL)
		return nil
	}

	if s.config.RefreshToken == "" {
		return ErrNoRefreshToken
	}

	if !tokenNeedsRefresh(s.config.AccessToken, s.config.Email) {
		s.applyAccessToken(s.config.AccessToken)
		return nil
	}

	tokens, err := RefreshAuthTokens(ctx, s.config.BaseURL, s.config.RefreshToken)
	if err != nil {
		return fmt.Errorf("sdk: authenticate: %w", err)
	}

	s.config.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		s.config.RefreshToken = tokens.RefreshToken
	}
	s.applyAccessToken(tokens.AccessToken)

	if s.onTokenUpdate != nil {
		s.onTokenUpdate(s.config.AccessToken, s.config.RefreshToken)
	}

	slog.Debug("sdk tokens refreshed", "user", s.config.Email)
	return nil
}

// refreshAuth clears the cached access token and re-authenticates. Used by
// the events connection after a 401.
func (s *SyftSDK) refreshAuth(ctx context.Context) error {
	s.muAuth.Lock()
	s.config.AccessToken = ""
	s.muAuth.Unlock()
	return s.Authenticate(ctx)
}

func (s *SyftSDK) applyAccessToken(token string) {
	s.client.SetCommonBearerAuthToken(token)
}

// authHeader returns the headers the events websocket should present.
func (s *SyftSDK) authHeader() http.Header {
	s.muAuth.Lock()
	token := s.config.AccessToken
	s.muAuth.Unlock()

	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	h.Set(HeaderSyftUser, s.config.Email)
	h.Set(HeaderSyftVersion, version.Version)
	h.Set(HeaderSyftDeviceId, utils.HWID)
	h.Set(HeaderUserAgent, SyftBoxUserAgent)
	return h
}

// User returns the email this SDK instance authenticates as.
func (s *SyftSDK) User() string {
	return s.config.Email
}

// HTTPStats returns a snapshot of cumulative HTTP traffic counters.
func (s *SyftSDK) HTTPStats() HTTPStatsSnapshot {
	return s.httpStats.snapshot()
}

// Close terminates all connections and cleans up resources.
func (s *SyftSDK) Close() {
	if s.Events != nil {
		s.Events.Close()
	}
}
