package syftsdk

import (
	"fmt"
	"runtime"
	"time"

	"github.com/imroc/req/v3"
	"github.com/openmined/syftbox-client/internal/utils"
	"github.com/openmined/syftbox-client/internal/version"
)

const (
	HeaderUserAgent    = "User-Agent"
	HeaderSyftVersion  = "X-Syft-Version"
	HeaderSyftUser     = "X-Syft-User"
	HeaderSyftDeviceId = "X-Syft-Device-Id"
)

var SyftBoxUserAgent = fmt.Sprintf("SyftBox/%s (%s; %s; %s)", version.Version, version.Revision, hostPlatform(), runtime.GOARCH)

// HTTPClient is a bare client for presigned URL transfers. Presigned
// requests must not carry auth headers, so it is separate from the SDK's
// common client.
var HTTPClient = req.C().
	SetCommonRetryCount(3).
	SetCommonRetryFixedInterval(1*time.Second).
	SetUserAgent(SyftBoxUserAgent).
	SetCommonHeader(HeaderSyftVersion, version.Version).
	SetCommonHeader(HeaderSyftDeviceId, utils.HWID).
	SetJsonMarshal(jsonMarshal).
	SetJsonUnmarshal(jsonUnmarshal)

// countingRoundTrip wraps the transport to feed the byte counters on every
// request and response that flows through the SDK client.
func countingRoundTrip(stats *httpStats) req.RoundTripWrapperFunc {
	return func(rt req.RoundTripper) req.RoundTripFunc {
		return func(r *req.Request) (*req.Response, error) {
			resp, err := rt.RoundTrip(r)
			if err != nil {
				stats.setLastError(err)
				return resp, err
			}
			if raw := r.RawRequest; raw != nil && raw.ContentLength > 0 {
				stats.onSend(int(raw.ContentLength))
			}
			if resp.Response != nil && resp.Body != nil {
				resp.Body = wrapCounting(resp.Body, stats.onRecv)
			}
			return resp, err
		}
	}
}
