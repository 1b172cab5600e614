package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openmined/syftbox-client/internal/client/datasitemgr"
	"github.com/openmined/syftbox-client/internal/version"
)

var processStartedAt = time.Now().UTC()

// StatusHandler serves daemon health and runtime metrics.
type StatusHandler struct {
	mgr *datasitemgr.DatasiteManager
}

func NewStatusHandler(mgr *datasitemgr.DatasiteManager) *StatusHandler {
	return &StatusHandler{
		mgr: mgr,
	}
}

// Status reports daemon health, datasite provisioning state and transfer
// counters. Served on GET /v1/status.
func (h *StatusHandler) Status(ctx *gin.Context) {
	// this is unlikely to happen, but just in case
	if h.mgr == nil {
		ctx.PureJSON(http.StatusServiceUnavailable, &ControlPlaneError{
			ErrorCode: ErrCodeUnknownError,
			Error:     "datasite manager not initialized",
		})
		return
	}

	dsInfo := h.mgr.Status()
	hasConfig := dsInfo.Status == datasitemgr.DatasiteStatusProvisioned

	var dsErr string
	if dsInfo.DatasiteError != nil {
		dsErr = dsInfo.DatasiteError.Error()
	}

	runtimeInfo := &RuntimeInfo{
		Client: &ClientRuntime{
			Version:   version.Version,
			StartedAt: processStartedAt.Format(time.RFC3339),
			UptimeSec: int64(time.Since(processStartedAt).Seconds()),
		},
	}

	if dsInfo.Datasite != nil {
		stats := dsInfo.Datasite.GetSDK().HTTPStats()
		runtimeInfo.HTTP = &HTTPRuntime{
			BytesSentTotal: stats.BytesSentTotal,
			BytesRecvTotal: stats.BytesRecvTotal,
			LastSentAtNs:   stats.LastSentAtNs,
			LastRecvAtNs:   stats.LastRecvAtNs,
			LastError:      stats.LastError,
		}
	}

	ctx.PureJSON(http.StatusOK, &StatusResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   version.Version,
		Revision:  version.Revision,
		BuildDate: version.BuildDate,
		HasConfig: hasConfig,
		Datasite: &DatasiteInfo{
			Status: string(dsInfo.Status),
			Error:  dsErr,
		},
		Runtime: runtimeInfo,
	})
}
