package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/syftbox-client/internal/client/apps"
	"github.com/openmined/syftbox-client/internal/client/datasitemgr"
)

const (
	ErrCodeListFailed      = "ERR_LIST_FAILED"
	ErrCodeInstallFailed   = "ERR_INSTALL_FAILED"
	ErrCodeUninstallFailed = "ERR_UNINSTALL_FAILED"
)

type AppHandler struct {
	mgr *datasitemgr.DatasiteManager
}

func NewAppHandler(mgr *datasitemgr.DatasiteManager) *AppHandler {
	return &AppHandler{
		mgr: mgr,
	}
}

// List returns metadata for all installed apps.
func (h *AppHandler) List(c *gin.Context) {
	ds, err := h.mgr.Get()
	if err != nil {
		c.PureJSON(http.StatusServiceUnavailable, &ControlPlaneError{
			ErrorCode: ErrCodeDatasiteNotReady,
			Error:     err.Error(),
		})
		return
	}

	installed, err := ds.GetAppManager().ListApps()
	if err != nil {
		c.PureJSON(http.StatusInternalServerError, &ControlPlaneError{
			ErrorCode: ErrCodeListFailed,
			Error:     err.Error(),
		})
		return
	}

	c.PureJSON(http.StatusOK, &AppListResponse{
		Apps: installed,
	})
}

// Install installs an app from a git repository URL.
func (h *AppHandler) Install(c *gin.Context) {
	var req AppInstallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.PureJSON(http.StatusBadRequest, &ControlPlaneError{
			ErrorCode: ErrCodeBadRequest,
			Error:     err.Error(),
		})
		return
	}

	ds, err := h.mgr.Get()
	if err != nil {
		c.PureJSON(http.StatusServiceUnavailable, &ControlPlaneError{
			ErrorCode: ErrCodeDatasiteNotReady,
			Error:     err.Error(),
		})
		return
	}

	info, err := ds.GetAppManager().InstallApp(c.Request.Context(), apps.AppInstallOpts{
		URI:    req.RepoURL,
		Branch: req.Branch,
		Tag:    req.Tag,
		Commit: req.Commit,
		UseGit: true,
		Force:  req.Force,
	})
	if err != nil {
		c.PureJSON(http.StatusInternalServerError, &ControlPlaneError{
			ErrorCode: ErrCodeInstallFailed,
			Error:     err.Error(),
		})
		return
	}

	c.PureJSON(http.StatusOK, &AppInstallResponse{
		Code: CodeOk,
		App:  info,
	})
}

// Uninstall removes an installed app by id, path or repo URL.
func (h *AppHandler) Uninstall(c *gin.Context) {
	var req AppUninstallRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.PureJSON(http.StatusBadRequest, &ControlPlaneError{
			ErrorCode: ErrCodeBadRequest,
			Error:     err.Error(),
		})
		return
	}

	ds, err := h.mgr.Get()
	if err != nil {
		c.PureJSON(http.StatusServiceUnavailable, &ControlPlaneError{
			ErrorCode: ErrCodeDatasiteNotReady,
			Error:     err.Error(),
		})
		return
	}

	if _, err := ds.GetAppManager().UninstallApp(req.AppName); err != nil {
		c.PureJSON(http.StatusInternalServerError, &ControlPlaneError{
			ErrorCode: ErrCodeUninstallFailed,
			Error:     err.Error(),
		})
		return
	}

	c.PureJSON(http.StatusOK, &ControlPlaneResponse{
		Code: CodeOk,
	})
}
