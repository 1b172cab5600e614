package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/syftbox-client/internal/client/config"
	"github.com/openmined/syftbox-client/internal/client/datasitemgr"
	"github.com/openmined/syftbox-client/internal/syftsdk"
)

const (
	ErrCodeProvisionFailed = "ERR_DATASITE_PROVISION_FAILED"
	ErrRequestEmailCode    = "ERR_REQUEST_EMAIL_CODE"
	ErrCodeVerifyEmailCode = "ERR_VERIFY_EMAIL_CODE"
)

type InitHandler struct {
	mgr             *datasitemgr.DatasiteManager
	controlPlaneURL string
}

func NewInitHandler(mgr *datasitemgr.DatasiteManager, controlPlaneURL string) *InitHandler {
	return &InitHandler{
		mgr:             mgr,
		controlPlaneURL: controlPlaneURL,
	}
}

// GetToken asks the server to email a one-time login code.
func (h *InitHandler) GetToken(c *gin.Context) {
	var req GetTokenRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, &ControlPlaneError{
			ErrorCode: ErrCodeBadRequest,
			Error:     err.Error(),
		})
		return
	}

	err := syftsdk.RequestEmailCode(c.Request.Context(), req.ServerURL, req.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, &ControlPlaneError{
			ErrorCode: ErrRequestEmailCode,
			Error:     err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, &ControlPlaneResponse{
		Code: CodeOk,
	})
}

// InitDatasite verifies the emailed code and provisions the datasite.
func (h *InitHandler) InitDatasite(c *gin.Context) {
	var req InitDatasiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, &ControlPlaneError{
			ErrorCode: ErrCodeBadRequest,
			Error:     err.Error(),
		})
		return
	}

	resp, err := syftsdk.VerifyEmailCode(c.Request.Context(), req.ServerURL, &syftsdk.VerifyEmailCodeRequest{
		Email: req.Email,
		Code:  req.EmailToken,
	})
	if err != nil {
		c.JSON(http.StatusForbidden, &ControlPlaneError{
			ErrorCode: ErrCodeVerifyEmailCode,
			Error:     err.Error(),
		})
		return
	}

	// save config
	cfg := config.Config{
		DataDir:      req.DataDir,
		ServerURL:    req.ServerURL,
		ClientURL:    h.controlPlaneURL,
		Email:        req.Email,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		AppsEnabled:  true,
	}

	if err := h.mgr.Provision(&cfg); err != nil {
		c.JSON(http.StatusInternalServerError, &ControlPlaneError{
			ErrorCode: ErrCodeProvisionFailed,
			Error:     err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, &ControlPlaneResponse{
		Code: CodeOk,
	})
}
