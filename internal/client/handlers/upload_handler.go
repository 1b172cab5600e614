package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/syftbox-client/internal/client/datasitemgr"
	"github.com/openmined/syftbox-client/internal/client/sync"
)

const (
	ErrCodeUploadNotFound = "ERR_UPLOAD_NOT_FOUND"
	ErrCodeUploadFailed   = "ERR_UPLOAD_FAILED"
)

type UploadHandler struct {
	datasiteMgr *datasitemgr.DatasiteManager
}

func NewUploadHandler(datasiteMgr *datasitemgr.DatasiteManager) *UploadHandler {
	return &UploadHandler{datasiteMgr: datasiteMgr}
}

// List returns all tracked uploads.
func (h *UploadHandler) List(c *gin.Context) {
	ds := h.datasiteMgr.GetPrimaryDatasite()
	if ds == nil {
		AbortWithError(c, http.StatusServiceUnavailable, ErrCodeDatasiteNotReady, errors.New("no active datasite"))
		return
	}

	registry := ds.GetSyncManager().Uploads()
	if registry == nil {
		AbortWithError(c, http.StatusServiceUnavailable, ErrCodeDatasiteNotReady, errors.New("upload registry not available"))
		return
	}

	uploads := registry.List()
	response := make([]UploadInfoResponse, 0, len(uploads))
	for _, u := range uploads {
		response = append(response, toUploadInfoResponse(u))
	}

	c.JSON(http.StatusOK, UploadListResponse{Uploads: response})
}

// Get returns details for one upload.
func (h *UploadHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, errors.New("upload id is required"))
		return
	}

	ds := h.datasiteMgr.GetPrimaryDatasite()
	if ds == nil {
		AbortWithError(c, http.StatusServiceUnavailable, ErrCodeDatasiteNotReady, errors.New("no active datasite"))
		return
	}

	registry := ds.GetSyncManager().Uploads()
	if registry == nil {
		AbortWithError(c, http.StatusServiceUnavailable, ErrCodeDatasiteNotReady, errors.New("upload registry not available"))
		return
	}

	info, err := registry.Get(id)
	if err != nil {
		if err == sync.ErrUploadNotFound {
			AbortWithError(c, http.StatusNotFound, ErrCodeUploadNotFound, errors.New("upload not found"))
			return
		}
		AbortWithError(c, http.StatusInternalServerError, ErrCodeUploadFailed, err)
		return
	}

	c.JSON(http.StatusOK, toUploadInfoResponse(info))
}

// Pause suspends an in-progress upload.
func (h *UploadHandler) Pause(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, errors.New("upload id is required"))
		return
	}

	ds := h.datasiteMgr.GetPrimaryDatasite()
	if ds == nil {
		AbortWithError(c, http.StatusServiceUnavailable, ErrCodeDatasiteNotReady, errors.New("no active datasite"))
		return
	}

	registry := ds.GetSyncManager().Uploads()
	if registry == nil {
		AbortWithError(c, http.StatusServiceUnavailable, ErrCodeDatasiteNotReady, errors.New("upload registry not available"))
		return
	}

	if err := registry.Pause(id); err != nil {
		if err == sync.ErrUploadNotFound {
			AbortWithError(c, http.StatusNotFound, ErrCodeUploadNotFound, errors.New("upload not found"))
			return
		}
		AbortWithError(c, http.StatusBadRequest, ErrCodeUploadFailed, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "paused"})
}

// Resume continues a paused upload and triggers a sync pass.
func (h *UploadHandler) Resume(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, errors.New("upload id is required"))
		return
	}

	ds := h.datasiteMgr.GetPrimaryDatasite()
	if ds == nil {
		AbortWithError(c, http.StatusServiceUnavailable, ErrCodeDatasiteNotReady, errors.New("no active datasite"))
		return
	}

	registry := ds.GetSyncManager().Uploads()
	if registry == nil {
		AbortWithError(c, http.StatusServiceUnavailable, ErrCodeDatasiteNotReady, errors.New("upload registry not available"))
		return
	}

	if err := registry.Resume(id); err != nil {
		if err == sync.ErrUploadNotFound {
			AbortWithError(c, http.StatusNotFound, ErrCodeUploadNotFound, errors.New("upload not found"))
			return
		}
		AbortWithError(c, http.StatusBadRequest, ErrCodeUploadFailed, err)
		return
	}

	ds.GetSyncManager().TriggerSync()

	c.JSON(http.StatusOK, gin.H{"status": "resumed"})
}

// Restart clears upload progress and starts over.
func (h *UploadHandler) Restart(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, errors.New("upload id is required"))
		return
	}

	ds := h.datasiteMgr.GetPrimaryDatasite()
	if ds == nil {
		AbortWithError(c, http.StatusServiceUnavailable, ErrCodeDatasiteNotReady, errors.New("no active datasite"))
		return
	}

	registry := ds.GetSyncManager().Uploads()
	if registry == nil {
		AbortWithError(c, http.StatusServiceUnavailable, ErrCodeDatasiteNotReady, errors.New("upload registry not available"))
		return
	}

	if err := registry.Restart(id); err != nil {
		if err == sync.ErrUploadNotFound {
			AbortWithError(c, http.StatusNotFound, ErrCodeUploadNotFound, errors.New("upload not found"))
			return
		}
		AbortWithError(c, http.StatusInternalServerError, ErrCodeUploadFailed, err)
		return
	}

	ds.GetSyncManager().TriggerSync()

	c.JSON(http.StatusOK, gin.H{"status": "restarted"})
}

// Cancel aborts and removes an upload.
func (h *UploadHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, errors.New("upload id is required"))
		return
	}

	ds := h.datasiteMgr.GetPrimaryDatasite()
	if ds == nil {
		AbortWithError(c, http.StatusServiceUnavailable, ErrCodeDatasiteNotReady, errors.New("no active datasite"))
		return
	}

	registry := ds.GetSyncManager().Uploads()
	if registry == nil {
		AbortWithError(c, http.StatusServiceUnavailable, ErrCodeDatasiteNotReady, errors.New("upload registry not available"))
		return
	}

	if err := registry.Cancel(id); err != nil {
		if err == sync.ErrUploadNotFound {
			AbortWithError(c, http.StatusNotFound, ErrCodeUploadNotFound, errors.New("upload not found"))
			return
		}
		AbortWithError(c, http.StatusInternalServerError, ErrCodeUploadFailed, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func toUploadInfoResponse(info *sync.UploadInfo) UploadInfoResponse {
	return UploadInfoResponse{
		ID:             info.ID,
		Key:            info.Key,
		LocalPath:      info.LocalPath,
		State:          string(info.State),
		Size:           info.Size,
		UploadedBytes:  info.UploadedBytes,
		PartSize:       info.PartSize,
		PartCount:      info.PartCount,
		CompletedParts: info.CompletedParts,
		Progress:       info.Progress,
		Error:          info.Error,
		StartedAt:      info.StartedAt,
		UpdatedAt:      info.UpdatedAt,
	}
}
