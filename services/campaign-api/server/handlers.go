package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Mutter0815/ListSync/internal/audience"
	"github.com/Mutter0815/ListSync/internal/campaign"
	"github.com/Mutter0815/ListSync/internal/listsync"
	"github.com/Mutter0815/ListSync/internal/tasks"
	"github.com/Mutter0815/ListSync/pkg/logx"
	"github.com/Mutter0815/ListSync/pkg/model"
)

type campaignAPI interface {
	Get(ctx context.Context, uid string) (campaign.Campaign, error)
}

type segmentAPI interface {
	FindSegmentByUID(ctx context.Context, uid string) (audience.Segment, error)
	SetSegmentActive(ctx context.Context, id int64, active bool) error
	DeleteSegment(ctx context.Context, id int64) error
}

type refresherAPI interface {
	Refresh(ctx context.Context, uid string) (listsync.RefreshResult, error)
}

type Handlers struct {
	Queue     tasks.Queue
	Campaigns campaignAPI
	Segments  segmentAPI
	Refresher refresherAPI
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (h *Handlers) CreateCampaign(c *gin.Context) {
	var req campaign.CreateCampaignReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	payload := req.Payload()
	payload.RequestKey = uuid.NewString()
	if err := campaign.ValidateCreate(payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.submit(c, model.TaskCampaignCreate, payload)
}

func (h *Handlers) ImportCampaigns(c *gin.Context) {
	var req campaign.ImportCampaignsReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	var payload model.CampaignImport
	if req.Since != nil {
		payload.Since = *req.Since
	}
	h.submit(c, model.TaskCampaignImport, payload)
}

func (h *Handlers) GetCampaign(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	camp, err := h.Campaigns.Get(ctx, c.Param("uid"))
	if err != nil {
		writeError(c, "get_campaign_error", err)
		return
	}
	c.JSON(http.StatusOK, camp)
}

func (h *Handlers) CreateSegment(c *gin.Context) {
	var req listsync.CreateSegmentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.submit(c, model.TaskListGenerate, req.Payload())
}

func (h *Handlers) RefreshSegment(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	res, err := h.Refresher.Refresh(ctx, c.Param("uid"))
	if err != nil {
		writeError(c, "refresh_segment_error", err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

func (h *Handlers) UpdateSegment(c *gin.Context) {
	var req listsync.UpdateSegmentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	seg, err := h.Segments.FindSegmentByUID(ctx, c.Param("uid"))
	if err != nil {
		writeError(c, "update_segment_error", err)
		return
	}
	if err := h.Segments.SetSegmentActive(ctx, seg.ID, *req.Active); err != nil {
		writeError(c, "update_segment_error", err)
		return
	}
	seg.Active = *req.Active
	c.JSON(http.StatusOK, seg)
}

func (h *Handlers) DeleteSegment(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	seg, err := h.Segments.FindSegmentByUID(ctx, c.Param("uid"))
	if err != nil {
		writeError(c, "delete_segment_error", err)
		return
	}
	if err := h.Segments.DeleteSegment(ctx, seg.ID); err != nil {
		writeError(c, "delete_segment_error", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) submit(c *gin.Context, typ model.TaskType, payload any) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	task, err := tasks.Submit(ctx, h.Queue, typ, payload, time.Time{})
	if err != nil {
		logx.L().Errorw("submit_task_error", "type", typ, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "queue unavailable"})
		return
	}
	logx.L().Infow("task_submitted", "type", typ, "task_id", task.ID)
	c.JSON(http.StatusAccepted, campaign.TaskAccepted{TaskID: task.ID})
}

func writeError(c *gin.Context, event string, err error) {
	switch {
	case errors.Is(err, campaign.ErrCampaignNotFound), errors.Is(err, audience.ErrSegmentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, audience.ErrSegmentInactive), errors.Is(err, audience.ErrSegmentInUse):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, audience.ErrInvalidSegment), errors.Is(err, campaign.ErrInvalidCampaign):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logx.L().Errorw(event, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
