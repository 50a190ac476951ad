package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Mutter0815/ListSync/docs"
	"github.com/Mutter0815/ListSync/pkg/metrics"
)

func NewHTTPServer(addr string, h *Handlers) *http.Server {
	r := gin.New()
	r.Use(gin.Recovery(), Observability())

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/docs", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", docs.CampaignSwaggerHTML)
	})
	r.GET("/docs/campaign-api/openapi.yaml", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/yaml", docs.CampaignOpenAPI)
	})

	r.POST("/campaigns", h.CreateCampaign)
	r.POST("/campaigns/import", h.ImportCampaigns)
	r.GET("/campaigns/:uid", h.GetCampaign)

	r.POST("/segments", h.CreateSegment)
	r.POST("/segments/:uid/refresh", h.RefreshSegment)
	r.PATCH("/segments/:uid", h.UpdateSegment)
	r.DELETE("/segments/:uid", h.DeleteSegment)

	return &http.Server{
		Addr:    addr,
		Handler: r,
	}
}
