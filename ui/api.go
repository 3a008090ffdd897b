package ui

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"llmusic/app/classify"
	"llmusic/internal"
	"llmusic/internal/errors"
	"llmusic/ports"
	"llmusic/ui/middleware"
)

func newAPI(repo ports.ResultRepository, logger *internal.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	h := &apiHandler{repo: repo, logger: logger}
	api := router.Group("/api")
	api.GET("/runs", h.listRuns)

	run := api.Group("/runs/:id", middleware.LoadRun(repo))
	run.GET("", h.getRun)
	run.GET("/results", h.listResults)
	run.GET("/summary", h.summary)
	return router
}

type apiHandler struct {
	repo   ports.ResultRepository
	logger *internal.Logger
}

func (h *apiHandler) listRuns(c *gin.Context) {
	runs, err := h.repo.ListRuns(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list runs: %v", err)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	if runs == nil {
		runs = []*ports.RunInfo{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (h *apiHandler) getRun(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.RunFrom(c))
}

// listResults returns the stored rows of a run; ?positive=1 keeps only the
// positive ones.
func (h *apiHandler) listResults(c *gin.Context) {
	run := middleware.RunFrom(c)
	recs, err := h.repo.ListRecords(c.Request.Context(), run.ID)
	if err != nil {
		h.logger.Error("failed to list results of run %s: %v", run.ID, err)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	out := make([]*ports.StoredRecord, 0, len(recs))
	onlyPositive := c.Query("positive") == "1"
	for _, r := range recs {
		if onlyPositive && r.Positive != 1 {
			continue
		}
		out = append(out, r)
	}
	c.JSON(http.StatusOK, gin.H{"run_id": run.ID, "count": len(out), "results": out})
}

func (h *apiHandler) summary(c *gin.Context) {
	run := middleware.RunFrom(c)
	records, err := classify.LoadCompleted(c.Request.Context(), h.repo, run.ID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	s := classify.Summarize(records)
	c.JSON(http.StatusOK, gin.H{
		"run_id":        run.ID,
		"records":       s.Records,
		"positive":      s.Positive,
		"by_confidence": s.ByConfidence,
		"topics":        s.Ranked(),
	})
}

func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
