// Package middleware holds gin middleware for the results API.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"llmusic/domain/core"
	"llmusic/internal/errors"
	"llmusic/ports"
)

const runKey = "run"

// LoadRun resolves the :id parameter to a stored run and aborts with 404
// when it does not exist.
func LoadRun(repo ports.ResultRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		run, err := repo.GetRun(c.Request.Context(), core.RunID(c.Param("id")))
		if err != nil {
			status := http.StatusInternalServerError
			if errors.GetCode(err) == errors.CodeNotFound {
				status = http.StatusNotFound
			}
			c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
			return
		}
		c.Set(runKey, run)
		c.Next()
	}
}

// RunFrom returns the run stored by LoadRun.
func RunFrom(c *gin.Context) *ports.RunInfo {
	return c.MustGet(runKey).(*ports.RunInfo)
}
