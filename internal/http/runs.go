package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AutumnsGrove/FableParser/internal/entities"
)

// RunStore provides read access to persisted run history.
type RunStore interface {
	RecentRuns(limit int) ([]entities.Run, error)
	GetRunByUUID(uuid string) (*entities.Run, error)
}

// RunsController serves processing run history.
type RunsController struct {
	store RunStore
}

func NewRunsController(store RunStore) *RunsController {
	return &RunsController{store: store}
}

// ListRuns handles GET /api/runs
func (rc *RunsController) ListRuns(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			respondBadRequest(c, "limit must be between 1 and 200")
			return
		}
		limit = parsed
	}

	runs, err := rc.store.RecentRuns(limit)
	if err != nil {
		respondInternalError(c, err, "list runs")
		return
	}

	c.IndentedJSON(http.StatusOK, gin.H{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun handles GET /api/runs/:uuid
func (rc *RunsController) GetRun(c *gin.Context) {
	uuid := c.Param("uuid")
	if uuid == "" {
		respondBadRequest(c, "run uuid is required")
		return
	}

	run, err := rc.store.GetRunByUUID(uuid)
	if err != nil {
		respondInternalError(c, err, "get run")
		return
	}
	if run == nil {
		respondNotFound(c, "run")
		return
	}

	c.IndentedJSON(http.StatusOK, run)
}
