package http

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AutumnsGrove/FableParser/internal/database"
)

type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
}

type HealthController struct {
	db        *database.Database
	outputDir string
	version   string
}

func NewHealthController(db *database.Database, outputDir, version string) *HealthController {
	return &HealthController{db: db, outputDir: outputDir, version: version}
}

// Status reports liveness plus the two dependencies a run needs: the
// database and the output directory. A missing output dir stays healthy
// because the pipeline creates it on first use.
func (h *HealthController) Status(c *gin.Context) {
	checks := map[string]string{
		"database":   h.databaseCheck(),
		"output_dir": h.outputDirCheck(),
	}

	status := "healthy"
	code := http.StatusOK
	for _, result := range checks {
		if strings.HasPrefix(result, "error") {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
			break
		}
	}

	c.IndentedJSON(code, HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  checks,
	})
}

func (h *HealthController) databaseCheck() string {
	if h.db == nil {
		return "not configured"
	}
	sqlDB, err := h.db.DB.DB()
	if err != nil {
		return "error: " + err.Error()
	}
	if err := sqlDB.Ping(); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}

func (h *HealthController) outputDirCheck() string {
	if h.outputDir == "" {
		return "not configured"
	}
	info, err := os.Stat(h.outputDir)
	switch {
	case os.IsNotExist(err):
		return "missing (created on first run)"
	case err != nil:
		return "error: " + err.Error()
	case !info.IsDir():
		return "error: not a directory"
	}
	return "ok"
}
