package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/config"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/workflow"
)

// ConfigHandler exposes the effective runtime configuration read-only:
// the scan settings and the workflow phase catalog the service booted with.
type ConfigHandler struct {
	settings *config.ScanSettings
	phases   []workflow.Phase
}

func NewConfigHandler(settings *config.ScanSettings, phases []workflow.Phase) *ConfigHandler {
	return &ConfigHandler{settings: settings, phases: phases}
}

func (h *ConfigHandler) GetScanSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.settings)
}

// GetWorkflowPhases returns the phase catalog. With format=yaml the response
// is the same document a workflow.yaml override would contain.
func (h *ConfigHandler) GetWorkflowPhases(c *gin.Context) {
	if c.Query("format") == "yaml" {
		doc, err := yaml.Marshal(map[string]interface{}{"phases": h.phases})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.Data(http.StatusOK, "application/yaml", doc)
		return
	}
	c.JSON(http.StatusOK, gin.H{"phases": h.phases})
}
