package v1

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/polly/internal/probe"
	"github.com/nulzo/polly/internal/registry"
	"github.com/nulzo/polly/internal/server/validator"
	"github.com/nulzo/polly/pkg/api"
)

type ProviderHandler struct {
	registry *registry.Registry
	prober   *probe.Prober
}

func NewProviderHandler(reg *registry.Registry, prober *probe.Prober) *ProviderHandler {
	return &ProviderHandler{
		registry: reg,
		prober:   prober,
	}
}

// List returns the provider catalog for the settings UI.
func (h *ProviderHandler) List(c *gin.Context) {
	providers := h.registry.List()
	out := make([]api.ProviderInfo, 0, len(providers))
	for _, p := range providers {
		info := api.ProviderInfo{
			ID:     p.ID,
			Name:   p.Name,
			Models: make([]api.ModelInfo, 0, len(p.Models)),
		}
		for _, m := range p.Models {
			info.Models = append(info.Models, api.ModelInfo{
				ID:            m.ID,
				Name:          m.Name,
				MaxTokens:     m.MaxTokens,
				ContextWindow: m.ContextWindow,
			})
		}
		out = append(out, info)
	}
	c.JSON(http.StatusOK, out)
}

// TestProvider confirms a credential with one live call against the provider.
func (h *ProviderHandler) TestProvider(c *gin.Context) {
	var req api.ProbeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.BadRequest(validator.Message(err)))
		return
	}

	// Cheap local format check first: an obviously wrong key never leaves
	// the process.
	if _, ok := h.registry.Get(req.Provider); !ok {
		_ = c.Error(api.BadRequest("Unsupported provider"))
		return
	}
	if !h.registry.ValidateKey(req.Provider, req.APIKey) {
		_ = c.Error(api.BadRequest(fmt.Sprintf("Invalid API key format for %s", req.Provider)))
		return
	}

	outcome := h.prober.Probe(c.Request.Context(), req.Provider, req.APIKey)
	if outcome.Status != probe.StatusValid {
		_ = c.Error(api.BadRequest(outcome.Reason))
		return
	}

	c.JSON(http.StatusOK, api.ProbeResponse{
		Success: true,
		Message: fmt.Sprintf("API key is valid for %s", req.Provider),
	})
}
