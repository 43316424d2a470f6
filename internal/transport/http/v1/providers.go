package v1

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/persona/internal/domain"
)

// ListProviders lists registered providers and their models.
// GET /v1/providers
func (h *Handler) ListProviders(c echo.Context) error {
	resp := map[string]interface{}{
		"providers": h.providers.Infos(),
	}
	if p, ok := h.providers.Default(); ok {
		resp["default"] = p.Name()
	}
	return c.JSON(http.StatusOK, resp)
}

// SetVariable sets a global template variable.
// PUT /v1/variables/:key
func (h *Handler) SetVariable(c echo.Context) error {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		return badRequest(c, "key is required")
	}
	var req domain.SetVariableRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	h.service.SetVariable(key, req.Value)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"variables": h.service.Variables(),
	})
}
