package v1

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/persona/internal/domain"
)

// ListCharacters lists stored character names.
// GET /v1/characters
func (h *Handler) ListCharacters(c echo.Context) error {
	names, err := h.characters.List(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	if names == nil {
		names = []string{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"characters": names,
	})
}

// GetCharacter returns a character.
// GET /v1/characters/:name
func (h *Handler) GetCharacter(c echo.Context) error {
	name := c.Param("name")
	ch := h.characters.Load(c.Request().Context(), name)
	if ch == nil {
		return writeError(c, fmt.Errorf("%w: %s", domain.ErrCharacterNotFound, name))
	}
	return c.JSON(http.StatusOK, ch)
}

// PutCharacter creates or replaces a character. The path name wins over the body.
// PUT /v1/characters/:name
func (h *Handler) PutCharacter(c echo.Context) error {
	var ch domain.Character
	if err := c.Bind(&ch); err != nil {
		return badRequest(c, "invalid request body")
	}
	ch.Name = c.Param("name")

	ctx := c.Request().Context()
	status := http.StatusCreated
	if existing := h.characters.Reload(ctx, ch.Name); existing != nil {
		ch.CreatedAt = existing.CreatedAt
		status = http.StatusOK
		if err := h.characters.Update(ctx, &ch); err != nil {
			return writeError(c, err)
		}
	} else if err := h.characters.Save(ctx, &ch); err != nil {
		return writeError(c, err)
	}
	return c.JSON(status, ch)
}

// DeleteCharacter removes a character. Sessions keep their bound copy.
// DELETE /v1/characters/:name
func (h *Handler) DeleteCharacter(c echo.Context) error {
	name := c.Param("name")
	ok, err := h.characters.Delete(c.Request().Context(), name)
	if err != nil {
		return writeError(c, err)
	}
	if !ok {
		return writeError(c, fmt.Errorf("%w: %s", domain.ErrCharacterNotFound, name))
	}
	return c.NoContent(http.StatusNoContent)
}
