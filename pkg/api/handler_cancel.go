package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// cancelItemHandler handles POST /api/v1/items/:id/cancel.
// Cancellation is pod-local: the registry only knows items claimed by this
// pod, so 404 means "not processing here", not "does not exist". Operators
// fan the request out across pods or let orphan recovery reclaim the item.
func (s *Server) cancelItemHandler(c *echo.Context) error {
	itemID := c.Param("id")
	if itemID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "item id is required")
	}

	if s.workerPool == nil || !s.workerPool.CancelItem(itemID) {
		return echo.NewHTTPError(http.StatusNotFound, "item is not processing on this pod")
	}

	s.logger.Info("work item cancellation requested", "item_id", itemID)
	return c.JSON(http.StatusOK, &CancelResponse{
		ItemID:  itemID,
		Message: "Item cancellation requested",
	})
}
