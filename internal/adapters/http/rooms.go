package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dkeye/Venue/internal/domain"
)

func (h *handlers) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.broker.Rooms()})
}

func (h *handlers) roomMembers(c *gin.Context) {
	roomID := domain.RoomID(c.Param("room"))
	members, ok := h.broker.Members(roomID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"roomId": roomID, "members": members})
}
