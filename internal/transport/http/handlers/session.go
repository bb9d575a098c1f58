package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Vipul0052/Lifeline-v2/internal/usecase"
)

// SessionHandler exposes the session store's observable state. The companion
// apps call this once at startup to decide which screen to render.
type SessionHandler struct {
	sessions *usecase.SessionStore
}

// NewSessionHandler constructs SessionHandler.
func NewSessionHandler(sessions *usecase.SessionStore) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// RegisterRoutes wires the session endpoint onto the group.
func (h *SessionHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/session", h.State)
}

// State handles GET /api/v1/auth/session.
func (h *SessionHandler) State(c *gin.Context) {
	state := h.sessions.State()

	response := SessionResponse{
		State:   string(state.Phase()),
		Loading: state.Loading,
	}
	if state.Session != nil {
		response.User = &UserSummary{
			ID:          state.Session.UserID,
			Email:       state.Session.Email,
			DisplayName: state.Session.DisplayName,
		}
	}

	c.JSON(http.StatusOK, response)
}
