package handlers

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Vipul0052/Lifeline-v2/internal/core/domain"
	"github.com/Vipul0052/Lifeline-v2/internal/infra/security"
	"github.com/Vipul0052/Lifeline-v2/internal/transport/http/middleware"
	"github.com/Vipul0052/Lifeline-v2/internal/usecase"
)

// AuthHandler exposes the credential endpoints consumed by the companion apps.
type AuthHandler struct {
	credentials *usecase.CredentialService
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(credentials *usecase.CredentialService) *AuthHandler {
	return &AuthHandler{credentials: credentials}
}

// RegisterRoutes wires the auth endpoints onto the group.
func (h *AuthHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/signup", h.SignUp)
	group.POST("/login", h.Login)
	group.POST("/logout", h.Logout)
	group.POST("/recover", h.Recover)
	group.PUT("/password", h.UpdatePassword)
	group.POST("/password/strength", h.PasswordStrength)
	group.GET("/me", h.Me)
}

func clientInfo(c *gin.Context) usecase.ClientInfo {
	reqCtx := middleware.GetRequestContext(c)
	return usecase.ClientInfo{
		Identifier: reqCtx.Fingerprint,
		IP:         reqCtx.IP,
		UserAgent:  reqCtx.UserAgent,
	}
}

// respondOutcome translates a failed outcome into the right status code.
// Rate-limited outcomes carry Retry-After so well-behaved clients back off.
func respondOutcome(c *gin.Context, outcome domain.AuthOutcome, failureStatus int) {
	if outcome.RateLimited {
		if outcome.RetryAfter > 0 {
			seconds := int(math.Ceil(outcome.RetryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(seconds))
		}
		failureStatus = http.StatusTooManyRequests
	}

	response := NewErrorResponse(c, outcome.Error)
	response.RateLimited = outcome.RateLimited
	response.RemainingAttempts = outcome.RemainingAttempts
	c.JSON(failureStatus, response)
}

// SignUp handles POST /api/v1/auth/signup.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	outcome := h.credentials.SignUp(c.Request.Context(), clientInfo(c), usecase.SignUpInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Name:            req.Name,
	})
	if !outcome.OK() {
		respondOutcome(c, outcome, http.StatusBadRequest)
		return
	}

	c.JSON(http.StatusCreated, SignUpResponse{
		Message: "Account created. Check your email to confirm your address.",
	})
}

// Login handles POST /api/v1/auth/login. Credential failures are 401 so the
// apps can distinguish them from malformed requests.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	outcome := h.credentials.SignIn(c.Request.Context(), clientInfo(c), req.Email, req.Password)
	if !outcome.OK() {
		respondOutcome(c, outcome, http.StatusUnauthorized)
		return
	}

	response := LoginResponse{}
	if session := h.credentials.GetUser(c.Request.Context()); session != nil {
		response.User = &UserSummary{
			ID:          session.UserID,
			Email:       session.Email,
			DisplayName: session.DisplayName,
		}
	}
	c.JSON(http.StatusOK, response)
}

// Logout handles POST /api/v1/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	outcome := h.credentials.SignOut(c.Request.Context())
	if !outcome.OK() {
		respondOutcome(c, outcome, http.StatusBadRequest)
		return
	}

	c.Status(http.StatusNoContent)
}

// Recover handles POST /api/v1/auth/recover. A successful dispatch is 202:
// the reset email is delivered out of band.
func (h *AuthHandler) Recover(c *gin.Context) {
	var req RecoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	outcome := h.credentials.ResetPassword(c.Request.Context(), clientInfo(c), req.Email)
	if !outcome.OK() {
		respondOutcome(c, outcome, http.StatusBadRequest)
		return
	}

	c.JSON(http.StatusAccepted, MessageResponse{
		Message: "If an account exists for that address, a reset email is on its way.",
	})
}

// UpdatePassword handles PUT /api/v1/auth/password.
func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	var req PasswordUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	outcome := h.credentials.UpdatePassword(c.Request.Context(), req.Password)
	if !outcome.OK() {
		respondOutcome(c, outcome, http.StatusBadRequest)
		return
	}

	c.Status(http.StatusNoContent)
}

// PasswordStrength handles POST /api/v1/auth/password/strength. The email is
// fed to the estimator so addresses reused as passwords grade as weak.
func (h *AuthHandler) PasswordStrength(c *gin.Context) {
	var req PasswordStrengthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	var userInputs []string
	if req.Email != "" {
		userInputs = append(userInputs, req.Email)
	}

	c.JSON(http.StatusOK, PasswordStrengthResponse{
		Strength: string(security.GradePassword(req.Password, userInputs...)),
	})
}

// Me handles GET /api/v1/auth/me with a one-shot provider read.
func (h *AuthHandler) Me(c *gin.Context) {
	session := h.credentials.GetUser(c.Request.Context())
	if session == nil {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "not signed in"))
		return
	}

	c.JSON(http.StatusOK, UserSummary{
		ID:          session.UserID,
		Email:       session.Email,
		DisplayName: session.DisplayName,
	})
}
