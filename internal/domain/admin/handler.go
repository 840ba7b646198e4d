package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"flashshare/internal/domain/ipacl"
	"flashshare/internal/domain/settings"
)

type Handler struct {
	service *Service
	rules   *ipacl.Service
}

func NewHandler(service *Service, rules *ipacl.Service) *Handler {
	return &Handler{service: service, rules: rules}
}

type loginRequest struct {
	Password string `json:"password" binding:"required"`
}

// Login godoc
// @Summary Admin login
// @Tags Admin
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400,401 {object} map[string]interface{}
// @Router /admin/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "password is required"})
		return
	}

	token, err := h.service.Login(c.Request.Context(), req.Password)
	if err != nil {
		if errors.Is(err, ErrBadPassword) {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "wrong password"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"token": token}})
}

func (h *Handler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": h.service.Config(c.Request.Context())})
}

func (h *Handler) UpdateConfig(c *gin.Context) {
	var values map[string]string
	if err := c.ShouldBindJSON(&values); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid body"})
		return
	}

	if err := h.service.UpdateConfig(c.Request.Context(), values); err != nil {
		if errors.Is(err, settings.ErrUnknownKey) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "stats unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}

// Cleanup forces one reclaimer sweep and reports how many files it
// removed.
func (h *Handler) Cleanup(c *gin.Context) {
	removed, err := h.service.Cleanup(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "cleanup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"removed": removed}})
}

type resetRequest struct {
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

func (h *Handler) Reset(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "confirm_password is required"})
		return
	}

	if err := h.service.Reset(c.Request.Context(), req.ConfirmPassword); err != nil {
		if errors.Is(err, ErrBadPassword) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "wrong confirmation password"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "reset failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "old and new password are required"})
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), req.OldPassword, req.NewPassword); err != nil {
		if errors.Is(err, ErrBadPassword) {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "wrong password"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type addRuleRequest struct {
	CIDR        string `json:"cidr" binding:"required"`
	Kind        string `json:"kind" binding:"required"`
	Description string `json:"description"`
}

func (h *Handler) ListRules(c *gin.Context) {
	rules, err := h.rules.ListRules(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to list rules"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": rules})
}

func (h *Handler) AddRule(c *gin.Context) {
	var req addRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "cidr and kind are required"})
		return
	}

	rule, err := h.rules.AddRule(c.Request.Context(), req.CIDR, req.Kind, req.Description)
	if err != nil {
		if errors.Is(err, ipacl.ErrRuleExists) {
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": "rule already exists"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": rule})
}

func (h *Handler) DeleteRule(c *gin.Context) {
	id, ok := ruleID(c)
	if !ok {
		return
	}
	if err := h.rules.DeleteRule(c.Request.Context(), id); err != nil {
		if errors.Is(err, ipacl.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "rule not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) ToggleRule(c *gin.Context) {
	id, ok := ruleID(c)
	if !ok {
		return
	}
	active, err := h.rules.ToggleRule(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ipacl.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "rule not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "toggle failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"active": active}})
}

func ruleID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid rule id"})
		return 0, false
	}
	return uint(id), true
}
