package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"osrs-market/internal/logging"
	"osrs-market/internal/models"
	"osrs-market/internal/services/alerts"
	"osrs-market/internal/services/items"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type createAlertRequest struct {
	UserID           uint    `json:"user_id" binding:"required"`
	ItemName         string  `json:"item_name" binding:"required"`
	AlertType        string  `json:"alert_type" binding:"required"`
	ThresholdPercent float64 `json:"threshold" binding:"required"`
}

// CreateAlert: POST /api/alerts
func (h *APIHandler) CreateAlert(c *gin.Context) {
	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields: user_id, item_name, alert_type, threshold"})
		return
	}

	if err := alerts.ValidateNew(req.ItemName, req.AlertType, req.ThresholdPercent); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), fetchTimeout)
	defer cancel()

	itemID, err := h.catalog.Resolve(ctx, req.ItemName)
	if err != nil {
		if errors.Is(err, items.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Item not found. Please check spelling and spacing."})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "Unable to resolve item. Please try again later."})
		return
	}

	var user models.User
	if err := h.db.First(&user, req.UserID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	alert := models.Alert{
		UserID:           req.UserID,
		ItemID:           itemID,
		ItemName:         items.NormalizeName(req.ItemName),
		AlertType:        req.AlertType,
		ThresholdPercent: req.ThresholdPercent,
		IsActive:         true,
		CreatedAt:        time.Now(),
	}
	if err := h.db.Create(&alert).Error; err != nil {
		logging.Log.Error("Failed to create alert", zap.Uint("user_id", req.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create alert"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Alert created successfully", "alert": alert})
}

// ListAlerts: GET /api/alerts?user_id=1
func (h *APIHandler) ListAlerts(c *gin.Context) {
	userID, err := strconv.Atoi(c.Query("user_id"))
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	var list []models.Alert
	if err := h.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&list).Error; err != nil {
		logging.Log.Error("Failed to list alerts", zap.Int("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch alerts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": list})
}

// ToggleAlert: POST /api/alerts/:id/toggle
// Flips is_active; pausing an alert keeps its baseline.
func (h *APIHandler) ToggleAlert(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
		return
	}

	var alert models.Alert
	if err := h.db.First(&alert, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	}

	alert.IsActive = !alert.IsActive
	if err := h.db.Save(&alert).Error; err != nil {
		logging.Log.Error("Failed to toggle alert", zap.Int("alert_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to toggle alert"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Alert updated", "alert": alert})
}

// DeleteAlert: DELETE /api/alerts/:id
func (h *APIHandler) DeleteAlert(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
		return
	}

	result := h.db.Delete(&models.Alert{}, id)
	if result.Error != nil {
		logging.Log.Error("Failed to delete alert", zap.Int("alert_id", id), zap.Error(result.Error))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete alert"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Alert deleted successfully"})
}

// CheckAlerts: POST /api/check-alerts { user_id }
// Runs one synchronous evaluation pass over the user's active alerts.
func (h *APIHandler) CheckAlerts(c *gin.Context) {
	var req struct {
		UserID uint `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	result, err := h.alertSvc.EvaluateUser(c.Request.Context(), req.UserID)
	if err != nil {
		logging.Log.Error("Alert check failed", zap.Uint("user_id", req.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check alerts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"checked": result.Checked, "triggered": result.Triggered})
}

// ListNotifications: GET /api/notifications?user_id=1
func (h *APIHandler) ListNotifications(c *gin.Context) {
	userID, err := strconv.Atoi(c.Query("user_id"))
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	var list []models.AlertNotification
	if err := h.db.Where("user_id = ?", userID).Order("created_at DESC").Limit(100).Find(&list).Error; err != nil {
		logging.Log.Error("Failed to list notifications", zap.Int("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

// MarkNotificationRead: POST /api/notifications/:id/read
// The only mutation notifications permit.
func (h *APIHandler) MarkNotificationRead(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}

	result := h.db.Model(&models.AlertNotification{}).Where("id = ?", id).Update("is_read", true)
	if result.Error != nil {
		logging.Log.Error("Failed to mark notification read", zap.Int("notification_id", id), zap.Error(result.Error))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark notification as read"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

// UnreadNotificationCount: GET /api/notifications/unread-count?user_id=1
func (h *APIHandler) UnreadNotificationCount(c *gin.Context) {
	userID, err := strconv.Atoi(c.Query("user_id"))
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	var count int64
	if err := h.db.Model(&models.AlertNotification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error; err != nil {
		logging.Log.Error("Failed to count unread notifications", zap.Int("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get unread count"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}
