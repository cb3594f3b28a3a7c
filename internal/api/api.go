package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"osrs-market/internal/logging"
	"osrs-market/internal/market"
	"osrs-market/internal/models"
	"osrs-market/internal/services/alerts"
	"osrs-market/internal/services/items"
	"osrs-market/internal/services/wiki"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const fetchTimeout = 5 * time.Second

type APIHandler struct {
	db       *gorm.DB
	wiki     *wiki.Client
	catalog  *items.Catalog
	alertSvc *alerts.Service
	rankCfg  market.RankConfig
}

func SetupRoutes(r *gin.RouterGroup, db *gorm.DB, client *wiki.Client, catalog *items.Catalog, alertSvc *alerts.Service) *APIHandler {
	handler := &APIHandler{
		db:       db,
		wiki:     client,
		catalog:  catalog,
		alertSvc: alertSvc,
		rankCfg:  market.DefaultRankConfig(),
	}

	r.GET("/autocomplete", handler.Autocomplete)
	r.POST("/search", handler.SearchItem)
	r.GET("/latest/:id", handler.GetLatest)
	r.GET("/history/:id", handler.GetHistory)
	r.GET("/good-trades", handler.GetGoodTrades)
	r.GET("/good-trades/export", handler.ExportGoodTrades)

	r.POST("/alerts", handler.CreateAlert)
	r.GET("/alerts", handler.ListAlerts)
	r.POST("/alerts/:id/toggle", handler.ToggleAlert)
	r.DELETE("/alerts/:id", handler.DeleteAlert)
	r.POST("/check-alerts", handler.CheckAlerts)

	r.GET("/notifications", handler.ListNotifications)
	r.POST("/notifications/:id/read", handler.MarkNotificationRead)
	r.GET("/notifications/unread-count", handler.UnreadNotificationCount)

	return handler
}

// Autocomplete: GET /api/autocomplete?query=iro
// Short queries return an empty list rather than an error.
func (h *APIHandler) Autocomplete(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), fetchTimeout)
	defer cancel()

	suggestions, err := h.catalog.Autocomplete(ctx, c.Query("query"), 10)
	if err != nil {
		logging.Log.Error("Autocomplete failed", zap.Error(err))
		c.JSON(http.StatusOK, []string{})
		return
	}
	c.JSON(http.StatusOK, suggestions)
}

// SearchItem: POST /api/search { itemName }
func (h *APIHandler) SearchItem(c *gin.Context) {
	var req struct {
		ItemName string `json:"itemName"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ItemName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Item name is required"})
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
		logging.Log.Error("Item search failed", zap.String("name", req.ItemName), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Unable to search for items. Please try again later."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"itemNumber": strconv.Itoa(itemID),
		"itemName":   items.NormalizeName(req.ItemName),
	})
}

// GetLatest: GET /api/latest/:id
// Returns the raw sides plus derived tax/margin/ROI; the derived fields
// are null when the market is one-sided.
func (h *APIHandler) GetLatest(c *gin.Context) {
	itemID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), fetchTimeout)
	defer cancel()

	price, err := h.wiki.Latest(ctx, itemID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Unable to fetch latest market data. Please try again later."})
		return
	}

	h.sampleSnapshot(itemID, price)

	payload := gin.H{
		"high":       price.High,
		"low":        price.Low,
		"tax":        nil,
		"margin":     nil,
		"roi":        nil,
		"minutesAgo": nil,
	}
	tm, err := market.ComputeTradeMetrics(itemID, h.catalog.Name(ctx, itemID), price, time.Now())
	if err == nil {
		payload["tax"] = tm.Tax
		payload["margin"] = tm.Margin
		payload["roi"] = tm.ROIPercent
		payload["minutesAgo"] = tm.MinutesSinceTrade
	}
	c.JSON(http.StatusOK, payload)
}

// GetHistory: GET /api/history/:id
// 24h of 5-minute buckets with integer-floor averages over the present
// fields; an empty series reports zero averages, not an error.
func (h *APIHandler) GetHistory(c *gin.Context) {
	itemID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), fetchTimeout)
	defer cancel()

	series, err := h.wiki.Timeseries(ctx, itemID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Unable to fetch historical data. Please try again later."})
		return
	}

	avgHigh, _ := market.AverageHigh(series)
	avgLow, _ := market.AverageLow(series)

	chartData := make([]gin.H, 0, len(series))
	for _, p := range series {
		var label any
		if p.Timestamp > 0 {
			label = time.Unix(p.Timestamp, 0).Format("15:04")
		}
		chartData = append(chartData, gin.H{
			"timestamp":       label,
			"avgHighPrice":    p.AvgHighPrice,
			"avgLowPrice":     p.AvgLowPrice,
			"highPriceVolume": p.HighPriceVolume,
			"lowPriceVolume":  p.LowPriceVolume,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"avgHigh":   avgHigh,
		"avgLow":    avgLow,
		"chartData": chartData,
	})
}

// GetGoodTrades: GET /api/good-trades
func (h *APIHandler) GetGoodTrades(c *gin.Context) {
	trades, err := h.fetchGoodTrades(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Unable to fetch good trades data"})
		return
	}
	c.JSON(http.StatusOK, trades)
}

// ExportGoodTrades: GET /api/good-trades/export
// Same ranking as /good-trades, delivered as a spreadsheet.
func (h *APIHandler) ExportGoodTrades(c *gin.Context) {
	trades, err := h.fetchGoodTrades(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Unable to fetch good trades data"})
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Good Trades"
	f.SetSheetName("Sheet1", sheet)
	headers := []string{"Item ID", "Name", "Insta Buy", "Insta Sell", "Tax", "Margin", "ROI %", "Minutes Ago"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}
	for row, t := range trades {
		values := []any{t.ItemID, t.ItemName, t.High, t.Low, t.Tax, t.Margin, t.ROIPercent}
		if t.MinutesSinceTrade != nil {
			values = append(values, *t.MinutesSinceTrade)
		} else {
			values = append(values, "")
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	c.Header("Content-Disposition", `attachment; filename="good-trades.xlsx"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		logging.Log.Error("Failed to write good trades export", zap.Error(err))
	}
}

func (h *APIHandler) fetchGoodTrades(parent context.Context) ([]market.TradeMetrics, error) {
	ctx, cancel := context.WithTimeout(parent, 10*time.Second)
	defer cancel()

	latest, err := h.wiki.LatestAll(ctx)
	if err != nil {
		logging.Log.Error("Good trades fetch failed", zap.Error(err))
		return nil, err
	}
	nameOf := func(id int) string { return h.catalog.Name(ctx, id) }
	return market.RankGoodTrades(latest, nameOf, time.Now(), h.rankCfg), nil
}

// sampleSnapshot persists the observation so local history survives the
// upstream window. Best effort: a failed write only logs.
func (h *APIHandler) sampleSnapshot(itemID int, price wiki.PriceInfo) {
	snap := models.ItemSnapshot{
		ItemID:    itemID,
		High:      price.High,
		Low:       price.Low,
		HighTime:  price.HighTime,
		LowTime:   price.LowTime,
		CreatedAt: time.Now(),
	}
	if err := h.db.Create(&snap).Error; err != nil {
		logging.Log.Warn("Failed to store item snapshot",
			zap.Int("item_id", itemID),
			zap.Error(err),
		)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamPrices: GET /ws?id=N&interval=30s
// Pushes the item's latest computed metrics on an interval until the
// client goes away.
func (h *APIHandler) StreamPrices(c *gin.Context) {
	itemID, err := strconv.Atoi(c.Query("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid id"})
		return
	}
	interval := 30 * time.Second
	if d, err := time.ParseDuration(c.DefaultQuery("interval", "30s")); err == nil && d >= 5*time.Second {
		interval = d
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// Drain client frames so close messages are noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := h.pushLatest(conn, itemID); err != nil {
			return
		}
		select {
		case <-done:
			return
		case <-ticker.C:
		}
	}
}

func (h *APIHandler) pushLatest(conn *websocket.Conn, itemID int) error {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	price, err := h.wiki.Latest(ctx, itemID)
	if err != nil {
		// Keep the stream alive through upstream hiccups.
		return conn.WriteJSON(gin.H{"error": "upstream unavailable"})
	}
	payload := gin.H{
		"id":   itemID,
		"high": price.High,
		"low":  price.Low,
		"time": time.Now().Unix(),
	}
	if tm, err := market.ComputeTradeMetrics(itemID, h.catalog.Name(ctx, itemID), price, time.Now()); err == nil {
		payload["tax"] = tm.Tax
		payload["margin"] = tm.Margin
		payload["roi"] = tm.ROIPercent
	}
	if err := conn.WriteJSON(payload); err != nil {
		return fmt.Errorf("write price frame: %w", err)
	}
	return nil
}
