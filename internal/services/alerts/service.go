package alerts

import (
	"context"
	"fmt"
	"time"

	"osrs-market/internal/logging"
	"osrs-market/internal/market"
	"osrs-market/internal/models"
	"osrs-market/internal/services/mailer"
	"osrs-market/internal/services/wiki"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PriceFetcher is the slice of the wiki client the evaluator needs.
type PriceFetcher interface {
	Latest(ctx context.Context, itemID int) (wiki.PriceInfo, error)
}

// Service runs alert evaluation batches against the store.
type Service struct {
	db     *gorm.DB
	prices PriceFetcher
	mail   mailer.Mailer
}

func NewService(db *gorm.DB, prices PriceFetcher, mail mailer.Mailer) *Service {
	return &Service{db: db, prices: prices, mail: mail}
}

// BatchResult summarizes one evaluation pass.
type BatchResult struct {
	Checked   int `json:"checked"`
	Triggered int `json:"triggered"`
}

// EvaluateUser runs one pass over a user's active alerts, in id order,
// one blocking price fetch per alert. A failed fetch skips that alert
// only. All alert mutations and notifications commit in a single
// transaction; emails go out after the commit.
func (s *Service) EvaluateUser(ctx context.Context, userID uint) (BatchResult, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return BatchResult{}, fmt.Errorf("load user %d: %w", userID, err)
	}

	var active []models.Alert
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("id ASC").
		Find(&active).Error; err != nil {
		return BatchResult{}, fmt.Errorf("load alerts for user %d: %w", userID, err)
	}

	result, changed, notifications := runBatch(ctx, active, s.prices, time.Now())

	if len(changed) == 0 {
		return result, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, alert := range changed {
			if err := tx.Save(alert).Error; err != nil {
				return err
			}
		}
		for _, n := range notifications {
			if err := tx.Create(n).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return BatchResult{}, fmt.Errorf("commit alert batch for user %d: %w", userID, err)
	}

	if user.EmailNotificationsEnabled {
		for _, n := range notifications {
			if err := s.mail.SendAlert(user.Email, n); err != nil {
				logging.Log.Error("Failed to send alert email",
					zap.Uint("user_id", user.ID),
					zap.Uint("alert_id", n.AlertID),
					zap.Error(err),
				)
			}
		}
	}

	logging.Log.Info("Alert batch evaluated",
		zap.Uint("user_id", userID),
		zap.Int("checked", result.Checked),
		zap.Int("triggered", result.Triggered),
	)
	return result, nil
}

// runBatch walks the alerts once, fetching a price per alert and
// advancing each alert's state in memory. A failed fetch or an item with
// no price data counts as checked but leaves that alert untouched; the
// rest of the batch proceeds.
func runBatch(ctx context.Context, active []models.Alert, prices PriceFetcher, now time.Time) (BatchResult, []*models.Alert, []*models.AlertNotification) {
	var result BatchResult
	changed := make([]*models.Alert, 0, len(active))
	notifications := make([]*models.AlertNotification, 0)

	for i := range active {
		alert := &active[i]
		result.Checked++

		fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		price, err := prices.Latest(fetchCtx, alert.ItemID)
		cancel()
		if err != nil {
			logging.Log.Warn("Skipping alert, price fetch failed",
				zap.Uint("alert_id", alert.ID),
				zap.Int("item_id", alert.ItemID),
				zap.Error(err),
			)
			continue
		}

		current, ok := market.CurrentPrice(price)
		if !ok {
			logging.Log.Warn("Skipping alert, no price data for item",
				zap.Uint("alert_id", alert.ID),
				zap.Int("item_id", alert.ItemID),
			)
			continue
		}

		outcome, notification := Evaluate(alert, current, now)
		changed = append(changed, alert)
		if outcome == OutcomeTriggered {
			result.Triggered++
			notifications = append(notifications, notification)
		}
	}

	return result, changed, notifications
}

// EvaluateAll sweeps every user that has at least one active alert,
// sequentially. Used by the background daemon; batches for different
// users never interleave within one sweep.
func (s *Service) EvaluateAll(ctx context.Context) (BatchResult, error) {
	var userIDs []uint
	if err := s.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where("is_active = ?", true).
		Distinct("user_id").
		Order("user_id ASC").
		Pluck("user_id", &userIDs).Error; err != nil {
		return BatchResult{}, fmt.Errorf("list users with active alerts: %w", err)
	}

	var total BatchResult
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		result, err := s.EvaluateUser(ctx, userID)
		if err != nil {
			logging.Log.Error("Alert batch failed for user",
				zap.Uint("user_id", userID),
				zap.Error(err),
			)
			continue
		}
		total.Checked += result.Checked
		total.Triggered += result.Triggered
	}
	return total, nil
}
