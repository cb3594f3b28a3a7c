package alerts

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"osrs-market/internal/models"
)

var ErrValidation = errors.New("invalid alert")

// Outcome of evaluating one alert against a current price.
type Outcome int

const (
	// OutcomeArmed: first evaluation set the baseline; no trigger.
	OutcomeArmed Outcome = iota
	// OutcomeUnchanged: threshold not crossed; only last_checked moves.
	OutcomeUnchanged
	// OutcomeTriggered: threshold crossed; a notification was produced
	// and the baseline re-armed at the current price.
	OutcomeTriggered
)

// ValidateNew checks user-supplied alert parameters. Violations are
// surfaced to the caller, never silently defaulted.
func ValidateNew(itemName, alertType string, thresholdPercent float64) error {
	if strings.TrimSpace(itemName) == "" {
		return fmt.Errorf("%w: item name is required", ErrValidation)
	}
	switch alertType {
	case models.AlertTypeSpike, models.AlertTypeDip, models.AlertTypeFluctuation:
	default:
		return fmt.Errorf("%w: unknown alert type %q", ErrValidation, alertType)
	}
	if thresholdPercent <= 0 || thresholdPercent > 100 {
		return fmt.Errorf("%w: threshold must be in (0, 100], got %v", ErrValidation, thresholdPercent)
	}
	return nil
}

// Evaluate advances one alert's state machine given the current computed
// price. It mutates the alert in memory (baseline, timestamps) and, on a
// trigger, returns the notification to persist. The caller owns writing
// both back to the store.
func Evaluate(alert *models.Alert, current int, now time.Time) (Outcome, *models.AlertNotification) {
	alert.LastCheckedAt = &now

	if alert.BaselinePrice == nil {
		// First check after creation: arm against the current level.
		baseline := current
		alert.BaselinePrice = &baseline
		return OutcomeArmed, nil
	}

	baseline := *alert.BaselinePrice
	if baseline == 0 {
		// A zero baseline cannot anchor a percentage; re-arm instead.
		b := current
		alert.BaselinePrice = &b
		return OutcomeArmed, nil
	}

	change := (float64(current) - float64(baseline)) / float64(baseline) * 100

	triggered := false
	switch alert.AlertType {
	case models.AlertTypeSpike:
		triggered = change >= alert.ThresholdPercent
	case models.AlertTypeDip:
		triggered = change <= -alert.ThresholdPercent
	case models.AlertTypeFluctuation:
		triggered = change >= alert.ThresholdPercent || change <= -alert.ThresholdPercent
	}
	if !triggered {
		return OutcomeUnchanged, nil
	}

	oldPrice := baseline
	notification := &models.AlertNotification{
		AlertID:            alert.ID,
		UserID:             alert.UserID,
		ItemID:             alert.ItemID,
		ItemName:           alert.ItemName,
		AlertType:          alert.AlertType,
		OldPrice:           &oldPrice,
		NewPrice:           current,
		PriceChangePercent: change,
		CreatedAt:          now,
	}

	// Re-arm against the new level so the next trigger measures from here.
	rearmed := current
	alert.BaselinePrice = &rearmed
	alert.LastTriggeredAt = &now

	return OutcomeTriggered, notification
}
