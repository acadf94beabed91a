package services

import (
	"encoding/json"
	"fmt"

	"sweetshop/internal/metrics"
	"sweetshop/internal/models"

	"github.com/rs/zerolog"
)

// StockAlerter watches purchase events and warns when a sweet runs low.
type StockAlerter struct {
	threshold int
	metrics   *metrics.Metrics
	log       *zerolog.Logger
}

// NewStockAlerter creates a StockAlerter firing at or below threshold units.
func NewStockAlerter(threshold int, m *metrics.Metrics, log *zerolog.Logger) *StockAlerter {
	return &StockAlerter{
		threshold: threshold,
		metrics:   m,
		log:       log,
	}
}

// HandleEvent processes one inventory event. Events other than purchases
// are acknowledged and ignored.
func (a *StockAlerter) HandleEvent(routingKey string, body []byte) error {
	if routingKey != models.EventSweetPurchased {
		return nil
	}

	var event models.SweetEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("failed to decode %s event: %w", routingKey, err)
	}

	if event.Quantity <= a.threshold {
		a.metrics.ObserveLowStock()
		a.log.Warn().
			Str("sweet_id", event.SweetID).
			Str("sweet", event.Name).
			Int("quantity", event.Quantity).
			Int("threshold", a.threshold).
			Msg("sweet is running low on stock")
	}
	return nil
}
