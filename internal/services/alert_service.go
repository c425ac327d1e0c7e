package services

import (
	"context"
	"fmt"

	"finlens/internal/core"
	"finlens/internal/ports"
)

const maxAlertsListed = 50

type AlertService struct {
	store ports.AlertStore
}

func NewAlertService(store ports.AlertStore) *AlertService {
	return &AlertService{store: store}
}

// List returns up to 50 alerts, newest first.
func (s *AlertService) List(ctx context.Context, userID string, unreadOnly bool) ([]core.Alert, error) {
	alerts, err := s.store.ListAlerts(ctx, userID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	if len(alerts) > maxAlertsListed {
		alerts = alerts[:maxAlertsListed]
	}
	return alerts, nil
}

func (s *AlertService) MarkRead(ctx context.Context, userID, id string) error {
	if err := s.store.MarkAlertRead(ctx, userID, id); err != nil {
		return fmt.Errorf("mark alert %s read: %w", id, err)
	}
	return nil
}

func (s *AlertService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	n, err := s.store.MarkAllAlertsRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("mark alerts read: %w", err)
	}
	return n, nil
}
