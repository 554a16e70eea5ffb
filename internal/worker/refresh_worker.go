// Package worker drives periodic headless dataset refreshes so the dashboard
// stays warm without a user pressing the refresh button.
package worker

import (
	"context"
	"errors"
	"time"

	"receiptdash/internal/dashboard"
	"receiptdash/internal/log"
)

// SessionRestorer exchanges a long-lived refresh token for a bearer
// credential. Satisfied by identity.Client.
type SessionRestorer interface {
	RestoreSession(ctx context.Context, refreshToken string) (token, email string, err error)
}

type RefreshWorker struct {
	logger       *log.Logger
	controller   *dashboard.Controller
	sessions     SessionRestorer
	refreshToken string
	interval     time.Duration
}

func NewRefreshWorker(controller *dashboard.Controller, sessions SessionRestorer, refreshToken string, interval time.Duration, logger *log.Logger) *RefreshWorker {
	return &RefreshWorker{
		logger:       logger.WithComponent(log.ComponentWorker),
		controller:   controller,
		sessions:     sessions,
		refreshToken: refreshToken,
		interval:     interval,
	}
}

// Run refreshes once immediately, then on every tick until the context ends.
// Individual refresh failures are logged and retried on the next tick.
func (w *RefreshWorker) Run(ctx context.Context) error {
	if err := w.RefreshOnce(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Initial refresh failed", log.FieldError, err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.RefreshOnce(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic refresh failed", log.FieldError, err)
			}
		}
	}
}

// RefreshOnce ensures a live credential, then runs one full refresh. An
// expired session is restored once and the refresh retried.
func (w *RefreshWorker) RefreshOnce(ctx context.Context) error {
	if !w.controller.View().Authenticated {
		if err := w.restoreCredential(ctx); err != nil {
			return err
		}
	}

	err := w.controller.Refresh(ctx)
	if errors.Is(err, dashboard.ErrSessionExpired) {
		w.logger.WarnContext(ctx, "Credential expired mid-run, restoring session")
		if rerr := w.restoreCredential(ctx); rerr != nil {
			return rerr
		}
		return w.controller.Refresh(ctx)
	}
	return err
}

func (w *RefreshWorker) restoreCredential(ctx context.Context) error {
	if w.sessions == nil || w.refreshToken == "" {
		return dashboard.ErrNotAuthenticated
	}
	token, email, err := w.sessions.RestoreSession(ctx, w.refreshToken)
	if err != nil {
		return err
	}
	w.controller.SetCredential(token, email)
	w.logger.InfoContext(ctx, "Session restored", log.FieldEmail, email)
	return nil
}
