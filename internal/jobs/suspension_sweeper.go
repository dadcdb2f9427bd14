// Package jobs implements background maintenance loops. The only job today is
// the SuspensionSweeper, which lifts user suspensions whose expiry has passed.
// IsSuspended() already treats an expired suspension as inactive at read time;
// the sweeper makes the stored status catch up so list filters and dashboards
// see the truth without re-deriving it per row.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/openride/openride/internal/db/models"
	"github.com/openride/openride/internal/db/repositories"
)

// Recorder is the audit write dependency. Satisfied by *audit.Recorder.
type Recorder interface {
	LogAction(ctx context.Context, record *models.AuditLog) (string, error)
}

// SuspensionSweeper periodically reactivates users whose timed suspension has
// expired, recording each reinstatement in the audit trail.
type SuspensionSweeper struct {
	userRepo *repositories.UserRepository
	recorder Recorder
	interval time.Duration
	stopChan chan struct{}
}

// NewSuspensionSweeper creates a new SuspensionSweeper.
// intervalMinutes controls how often the sweep runs (default 15m).
func NewSuspensionSweeper(userRepo *repositories.UserRepository, recorder Recorder, intervalMinutes int) *SuspensionSweeper {
	if intervalMinutes <= 0 {
		intervalMinutes = 15
	}
	return &SuspensionSweeper{
		userRepo: userRepo,
		recorder: recorder,
		interval: time.Duration(intervalMinutes) * time.Minute,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background sweep loop. It runs an initial sweep
// immediately, then repeats on the configured interval. The loop exits when
// ctx is cancelled or Stop() is called.
func (s *SuspensionSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("suspension sweeper started", "interval", s.interval)

	s.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.runSweep(ctx)
		case <-s.stopChan:
			slog.Info("suspension sweeper stopped")
			return
		case <-ctx.Done():
			slog.Info("suspension sweeper context cancelled")
			return
		}
	}
}

// Stop signals the background loop to exit.
func (s *SuspensionSweeper) Stop() {
	close(s.stopChan)
}

// runSweep reactivates every user whose suspension expiry has passed.
func (s *SuspensionSweeper) runSweep(ctx context.Context) {
	users, err := s.userRepo.ListExpiredSuspensions(ctx)
	if err != nil {
		slog.Error("suspension sweeper: failed to query expired suspensions", "error", err)
		return
	}

	if len(users) == 0 {
		return
	}

	slog.Info("suspension sweeper: lifting expired suspensions", "count", len(users))

	for _, user := range users {
		observedUpdatedAt := user.UpdatedAt
		oldReason := user.SuspensionReason
		oldExpiry := user.SuspensionExpiresAt

		user.Status = models.UserStatusActive
		user.SuspensionReason = nil
		user.SuspensionExpiresAt = nil

		rows, err := s.userRepo.Update(ctx, user, observedUpdatedAt)
		if err != nil {
			slog.Error("suspension sweeper: failed to reactivate user", "user_id", user.ID, "error", err)
			continue
		}
		if rows == 0 {
			// Someone touched the row since we read it; the next sweep will
			// pick it up if it still qualifies.
			continue
		}

		oldData := map[string]interface{}{
			"status": models.UserStatusSuspended,
		}
		if oldReason != nil {
			oldData["suspension_reason"] = *oldReason
		}
		if oldExpiry != nil {
			oldData["suspension_expires_at"] = *oldExpiry
		}

		// System-initiated event: no actor, the user is the target.
		if _, err := s.recorder.LogAction(ctx, &models.AuditLog{
			Action:       models.ActionUserReinstated,
			TargetUserID: &user.ID,
			EntityType:   strPtr("user"),
			EntityID:     &user.ID,
			OldData:      oldData,
			NewData: map[string]interface{}{
				"status":     models.UserStatusActive,
				"updated_at": user.UpdatedAt,
			},
			Severity: models.SeverityInfo,
		}); err != nil {
			slog.Warn("suspension sweeper: failed to record reinstatement", "user_id", user.ID, "error", err)
		}
	}
}

func strPtr(s string) *string { return &s }
