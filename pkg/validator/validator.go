// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package validator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AccelByte/extend-hyperstreak-guard/pkg/metrics"
	"github.com/AccelByte/extend-hyperstreak-guard/pkg/progression"
	"github.com/AccelByte/extend-hyperstreak-guard/pkg/record"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// ErrCorrectionFailed is returned when a corrective write could not be applied.
var ErrCorrectionFailed = errors.New("corrective write failed")

// Corrector applies the corrective write for a rejected transition.
type Corrector interface {
	Load(ctx context.Context, userID string) (progression.State, error)
	Restore(ctx context.Context, userID string, state progression.State, flag record.CheatFlag) error
}

// Notifier tells watchers of a user that the persisted record changed out-of-band.
type Notifier interface {
	Notify(ctx context.Context, userID string) error
}

// AuditSink keeps the flag history used by moderation tooling.
type AuditSink interface {
	RecordFlag(ctx context.Context, userID string, flag record.CheatFlag) error
}

// ActivationSink receives accepted hyperstreak activations for analytics.
type ActivationSink interface {
	RecordActivation(ctx context.Context, userID string) error
}

// Alerter escalates corrective writes that could not be applied.
type Alerter interface {
	Alert(ctx context.Context, correction Correction, err error)
}

// Correction is a pending revert of a rejected write.
type Correction struct {
	UserID   string
	RevertTo progression.State
	Flag     record.CheatFlag
}

// Config holds validator tunables.
type Config struct {
	Rules progression.Rules

	// MaxRetries bounds the backoff retries of a corrective write.
	MaxRetries uint64
	// InitialInterval is the first backoff delay.
	InitialInterval time.Duration

	// Now overrides the clock used for flag timestamps.
	Now func() time.Time
}

// Dependencies are optional collaborators. Nil members are skipped.
type Dependencies struct {
	Notifier    Notifier
	Audit       AuditSink
	Activations ActivationSink
	Alerter     Alerter
}

// Validator re-verifies every write to a progression record and reverts illegal ones.
type Validator struct {
	corrector Corrector
	cfg       Config
	deps      Dependencies
	pending   *pendingQueue
}

var _ record.Hook = (*Validator)(nil)

// New creates a validator that corrects through corrector.
func New(corrector Corrector, cfg Config, deps Dependencies) *Validator {
	if cfg.Rules == (progression.Rules{}) {
		cfg.Rules = progression.DefaultRules()
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if deps.Alerter == nil {
		deps.Alerter = LogAlerter{}
	}

	return &Validator{
		corrector: corrector,
		cfg:       cfg,
		deps:      deps,
		pending:   newPendingQueue(),
	}
}

// Check re-derives a before/after pair with the validator's rules.
func (v *Validator) Check(before, after progression.State) Verdict {
	return Check(v.cfg.Rules, before, after)
}

// AfterWrite implements record.Hook.
func (v *Validator) AfterWrite(ctx context.Context, change record.Change) error {
	// Our own corrective writes are not validated again.
	if change.Origin == record.OriginValidator {
		return nil
	}

	verdict := v.Check(change.Before, change.After)
	switch {
	case verdict.NoOp:
		metrics.ValidationsTotal.WithLabelValues("noop").Inc()
		return nil
	case verdict.Legal:
		metrics.ValidationsTotal.WithLabelValues("accepted").Inc()
		if verdict.Activated {
			v.recordActivation(ctx, change.UserID)
		}
		return nil
	}

	metrics.ValidationsTotal.WithLabelValues("rejected").Inc()
	metrics.ViolationsTotal.WithLabelValues(string(verdict.Kind)).Inc()

	revertTo := revertTarget(v.cfg.Rules, change.Before)
	correction := Correction{
		UserID:   change.UserID,
		RevertTo: revertTo,
		Flag: record.CheatFlag{
			Flagged:    true,
			DetectedAt: v.cfg.Now().UTC(),
			Detail: record.FlagDetail{
				Kind:           verdict.Kind,
				ObservedBefore: change.Before,
				ObservedAfter:  change.After,
				RevertedTo:     revertTo,
			},
		},
	}

	logrus.WithFields(logrus.Fields{
		"userID": change.UserID,
		"kind":   verdict.Kind,
		"before": change.Before.String(),
		"after":  change.After.String(),
	}).Warn("illegal progression transition, reverting")

	return v.correct(ctx, correction)
}

// correct applies a correction with retries; on failure the correction is parked and escalated.
func (v *Validator) correct(ctx context.Context, correction Correction) error {
	// The corrective write must outlive the request that triggered it.
	ctx = context.WithoutCancel(ctx)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = v.cfg.InitialInterval

	err := backoff.Retry(
		func() error {
			return v.corrector.Restore(ctx, correction.UserID, correction.RevertTo, correction.Flag)
		},
		backoff.WithContext(backoff.WithMaxRetries(b, v.cfg.MaxRetries), ctx),
	)
	if err != nil {
		metrics.CorrectionFailuresTotal.Inc()
		v.pending.park(correction)
		v.deps.Alerter.Alert(ctx, correction, err)
		return fmt.Errorf("%w for user %s: %v", ErrCorrectionFailed, correction.UserID, err)
	}

	v.afterCorrection(ctx, correction)
	return nil
}

// afterCorrection runs the best-effort follow-ups of an applied correction.
func (v *Validator) afterCorrection(ctx context.Context, correction Correction) {
	logrus.Infof("reverted progression for user %s to %s (%s)",
		correction.UserID, correction.RevertTo, correction.Flag.Detail.Kind)

	if v.deps.Notifier != nil {
		if err := v.deps.Notifier.Notify(ctx, correction.UserID); err != nil {
			logrus.Errorf("failed to notify correction for user %s: %v", correction.UserID, err)
		}
	}

	if v.deps.Audit != nil {
		if err := v.deps.Audit.RecordFlag(ctx, correction.UserID, correction.Flag); err != nil {
			logrus.Errorf("failed to append audit flag for user %s: %v", correction.UserID, err)
		}
	}
}

func (v *Validator) recordActivation(ctx context.Context, userID string) {
	if v.deps.Activations == nil {
		return
	}
	if err := v.deps.Activations.RecordActivation(ctx, userID); err != nil {
		logrus.Warnf("failed to record activation for user %s: %v", userID, err)
	}
}

// RetryPending attempts every parked correction once and returns how many remain parked.
// Legal activations accepted while a correction was parked are kept.
func (v *Validator) RetryPending(ctx context.Context) int {
	for _, correction := range v.pending.snapshot() {
		current, err := v.corrector.Load(ctx, correction.UserID)
		if err != nil {
			logrus.Warnf("pending correction for user %s: failed to load record: %v", correction.UserID, err)
			continue
		}
		correction = reconcile(correction, current)

		if err := v.corrector.Restore(ctx, correction.UserID, correction.RevertTo, correction.Flag); err != nil {
			logrus.Warnf("pending correction for user %s still failing: %v", correction.UserID, err)
			continue
		}
		v.pending.remove(correction.UserID)
		v.afterCorrection(ctx, correction)
	}
	return v.pending.len()
}

// reconcile keeps the activation count of the current record when it is ahead of the revert target.
func reconcile(correction Correction, current progression.State) Correction {
	if current.ActivationCount > correction.RevertTo.ActivationCount {
		correction.RevertTo.ActivationCount = current.ActivationCount
		correction.Flag.Detail.RevertedTo = correction.RevertTo
	}
	return correction
}

// Pending returns the number of parked corrections.
func (v *Validator) Pending() int {
	return v.pending.len()
}

// LogAlerter escalates through the error log.
type LogAlerter struct{}

// Alert implements Alerter.
func (LogAlerter) Alert(_ context.Context, correction Correction, err error) {
	logrus.WithFields(logrus.Fields{
		"alert":    true,
		"userID":   correction.UserID,
		"kind":     correction.Flag.Detail.Kind,
		"revertTo": correction.RevertTo.String(),
	}).Errorf("corrective write failed, record may hold an invalid state: %v", err)
}
