// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package bootstrap

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/AccelByte/extend-hyperstreak-guard/pkg/audit"
	"github.com/AccelByte/extend-hyperstreak-guard/pkg/progression"
	"github.com/AccelByte/extend-hyperstreak-guard/pkg/record"
	"github.com/AccelByte/extend-hyperstreak-guard/pkg/service"
	"github.com/AccelByte/extend-hyperstreak-guard/pkg/validator"

	"github.com/sirupsen/logrus"
)

// LoadRules reads the hyperstreak tunables from path.
// A missing file is not an error: the default tunables are used instead.
func LoadRules(path string) (progression.Rules, error) {
	rules, err := progression.LoadRules(path)
	if errors.Is(err, fs.ErrNotExist) {
		rules = progression.DefaultRules()
		logrus.Warnf("rules file %s not found, using defaults (bar_max=%d, duration=%d)", path, rules.BarMax, rules.Duration)
		return rules, nil
	}
	if err != nil {
		return progression.Rules{}, err
	}

	logrus.Infof("loaded hyperstreak rules from %s (bar_max=%d, duration=%d)", path, rules.BarMax, rules.Duration)
	return rules, nil
}

// InitActivationSink fans accepted activations out to the weekly tracker and,
// when the platform is configured, to the AccelByte statistic.
func InitActivationSink(tracker *service.RedisActivationTracker, statistic *service.StatisticService) service.ActivationSink {
	sinks := service.MultiSink{}
	if tracker != nil {
		sinks = append(sinks, tracker)
	}
	if statistic != nil {
		sinks = append(sinks, statistic)
	}
	if len(sinks) == 0 {
		return service.NoopActivationSink{}
	}
	return sinks
}

// ValidatorOptions are the validator tunables taken from configuration.
type ValidatorOptions struct {
	Rules         progression.Rules
	MaxRetries    uint64
	RetryInterval time.Duration
	SweepInterval time.Duration
}

// InitValidator creates the invariant validator and attaches it to store so it
// runs after every write. The returned sweeper is nil when SweepInterval is zero.
//
// ============================================================
// DEVELOPER: Validator collaborators
// ============================================================
// - notifier: tells subscribed clients to reload after a revert
// - flags: optional flag history (nil disables it)
// - activations: receives accepted activations
//
// To escalate failed corrections somewhere other than the log,
// set validator.Dependencies.Alerter.
// ============================================================
func InitValidator(
	store *record.RedisStore,
	notifier validator.Notifier,
	flags *audit.SQLStore,
	activations service.ActivationSink,
	opts ValidatorOptions,
) (*validator.Validator, *validator.Sweeper, error) {
	if store == nil {
		return nil, nil, fmt.Errorf("record store is required")
	}

	deps := validator.Dependencies{
		Notifier:    notifier,
		Activations: activations,
	}
	if flags != nil {
		deps.Audit = flags
	}

	v := validator.New(store, validator.Config{
		Rules:           opts.Rules,
		MaxRetries:      opts.MaxRetries,
		InitialInterval: opts.RetryInterval,
	}, deps)
	store.Use(v)
	logrus.Info("invariant validator attached to record store")

	if opts.SweepInterval <= 0 {
		logrus.Warn("correction sweep disabled, parked corrections will not be retried")
		return v, nil, nil
	}

	return v, validator.NewSweeper(v, opts.SweepInterval), nil
}
