// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package validator

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"
)

// Sweeper periodically retries parked corrections.
type Sweeper struct {
	scheduler *gocron.Scheduler
	validator *Validator
	interval  time.Duration
}

// NewSweeper creates a sweeper for v running every interval.
func NewSweeper(v *Validator, interval time.Duration) *Sweeper {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Sweeper{
		scheduler: s,
		validator: v,
		interval:  interval,
	}
}

// Start schedules the sweep and runs the scheduler in the background.
func (s *Sweeper) Start() error {
	if _, err := s.scheduler.Every(s.interval).Do(s.sweep); err != nil {
		return fmt.Errorf("failed to schedule correction sweep: %w", err)
	}
	s.scheduler.StartAsync()
	logrus.Infof("correction sweep scheduled every %v", s.interval)
	return nil
}

// Stop terminates the scheduler.
func (s *Sweeper) Stop() {
	s.scheduler.Stop()
}

func (s *Sweeper) sweep() {
	if s.validator.Pending() == 0 {
		return
	}
	remaining := s.validator.RetryPending(context.Background())
	logrus.Infof("correction sweep finished, %d still pending", remaining)
}
