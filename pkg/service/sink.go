// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package service

import (
	"context"
	"errors"
)

// ActivationSink receives accepted hyperstreak activations.
type ActivationSink interface {
	RecordActivation(ctx context.Context, userID string) error
}

var (
	_ ActivationSink = (*StatisticService)(nil)
	_ ActivationSink = (*RedisActivationTracker)(nil)
	_ ActivationSink = NoopActivationSink{}
	_ ActivationSink = MultiSink(nil)
)

// NoopActivationSink drops every activation. Used when the platform is not configured.
type NoopActivationSink struct{}

func (NoopActivationSink) RecordActivation(context.Context, string) error {
	return nil
}

// MultiSink forwards an activation to every sink and joins their errors.
type MultiSink []ActivationSink

func (m MultiSink) RecordActivation(ctx context.Context, userID string) error {
	var errs []error
	for _, sink := range m {
		if err := sink.RecordActivation(ctx, userID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
