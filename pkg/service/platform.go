// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package service

import (
	"context"
	"fmt"

	"github.com/AccelByte/accelbyte-go-sdk/services-api/pkg/service/social"
	"github.com/AccelByte/accelbyte-go-sdk/social-sdk/pkg/socialclient/user_statistic"
	"github.com/AccelByte/accelbyte-go-sdk/social-sdk/pkg/socialclientmodels"
)

// DefaultActivationStatCode is the statistic incremented on every hyperstreak activation.
const DefaultActivationStatCode = "hyperstreak-activations"

type StatisticService struct {
	statisticsService *social.UserStatisticService
	cfg               StatisticServiceConfig
}

type StatisticServiceConfig struct {
	Namespace string
	StatCode  string
}

func NewStatisticService(
	statisticsService *social.UserStatisticService,
	cfg StatisticServiceConfig,
) *StatisticService {
	if cfg.StatCode == "" {
		cfg.StatCode = DefaultActivationStatCode
	}
	return &StatisticService{
		statisticsService: statisticsService,
		cfg:               cfg,
	}
}

// RecordActivation increments the activation statistic of userID.
func (s *StatisticService) RecordActivation(ctx context.Context, userID string) error {
	input := &user_statistic.IncUserStatItemValueParams{
		Namespace: s.cfg.Namespace,
		UserID:    userID,
		StatCode:  s.cfg.StatCode,
		Body: &socialclientmodels.StatItemInc{
			Inc: 1,
		},
		Context: ctx,
	}

	_, err := s.statisticsService.IncUserStatItemValueShort(input)
	if err != nil {
		return fmt.Errorf("failed to increment user %s statistic %s: %w", userID, s.cfg.StatCode, err)
	}

	return nil
}
