// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package transport exposes the progression record over gRPC.
package transport

import (
	"encoding/json"
	"time"

	"github.com/AccelByte/extend-hyperstreak-guard/pkg/progression"

	"google.golang.org/grpc/encoding"
)

// codecName is the gRPC content-subtype of every progression message.
const codecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type ApplyDeltaRequest struct {
	UserID string            `json:"userId"`
	Delta  progression.Delta `json:"delta"`
}

type ApplyDeltaResponse struct{}

type GetProgressionRequest struct {
	UserID string `json:"userId"`
}

type ProgressionResponse struct {
	UserID      string            `json:"userId"`
	Progression progression.State `json:"progression"`
	Flagged     bool              `json:"flagged"`
}

type WatchProgressionRequest struct {
	UserID string `json:"userId"`
}

// ProgressionChanged is streamed for every out-of-band change of the record.
// The first message of a stream only confirms the subscription.
type ProgressionChanged struct {
	UserID     string    `json:"userId"`
	At         time.Time `json:"at"`
	Subscribed bool      `json:"subscribed,omitempty"`
}
