// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package transport

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/AccelByte/extend-hyperstreak-guard/pkg/common"
	"github.com/AccelByte/extend-hyperstreak-guard/pkg/metrics"
	"github.com/AccelByte/extend-hyperstreak-guard/pkg/progression"
	"github.com/AccelByte/extend-hyperstreak-guard/pkg/record"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	serviceName = "hyperstreak.v1.ProgressionService"

	applyDeltaMethod       = "/" + serviceName + "/ApplyDelta"
	getProgressionMethod   = "/" + serviceName + "/GetProgression"
	watchProgressionMethod = "/" + serviceName + "/WatchProgression"
)

// ProgressionServer is the server API of the progression service.
type ProgressionServer interface {
	ApplyDelta(context.Context, *ApplyDeltaRequest) (*ApplyDeltaResponse, error)
	GetProgression(context.Context, *GetProgressionRequest) (*ProgressionResponse, error)
	WatchProgression(*WatchProgressionRequest, grpc.ServerStreamingServer[ProgressionChanged]) error
}

// RegisterProgressionServer registers srv on s.
func RegisterProgressionServer(s grpc.ServiceRegistrar, srv ProgressionServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc describes hyperstreak.v1.ProgressionService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ProgressionServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ApplyDelta",
			Handler:    applyDeltaHandler,
		},
		{
			MethodName: "GetProgression",
			Handler:    getProgressionHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchProgression",
			Handler:       watchProgressionHandler,
			ServerStreams: true,
		},
	},
	Metadata: "hyperstreak/v1/progression.proto",
}

func applyDeltaHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ApplyDeltaRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProgressionServer).ApplyDelta(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: applyDeltaMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ProgressionServer).ApplyDelta(ctx, req.(*ApplyDeltaRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getProgressionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetProgressionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProgressionServer).GetProgression(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getProgressionMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ProgressionServer).GetProgression(ctx, req.(*GetProgressionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func watchProgressionHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(WatchProgressionRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ProgressionServer).WatchProgression(in, &grpc.GenericServerStream[WatchProgressionRequest, ProgressionChanged]{ServerStream: stream})
}

// Watcher subscribes to out-of-band record changes.
type Watcher interface {
	Watch(ctx context.Context, userID string) (<-chan struct{}, error)
}

// Service implements ProgressionServer on top of the record store.
// Writes go through the store, so every hook attached to it runs server-side.
type Service struct {
	store   record.Store
	watcher Watcher
}

var _ ProgressionServer = (*Service)(nil)

// NewService creates a new progression service.
func NewService(store record.Store, watcher Watcher) *Service {
	return &Service{
		store:   store,
		watcher: watcher,
	}
}

// ApplyDelta applies a client field-delta write.
func (s *Service) ApplyDelta(ctx context.Context, req *ApplyDeltaRequest) (*ApplyDeltaResponse, error) {
	if req.UserID == "" {
		metrics.DeltaWritesTotal.WithLabelValues("invalid").Inc()
		return nil, status.Error(codes.InvalidArgument, "userId is required")
	}

	scope := common.GetScopeFromContext(ctx, "ProgressionService.ApplyDelta").WithUser(req.UserID)
	defer scope.Finish()

	if err := s.store.ApplyDelta(scope.Ctx, req.UserID, req.Delta); err != nil {
		scope.TraceError(err)
		st := toStatus(err)
		if st.Code() == codes.InvalidArgument {
			metrics.DeltaWritesTotal.WithLabelValues("invalid").Inc()
		} else {
			metrics.DeltaWritesTotal.WithLabelValues("error").Inc()
			scope.Log.Errorf("failed to apply delta: %v", err)
		}
		return nil, st.Err()
	}

	metrics.DeltaWritesTotal.WithLabelValues("ok").Inc()
	return &ApplyDeltaResponse{}, nil
}

// GetProgression returns the persisted progression of a user.
func (s *Service) GetProgression(ctx context.Context, req *GetProgressionRequest) (*ProgressionResponse, error) {
	if req.UserID == "" {
		return nil, status.Error(codes.InvalidArgument, "userId is required")
	}

	scope := common.GetScopeFromContext(ctx, "ProgressionService.GetProgression").WithUser(req.UserID)
	defer scope.Finish()

	rec, err := s.store.Get(scope.Ctx, req.UserID)
	if err != nil {
		scope.TraceError(err)
		return nil, toStatus(err).Err()
	}

	return &ProgressionResponse{
		UserID:      rec.UserID,
		Progression: rec.Progression,
		Flagged:     rec.Flag != nil && rec.Flag.Flagged,
	}, nil
}

// WatchProgression streams change notifications until the client goes away.
func (s *Service) WatchProgression(req *WatchProgressionRequest, stream grpc.ServerStreamingServer[ProgressionChanged]) error {
	if req.UserID == "" {
		return status.Error(codes.InvalidArgument, "userId is required")
	}

	ctx := stream.Context()
	changes, err := s.watcher.Watch(ctx, req.UserID)
	if err != nil {
		return toStatus(err).Err()
	}

	if err := stream.Send(&ProgressionChanged{UserID: req.UserID, At: time.Now().UTC(), Subscribed: true}); err != nil {
		return err
	}
	logrus.Debugf("watching progression changes for user %s", req.UserID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return status.Error(codes.Unavailable, "change feed closed")
			}
			if err := stream.Send(&ProgressionChanged{UserID: req.UserID, At: time.Now().UTC()}); err != nil {
				return err
			}
		}
	}
}

func toStatus(err error) *status.Status {
	var netErr net.Error
	switch {
	case errors.Is(err, progression.ErrInvalidDelta), errors.Is(err, record.ErrEmptyUserID):
		return status.New(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err)
	case errors.As(err, &netErr):
		return status.New(codes.Unavailable, err.Error())
	default:
		return status.New(codes.Internal, err.Error())
	}
}
