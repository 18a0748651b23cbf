// Package rpc exposes stateless scoring over gRPC. Messages are
// google.protobuf.Struct so no generated code is needed:
//
//	crushbot.v1.Scoring/Score    {kpis: {name: number}} → {score, category}
//	crushbot.v1.Scoring/Evaluate {kpis: {name: number}} → {score, category, explanation, source}
//
// The standard grpc.health.v1 service is registered alongside.
package rpc

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nyashahama/crushbot-backend/internal/analysis"
	"github.com/nyashahama/crushbot-backend/internal/scoring"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "crushbot.v1.Scoring"

// Analyzer is satisfied by *analysis.Analyzer.
type Analyzer interface {
	Score(kpis scoring.AnswerSet) scoring.Result
	Analyze(ctx context.Context, kpis scoring.AnswerSet) analysis.Outcome
}

// ScoringServer is the server API for crushbot.v1.Scoring.
type ScoringServer interface {
	Score(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ─── SERVICE ──────────────────────────────────────────────────────────────────

// Service implements ScoringServer on top of an Analyzer.
type Service struct {
	analyzer Analyzer
	logger   *zap.Logger
}

// NewService returns the scoring service.
func NewService(analyzer Analyzer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{analyzer: analyzer, logger: logger}
}

// Score is pure scoring: no explanation is requested.
func (s *Service) Score(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	kpis, err := s.kpisFromStruct(req)
	if err != nil {
		return nil, err
	}
	res := s.analyzer.Score(kpis)
	return structpb.NewStruct(map[string]any{
		"score":    res.Score,
		"category": string(res.Category),
	})
}

// Evaluate scores and explains. It never fails on generator errors; the
// explanation then carries source "fallback".
func (s *Service) Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	kpis, err := s.kpisFromStruct(req)
	if err != nil {
		return nil, err
	}
	out := s.analyzer.Analyze(ctx, kpis)
	return structpb.NewStruct(map[string]any{
		"score":       out.Score,
		"category":    string(out.Category),
		"explanation": out.Explanation.Text,
		"source":      string(out.Explanation.Source),
	})
}

// kpisFromStruct reads {kpis: {name: number}}. A missing kpis field is an
// empty set; non-numeric and non-finite values are InvalidArgument. Unknown
// names are dropped and logged.
func (s *Service) kpisFromStruct(req *structpb.Struct) (scoring.AnswerSet, error) {
	raw, ok := req.GetFields()["kpis"]
	if !ok {
		return scoring.AnswerSet{}, nil
	}
	m := raw.GetStructValue()
	if m == nil {
		return nil, status.Error(codes.InvalidArgument, "kpis must be an object")
	}

	values := make(map[string]float64, len(m.GetFields()))
	for name, v := range m.GetFields() {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "kpi %s must be a number", name)
		}
		if math.IsNaN(n.NumberValue) || math.IsInf(n.NumberValue, 0) {
			return nil, status.Errorf(codes.InvalidArgument, "kpi %s must be finite", name)
		}
		values[name] = n.NumberValue
	}
	if unknown := scoring.UnknownKPIs(values); len(unknown) > 0 {
		s.logger.Warn("rpc: ignoring unknown kpis", zap.Strings("kpis", unknown))
	}
	return scoring.AnswerSetFromMap(values), nil
}

// ─── SERVICE DESCRIPTOR ───────────────────────────────────────────────────────

// RegisterScoringServer registers srv on s.
func RegisterScoringServer(s grpc.ServiceRegistrar, srv ScoringServer) {
	s.RegisterService(&scoringServiceDesc, srv)
}

var scoringServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ScoringServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Score", Handler: unaryHandler("Score", ScoringServer.Score)},
		{MethodName: "Evaluate", Handler: unaryHandler("Evaluate", ScoringServer.Evaluate)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "crushbot/v1/scoring.proto",
}

type unaryMethod func(ScoringServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call unaryMethod) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + ServiceName + "/" + name
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ScoringServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ScoringServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ─── SERVER ───────────────────────────────────────────────────────────────────

// NewServer returns a grpc.Server with the scoring and health services
// registered and the zap interceptors installed.
func NewServer(analyzer Analyzer, logger *zap.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = append(opts, grpc.ChainUnaryInterceptor(
		loggingInterceptor(logger),
		recoveryInterceptor(logger),
	))
	srv := grpc.NewServer(opts...)

	RegisterScoringServer(srv, NewService(analyzer, logger))

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	return srv
}

// loggingInterceptor logs each call with method, code, and duration.
func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		}
		if err != nil {
			logger.Warn("grpc", append(fields, zap.Error(err))...)
		} else {
			logger.Info("grpc", fields...)
		}
		return resp, err
	}
}

// recoveryInterceptor turns a handler panic into codes.Internal.
func recoveryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if p := recover(); p != nil {
				logger.Error("grpc: panic", zap.String("method", info.FullMethod), zap.Any("panic", p))
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}
