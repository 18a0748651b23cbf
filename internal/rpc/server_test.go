package rpc_test

import (
	"context"
	"math"
	"net"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nyashahama/crushbot-backend/internal/ai"
	"github.com/nyashahama/crushbot-backend/internal/analysis"
	"github.com/nyashahama/crushbot-backend/internal/rpc"
	"github.com/nyashahama/crushbot-backend/internal/scoring"
)

// ─── STUBS ────────────────────────────────────────────────────────────────────

type stubExplainer struct {
	calls int
}

func (e *stubExplainer) Explain(_ context.Context, _ int, category scoring.Category, _ scoring.AnswerSet) ai.Explanation {
	e.calls++
	return ai.Explanation{Text: ai.FallbackText(category), Source: ai.SourceFallback}
}

// ─── CLIENT ───────────────────────────────────────────────────────────────────

type scoringClient struct {
	cc grpc.ClientConnInterface
}

func (c scoringClient) Score(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+rpc.ServiceName+"/Score", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c scoringClient) Evaluate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+rpc.ServiceName+"/Evaluate", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func kpiRequest(t *testing.T, kpis map[string]float64) *structpb.Struct {
	t.Helper()
	m := make(map[string]any, len(kpis))
	for k, v := range kpis {
		m[k] = v
	}
	req, err := structpb.NewStruct(map[string]any{"kpis": m})
	if err != nil {
		t.Fatal(err)
	}
	return req
}

// ─── HELPERS ─────────────────────────────────────────────────────────────────

func dial(t *testing.T, logger *zap.Logger) (*grpc.ClientConn, *stubExplainer) {
	t.Helper()

	exp := &stubExplainer{}
	srv := rpc.NewServer(analysis.New(scoring.DefaultWeights(), exp, nil), logger)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn, exp
}

func referenceRequest(t *testing.T) *structpb.Struct {
	t.Helper()
	return kpiRequest(t, map[string]float64{
		"story_like_rate":               0.7,
		"conversation_initiation_ratio": 0.8,
		"reply_speed_score":             1,
		"date_count_score":              0.7,
		"gift_score":                    0.8,
		"emotional_interest_score":      0.7,
		"future_plans_score":            0.6,
	})
}

// ─── Tests ────────────────────────────────────────────────────────────────────

func TestScore(t *testing.T) {
	conn, exp := dial(t, zap.NewNop())
	client := scoringClient{cc: conn}

	out, err := client.Score(context.Background(), referenceRequest(t))
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	fields := out.GetFields()
	if got := fields["score"].GetNumberValue(); got != 77 {
		t.Errorf("score: got %v, want 77", got)
	}
	if got := fields["category"].GetStringValue(); got != "high" {
		t.Errorf("category: got %q", got)
	}
	if exp.calls != 0 {
		t.Error("Score must not request an explanation")
	}
}

func TestEvaluate(t *testing.T) {
	conn, exp := dial(t, zap.NewNop())
	client := scoringClient{cc: conn}

	out, err := client.Evaluate(context.Background(), referenceRequest(t))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	fields := out.GetFields()
	if fields["explanation"].GetStringValue() != ai.FallbackHigh {
		t.Errorf("explanation: %q", fields["explanation"].GetStringValue())
	}
	if fields["source"].GetStringValue() != string(ai.SourceFallback) {
		t.Errorf("source: %q", fields["source"].GetStringValue())
	}
	if exp.calls != 1 {
		t.Errorf("explainer calls: got %d, want 1", exp.calls)
	}
}

func TestScore_EmptyRequestScoresZero(t *testing.T) {
	conn, _ := dial(t, zap.NewNop())
	out, err := scoringClient{cc: conn}.Score(context.Background(), &structpb.Struct{})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if out.GetFields()["score"].GetNumberValue() != 0 || out.GetFields()["category"].GetStringValue() != "low" {
		t.Errorf("empty request: %v", out)
	}
}

func TestScore_InvalidArgument(t *testing.T) {
	conn, _ := dial(t, zap.NewNop())
	client := scoringClient{cc: conn}

	notNumber, _ := structpb.NewStruct(map[string]any{"kpis": map[string]any{"gift_score": "lots"}})
	notObject, _ := structpb.NewStruct(map[string]any{"kpis": 3})

	tests := []struct {
		name string
		req  *structpb.Struct
	}{
		{"non-numeric value", notNumber},
		{"kpis not an object", notObject},
		{"positive infinity", kpiRequest(t, map[string]float64{"gift_score": math.Inf(1)})},
		{"negative infinity", kpiRequest(t, map[string]float64{"gift_score": math.Inf(-1)})},
		{"nan", kpiRequest(t, map[string]float64{"reply_speed_score": math.NaN()})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Score(context.Background(), tt.req)
			if status.Code(err) != codes.InvalidArgument {
				t.Errorf("expected InvalidArgument, got %v", err)
			}
		})
	}
}

func TestScore_UnknownKPIsIgnored(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	conn, _ := dial(t, zap.New(core))

	req := kpiRequest(t, map[string]float64{"reply_speed_score": 1, "horoscope": 1})
	out, err := scoringClient{cc: conn}.Score(context.Background(), req)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	fields := out.GetFields()
	if fields["score"].GetNumberValue() != 15 || fields["category"].GetStringValue() != "low" {
		t.Errorf("got %v, want 15/low", out)
	}
	if n := logs.FilterMessage("rpc: ignoring unknown kpis").Len(); n != 1 {
		t.Errorf("expected 1 warning for unknown kpis, got %d", n)
	}
}

func TestHealth(t *testing.T) {
	conn, _ := dial(t, zap.NewNop())
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: rpc.ServiceName})
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status: %v", resp.GetStatus())
	}
}

func TestLoggingInterceptor(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	conn, _ := dial(t, zap.New(core))

	if _, err := (scoringClient{cc: conn}).Score(context.Background(), referenceRequest(t)); err != nil {
		t.Fatal(err)
	}

	entries := logs.FilterMessage("grpc").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 grpc log entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["method"] != "/crushbot.v1.Scoring/Score" || ctx["code"] != "OK" {
		t.Errorf("log fields: %v", ctx)
	}
}
