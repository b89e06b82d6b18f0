package instrumentation

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T, detailed bool) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp.Meter("test"), detailed)
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	return m, reader
}

// counterPoints returns the data points of the named Int64 counter.
func counterPoints(t *testing.T, reader *sdkmetric.ManualReader, name string) []metricdata.DataPoint[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %s is %T, not an int64 sum", name, m.Data)
			}
			return sum.DataPoints
		}
	}
	return nil
}

func attrValue(set attribute.Set, key string) string {
	v, ok := set.Value(attribute.Key(key))
	if !ok {
		return ""
	}
	return v.Emit()
}

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	m, reader := newTestMetrics(t, false)
	ctx := context.Background()

	m.RecordHTTPRequest(ctx, "GET", "/callback", 200, 100*time.Millisecond)
	m.RecordHTTPRequest(ctx, "GET", "/callback", 200, 50*time.Millisecond)
	m.RecordHTTPRequest(ctx, "GET", "/callback", 400, 5*time.Millisecond)

	points := counterPoints(t, reader, "http_requests_total")
	if len(points) != 2 {
		t.Fatalf("expected 2 series, got %d", len(points))
	}
	for _, p := range points {
		switch attrValue(p.Attributes, attrStatus) {
		case "200":
			if p.Value != 2 {
				t.Errorf("expected 2 requests with status 200, got %d", p.Value)
			}
		case "400":
			if p.Value != 1 {
				t.Errorf("expected 1 request with status 400, got %d", p.Value)
			}
		default:
			t.Errorf("unexpected status label %q", attrValue(p.Attributes, attrStatus))
		}
	}
}

func TestMetrics_RecordAPIOperation(t *testing.T) {
	m, reader := newTestMetrics(t, false)
	m.RecordAPIOperation(context.Background(), OperationListTasks, StatusSuccess, 200, 200*time.Millisecond)

	points := counterPoints(t, reader, "dida_api_operations_total")
	if len(points) != 1 {
		t.Fatalf("expected 1 series, got %d", len(points))
	}
	p := points[0]
	if got := attrValue(p.Attributes, attrService); got != ServiceDida {
		t.Errorf("expected service %q, got %q", ServiceDida, got)
	}
	if got := attrValue(p.Attributes, attrOperation); got != OperationListTasks {
		t.Errorf("expected operation %q, got %q", OperationListTasks, got)
	}
	if _, ok := p.Attributes.Value(attrStatusCode); ok {
		t.Error("status_code label must not be set without detailed labels")
	}
}

func TestMetrics_RecordAPIOperation_DetailedLabels(t *testing.T) {
	m, reader := newTestMetrics(t, true)
	m.RecordAPIOperation(context.Background(), OperationDeleteTask, StatusError, 404, time.Millisecond)

	points := counterPoints(t, reader, "dida_api_operations_total")
	if len(points) != 1 {
		t.Fatalf("expected 1 series, got %d", len(points))
	}
	if got := attrValue(points[0].Attributes, attrStatusCode); got != "4xx" {
		t.Errorf("expected status_code 4xx, got %q", got)
	}
}

func TestMetrics_RecordOAuthAuth(t *testing.T) {
	m, reader := newTestMetrics(t, false)
	ctx := context.Background()

	m.RecordOAuthAuth(ctx, "bootstrap", OAuthResultSuccess)
	m.RecordOAuthAuth(ctx, "refresh", OAuthResultFailure)
	m.RecordOAuthExchange(ctx, OAuthResultSuccess, 300*time.Millisecond)

	points := counterPoints(t, reader, "oauth_auth_total")
	if len(points) != 2 {
		t.Fatalf("expected 2 series, got %d", len(points))
	}
	for _, p := range points {
		mode := attrValue(p.Attributes, attrMode)
		result := attrValue(p.Attributes, attrResult)
		if (mode == "bootstrap" && result != OAuthResultSuccess) || (mode == "refresh" && result != OAuthResultFailure) {
			t.Errorf("unexpected series mode=%q result=%q", mode, result)
		}
	}
}

func TestMetrics_RecordToolInvocation(t *testing.T) {
	m, reader := newTestMetrics(t, false)
	ctx := context.Background()

	m.RecordToolInvocation(ctx, "createTask", StatusSuccess, 150*time.Millisecond)
	m.RecordToolInvocation(ctx, "createTask", StatusSuccess, 100*time.Millisecond)

	points := counterPoints(t, reader, "mcp_tool_invocations_total")
	if len(points) != 1 || points[0].Value != 2 {
		t.Fatalf("expected a single series with value 2, got %+v", points)
	}
	if got := attrValue(points[0].Attributes, attrTool); got != "createTask" {
		t.Errorf("expected tool createTask, got %q", got)
	}
}

func TestMetrics_ActiveSessions(t *testing.T) {
	m, reader := newTestMetrics(t, false)
	ctx := context.Background()

	m.IncrementActiveSessions(ctx, "streamable-http")
	m.IncrementActiveSessions(ctx, "streamable-http")
	m.DecrementActiveSessions(ctx, "streamable-http")

	points := counterPoints(t, reader, "mcp_active_sessions")
	if len(points) != 1 || points[0].Value != 1 {
		t.Fatalf("expected one active session, got %+v", points)
	}
}

func TestMetrics_NoOp(t *testing.T) {
	ctx := context.Background()

	for name, m := range map[string]*Metrics{"zero": {}, "nil": nil} {
		t.Run(name, func(t *testing.T) {
			// none of these may panic
			m.RecordHTTPRequest(ctx, "GET", "/callback", 200, time.Second)
			m.RecordAPIOperation(ctx, OperationListTasks, StatusSuccess, 200, time.Second)
			m.RecordOAuthAuth(ctx, "bootstrap", OAuthResultSuccess)
			m.RecordOAuthExchange(ctx, OAuthResultSuccess, time.Second)
			m.RecordToolInvocation(ctx, "getTasks", StatusSuccess, time.Second)
			m.IncrementActiveSessions(ctx, "stdio")
			m.DecrementActiveSessions(ctx, "stdio")
		})
	}
}
