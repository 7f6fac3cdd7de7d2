package telemetry

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestSetupTracing(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TraceConfig
		wantErr bool
	}{
		{"disabled", TraceConfig{ServiceName: "test"}, false},
		{"explicit none", TraceConfig{ServiceName: "test", Exporter: "none"}, false},
		{"stdout", TraceConfig{ServiceName: "test", Exporter: "stdout"}, false},
		{"otlp without endpoint", TraceConfig{ServiceName: "test", Exporter: "otlp"}, true},
		{"unknown exporter", TraceConfig{ServiceName: "test", Exporter: "jaeger"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shutdown, err := SetupTracing(context.Background(), tt.cfg, zap.NewNop())
			if (err != nil) != tt.wantErr {
				t.Fatalf("SetupTracing() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				if err := shutdown(context.Background()); err != nil {
					t.Errorf("shutdown: %v", err)
				}
			}
		})
	}
}
