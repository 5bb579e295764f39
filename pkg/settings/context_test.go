package settings

import (
	"context"
	"testing"
	"time"
)

func TestContextRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		ctx    func() context.Context
		wantOk bool
	}{
		{
			name:   "with_settings",
			ctx:    func() context.Context { return IntoContext(context.Background(), &Run{NoColor: true}) },
			wantOk: true,
		},
		{
			name: "without_settings",
			ctx:  context.Background,
		},
		{
			name: "nil_settings",
			ctx:  func() context.Context { return IntoContext(context.Background(), nil) },
		},
		{
			name: "wrong_type",
			ctx:  func() context.Context { return context.WithValue(context.Background(), contextKey{}, "run") },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FromContext(tt.ctx())
			if ok != tt.wantOk {
				t.Fatalf("FromContext() ok = %v; want %v", ok, tt.wantOk)
			}
			if ok && !got.NoColor {
				t.Error("FromContext() lost NoColor")
			}
		})
	}
}

func TestFromContextOrDefault(t *testing.T) {
	run := &Run{LogLevel: "debug"}
	if got := FromContextOrDefault(IntoContext(context.Background(), run)); got != run {
		t.Error("FromContextOrDefault should return the stored pointer")
	}
	got := FromContextOrDefault(context.Background())
	if got.LogLevel != "info" || got.RequestTimeout != 15*time.Second {
		t.Errorf("FromContextOrDefault() = %+v; want CLI defaults", got)
	}
}
