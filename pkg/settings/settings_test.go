package settings

import (
	"testing"
	"time"
)

func TestNewCliParams(t *testing.T) {
	want := Run{LogLevel: "info", RequestTimeout: 15 * time.Second, ExitOnError: true}
	if got := NewCliParams(); *got != want {
		t.Errorf("NewCliParams() = %+v, want %+v", got, want)
	}
	if CliBinaryName != "kvgrid" {
		t.Errorf("CliBinaryName = %q", CliBinaryName)
	}
}
