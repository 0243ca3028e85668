package settings

import "testing"

func TestDisplayNameFallsBackWhenUnset(t *testing.T) {
	var s Settings
	if got := s.DisplayName(); got != "Unknown Device" {
		t.Fatalf("DisplayName() = %q, want %q", got, "Unknown Device")
	}
}

func TestDisplayNameReturnsDeviceName(t *testing.T) {
	s := Settings{DeviceName: "living-room"}
	if got := s.DisplayName(); got != "living-room" {
		t.Fatalf("DisplayName() = %q, want %q", got, "living-room")
	}
}

func TestDefaultEnablesTextSyncOnly(t *testing.T) {
	d := Default()
	if !d.SyncContentTypes.Text {
		t.Fatal("Default() should sync text by default")
	}
	if d.SyncContentTypes.Image || d.SyncContentTypes.File {
		t.Fatal("Default() should not enable non-text content types")
	}
	if d.Pairing.MaxRetries <= 0 {
		t.Fatal("Default() should set a positive MaxRetries")
	}
}
