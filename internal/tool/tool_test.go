package tool

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsAreValid(t *testing.T) {
	t.Parallel()
	reg := Defaults()
	if len(reg.Names()) == 0 {
		t.Fatal("default registry is empty")
	}
	for _, tl := range reg.All() {
		if err := tl.Validate(); err != nil {
			t.Errorf("default tool %q invalid: %v", tl.Name, err)
		}
	}
}

func TestEndpointURLs(t *testing.T) {
	t.Parallel()
	tl := Tool{Name: "musetalk", Host: "127.0.0.1", Port: 7861, SubmitPath: "/execute"}

	if got, want := tl.SubmitURL(), "http://127.0.0.1:7861/execute"; got != want {
		t.Errorf("SubmitURL() = %q, want %q", got, want)
	}
	if got, want := tl.SocketURL("abc-123"), "ws://127.0.0.1:7861/ws/abc-123"; got != want {
		t.Errorf("SocketURL() = %q, want %q", got, want)
	}
	if got, want := tl.UploadURL(), "http://127.0.0.1:7861/upload"; got != want {
		t.Errorf("UploadURL() = %q, want %q", got, want)
	}
	if got, want := tl.StatusURL(), "http://127.0.0.1:7861/status"; got != want {
		t.Errorf("StatusURL() = %q, want %q", got, want)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	valid := Tool{
		Name:       "musetalk",
		Host:       "127.0.0.1",
		Port:       7861,
		SubmitPath: "/execute",
		WaitWindow: 20 * time.Minute,
		Cleanup:    CleanupAlways,
	}

	tests := []struct {
		name    string
		mutate  func(*Tool)
		wantErr bool
	}{
		{"valid", func(*Tool) {}, false},
		{"missing name", func(tl *Tool) { tl.Name = "" }, true},
		{"missing host", func(tl *Tool) { tl.Host = "" }, true},
		{"bad port", func(tl *Tool) { tl.Port = 0 }, true},
		{"bad submit path", func(tl *Tool) { tl.SubmitPath = "/submit" }, true},
		{"generate path allowed", func(tl *Tool) { tl.SubmitPath = "/generate" }, false},
		{"zero wait window", func(tl *Tool) { tl.WaitWindow = 0 }, true},
		{"unknown cleanup", func(tl *Tool) { tl.Cleanup = "sometimes" }, true},
		{"binary-only cleanup allowed", func(tl *Tool) { tl.Cleanup = CleanupBinaryOnly }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tl := valid
			tt.mutate(&tl)
			err := tl.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFileMergesOverDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "tools.json")
	content := `[
		{
			"name": "musetalk",
			"host": "127.0.0.1",
			"port": 9861,
			"submitPath": "/execute",
			"waitWindow": "45m",
			"capabilities": {"webhook": true}
		},
		{
			"name": "sadtalker",
			"host": "127.0.0.1",
			"port": 7870,
			"submitPath": "/execute",
			"waitWindow": "1h30m",
			"capabilities": {}
		}
	]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	reg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}

	musetalk, ok := reg.Get("musetalk")
	if !ok {
		t.Fatal("musetalk missing after merge")
	}
	if musetalk.Port != 9861 {
		t.Errorf("override port = %d, want 9861", musetalk.Port)
	}
	if musetalk.WaitWindow != 45*time.Minute {
		t.Errorf("override waitWindow = %v, want 45m", musetalk.WaitWindow)
	}

	extra, ok := reg.Get("sadtalker")
	if !ok {
		t.Fatal("new tool missing after merge")
	}
	if extra.WaitWindow != 90*time.Minute {
		t.Errorf("new tool waitWindow = %v, want 1h30m", extra.WaitWindow)
	}
	if extra.Cleanup != CleanupAlways {
		t.Errorf("new tool cleanup = %q, want default %q", extra.Cleanup, CleanupAlways)
	}

	// Defaults not mentioned in the file survive.
	if _, ok := reg.Get("wan2gp"); !ok {
		t.Error("wan2gp default dropped by merge")
	}
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "tools.json")
	content := `[{"name": "broken", "host": "127.0.0.1", "port": 7870, "submitPath": "/execute", "waitWindow": "never"}]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile() accepted an invalid waitWindow")
	}
}
