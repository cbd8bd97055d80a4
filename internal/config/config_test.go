package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CHESSLINK_CONFIG", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Role != RoleHost || cfg.Addr != "127.0.0.1:22022" || cfg.Color != ColorWhite {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.AckTimeout != 30*time.Second || cfg.TickInterval != 16*time.Millisecond {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chesslink.yaml")
	body := "role: join\naddr: 10.0.0.2:9000\nname: bob\nack_timeout: 5s\ntime: 300\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CHESSLINK_CONFIG", path)
	t.Setenv("CHESSLINK_NAME", "carol")
	t.Setenv("CHESSLINK_INC", "2")
	t.Setenv("CHESSLINK_NOTIFY_DRYRUN", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Role != RoleJoin || cfg.Addr != "10.0.0.2:9000" {
		t.Fatalf("file not applied: %+v", cfg)
	}
	if cfg.Name != "carol" {
		t.Fatalf("env did not override name: %q", cfg.Name)
	}
	if cfg.AckTimeout != 5*time.Second || cfg.Time != 300 || cfg.Inc != 2 || !cfg.NotifyDryRun {
		t.Fatalf("unexpected values: %+v", cfg)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"CHESSLINK_ROLE":          "spectator",
		"CHESSLINK_COLOR":         "green",
		"CHESSLINK_ACK_TIMEOUT":   "soon",
		"CHESSLINK_TIME":          "-1",
		"CHESSLINK_NOTIFY_DRYRUN": "maybe",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv("CHESSLINK_CONFIG", "")
			t.Setenv(key, val)
			if _, err := Load(); err == nil {
				t.Fatalf("%s=%s accepted", key, val)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CHESSLINK_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestColorWhite(t *testing.T) {
	if w, err := ColorWhite.White(); err != nil || !w {
		t.Fatalf("white = %v, %v", w, err)
	}
	if w, err := ColorBlack.White(); err != nil || w {
		t.Fatalf("black = %v, %v", w, err)
	}
	seen := map[bool]bool{}
	for i := 0; i < 64; i++ {
		w, err := ColorRandom.White()
		if err != nil {
			t.Fatalf("random: %v", err)
		}
		seen[w] = true
	}
	if len(seen) != 2 {
		t.Fatalf("random colour never varied")
	}
	if _, err := Color("green").White(); err == nil {
		t.Fatalf("green accepted")
	}
}
