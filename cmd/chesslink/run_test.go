package main

import (
	"context"
	"testing"

	"github.com/park285/chesslink/internal/config"
)

func TestOpenSinksNotifyDryRun(t *testing.T) {
	cfg := config.Default()
	cfg.NotifyDryRun = true

	sk, err := openSinks(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open sinks: %v", err)
	}
	defer sk.close()
	if sk.notifier == nil {
		t.Fatalf("dry run should install a notifier without a url")
	}
	if sk.recorder != nil || sk.hub != nil {
		t.Fatalf("unexpected sinks: %+v", sk)
	}
	if n := len(sk.options(cfg)); n != 5 {
		t.Fatalf("options = %d, want 4 base + notifier hook", n)
	}
}
