package config

import (
	"testing"
	"time"
)

func TestParseIDList(t *testing.T) {
	cases := []struct {
		in   string
		want []int64
	}{
		{"", nil},
		{"1", []int64{1}},
		{" 1, 2 ,3", []int64{1, 2, 3}},
		{"1,abc,0,,42", []int64{1, 42}},
	}

	for _, tc := range cases {
		got := ParseIDList(tc.in)
		if len(got) != len(tc.want) {
			t.Fatalf("ParseIDList(%q) = %v; want %v", tc.in, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("ParseIDList(%q) = %v; want %v", tc.in, got, tc.want)
			}
		}
	}
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("TEST_INTERVAL", "90m")
	if got := envDuration("TEST_INTERVAL", time.Hour); got != 90*time.Minute {
		t.Fatalf("got %v; want 90m", got)
	}

	t.Setenv("TEST_INTERVAL", "120")
	if got := envDuration("TEST_INTERVAL", time.Hour); got != 2*time.Minute {
		t.Fatalf("got %v; want 2m", got)
	}

	t.Setenv("TEST_INTERVAL", "nonsense")
	if got := envDuration("TEST_INTERVAL", time.Hour); got != time.Hour {
		t.Fatalf("got %v; want default", got)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("BOT_TOKEN", "token")
	t.Setenv("CHAT_ID", "-100123")
	t.Setenv("ADMIN_TELEGRAM_IDS", "7,8")
	t.Setenv("BROADCAST_INTERVAL", "")

	cfg := Load()
	if cfg.ChatID != -100123 {
		t.Fatalf("ChatID = %d", cfg.ChatID)
	}
	if len(cfg.AdminIDs) != 2 {
		t.Fatalf("AdminIDs = %v", cfg.AdminIDs)
	}
	if cfg.BroadcastInterval != time.Hour {
		t.Fatalf("BroadcastInterval = %v", cfg.BroadcastInterval)
	}
}
