package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInit_Levels(t *testing.T) {
	cases := []struct {
		level   string
		wantErr bool
	}{
		{"Info", false},
		{"debug", false},
		{"error", false},
		{"loud", true},
	}

	for _, tc := range cases {
		t.Run(tc.level, func(t *testing.T) {
			l := New()
			err := l.Init(tc.level)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Init(%q) error = %v; wantErr %v", tc.level, err, tc.wantErr)
			}
			if l.Log == nil {
				t.Fatal("Log must never be nil")
			}
		})
	}
}

func TestInitFile_WritesEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.log")

	l := New()
	if err := l.InitFile("info", path); err != nil {
		t.Fatalf("InitFile failed: %v", err)
	}
	l.Log.Info("catalog loaded")
	_ = l.Log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "catalog loaded") {
		t.Errorf("log file missing entry: %s", data)
	}
}
