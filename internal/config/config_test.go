package config

import (
	"testing"
)

func TestApplyEnv(t *testing.T) {
	t.Setenv("SERVER_ADDRESS", ":9999")
	t.Setenv("DATABASE_DSN", "postgres://localhost/catalog")
	t.Setenv("DATA_FILE", "/tmp/db.json")
	t.Setenv("SEED_FILE", "")
	t.Setenv("LOG_LEVEL", "debug")

	o := &Options{Port: "localhost:3001", DataFile: "db.json", SeedFile: "seed.json", LogLevel: "info"}
	applyEnv(o)

	if o.Port != ":9999" {
		t.Errorf("Port = %q; want %q", o.Port, ":9999")
	}
	if o.DatabaseDSN != "postgres://localhost/catalog" {
		t.Errorf("DatabaseDSN = %q", o.DatabaseDSN)
	}
	if o.DataFile != "/tmp/db.json" {
		t.Errorf("DataFile = %q", o.DataFile)
	}
	if o.SeedFile != "seed.json" {
		t.Errorf("SeedFile = %q; empty env must not override", o.SeedFile)
	}
	if o.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", o.LogLevel)
	}
}

func TestDefaults(t *testing.T) {
	if options.Port != "localhost:3001" {
		t.Errorf("default Port = %q", options.Port)
	}
	if options.DataFile != "db.json" {
		t.Errorf("default DataFile = %q", options.DataFile)
	}
	if options.Reset {
		t.Error("Reset must default to false")
	}
}
