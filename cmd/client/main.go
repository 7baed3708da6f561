// Package main is the interactive terminal client of the catalog.
package main

import (
	"cmp"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/atinyakov/moviecatalog/internal/client/api"
	"github.com/atinyakov/moviecatalog/internal/client/session"
	"github.com/atinyakov/moviecatalog/internal/client/storage"
	"github.com/atinyakov/moviecatalog/internal/logger"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var (
	version   string
	buildDate string
)

// main parses command-line flags, restores the session and starts the shell.
func main() {
	var (
		baseURL     string
		sessionFile string
		logFile     string
		showVer     bool
	)

	flag.StringVar(&baseURL, "url", "http://localhost:3001", "server base URL")
	flag.StringVar(&sessionFile, "session", defaultSessionFile(), "path to the local session file")
	flag.StringVar(&logFile, "log", "catalog-client.log", "path to the client log file")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("Catalog Client\nVersion: %s\nBuild Date: %s\n", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))
		return
	}

	if v := os.Getenv("CATALOG_API_URL"); v != "" {
		baseURL = v
	}
	if v := os.Getenv("CATALOG_SESSION_FILE"); v != "" {
		sessionFile = v
	}

	lg := logger.New()
	if err := lg.InitFile("info", logFile); err != nil {
		log.Fatal(err)
	}
	defer func() { _ = lg.Log.Sync() }()

	fs := afero.NewOsFs()
	if err := fs.MkdirAll(filepath.Dir(sessionFile), 0o700); err != nil {
		log.Fatal(err)
	}
	ls := storage.NewLocalStorage(fs, sessionFile)
	if err := ls.Load(); err != nil {
		lg.Log.Warn("starting with empty local storage", zap.Error(err))
	}

	secrets, err := session.DefaultSecrets()
	if err != nil {
		log.Fatal(err)
	}

	client := api.New(baseURL, nil, api.NewAuditLog(api.DefaultAuditLimit))
	sess := session.New(client, ls, secrets, lg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	newShell(client, sess, lg.Log, os.Stdin, os.Stdout).run(ctx)
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "catalog-session.json"
	}
	return filepath.Join(dir, "moviecatalog", "session.json")
}
