package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"feedsync/migrations"
)

var commands = map[string]struct {
	help string
	run  func(db *sql.DB, dir string) error
}{
	"up":      {help: "Migrate the archive to the latest version", run: func(db *sql.DB, dir string) error { return goose.Up(db, dir) }},
	"up-one":  {help: "Migrate one version up", run: func(db *sql.DB, dir string) error { return goose.UpByOne(db, dir) }},
	"down":    {help: "Roll back one version", run: func(db *sql.DB, dir string) error { return goose.Down(db, dir) }},
	"status":  {help: "Show migration status", run: func(db *sql.DB, dir string) error { return goose.Status(db, dir) }},
	"version": {help: "Show current version", run: func(db *sql.DB, dir string) error { return goose.Version(db, dir) }},
	"reset":   {help: "Roll back all migrations", run: func(db *sql.DB, dir string) error { return goose.Reset(db, dir) }},
}

func main() {
	dbPath := flag.String("db", envOrDefault("FEEDSYNC_ARCHIVE_PATH", "./data/feed.db"), "path to the archive database")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cmd, ok := commands[args[0]]
	if !ok {
		log.Fatalf("unknown command: %s", args[0])
	}

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		log.Fatalf("open archive: %v", err)
	}
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		log.Fatalf("set dialect: %v", err)
	}

	if err := cmd.run(db, "."); err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: migrate [-db path] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-10s  %s\n", name, commands[name].help)
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
