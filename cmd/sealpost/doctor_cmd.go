package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sealpost/core/pkg/config"
	"github.com/sealpost/core/pkg/store"
)

// runDoctorCmd checks local state and collaborator reachability. Every
// check reports; the exit code is nonzero if any required check fails.
func runDoctorCmd(cfg *config.Config, stdout, stderr io.Writer) int {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	failed := false
	check := func(name string, required bool, err error) {
		switch {
		case err == nil:
			fmt.Fprintf(stdout, "  ok    %s\n", name)
		case required:
			fmt.Fprintf(stdout, "  FAIL  %s: %v\n", name, err)
			failed = true
		default:
			fmt.Fprintf(stdout, "  warn  %s: %v\n", name, err)
		}
	}

	fmt.Fprintln(stdout, "sealpost doctor")

	db, err := store.OpenSQLite(cfg.DatabasePath)
	if err == nil {
		err = db.PingContext(ctx)
		defer db.Close()
	}
	check("database "+cfg.DatabasePath, true, err)

	check("blob directory "+cfg.BlobDir, true, os.MkdirAll(cfg.BlobDir, 0o755))

	check("parser "+cfg.ParserURL, false, pingHTTP(ctx, cfg.ParserURL))

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		check("redis "+cfg.RedisAddr, false, client.Ping(ctx).Err())
		_ = client.Close()
	}

	if cfg.ProfilesDir != "" {
		profiles, err := config.LoadAllProfiles(cfg.ProfilesDir)
		if err == nil {
			fmt.Fprintf(stdout, "  ok    %d delivery profile(s)\n", len(profiles))
		} else {
			check("delivery profiles", false, err)
		}
	}

	if failed {
		fmt.Fprintln(stderr, "doctor: required checks failed")
		return 1
	}
	return 0
}

func pingHTTP(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
