// Command coordinator runs the 2PC Coordinator: the authenticated
// /transfer endpoint, the transaction log API, the live event stream, the
// read-only GraphQL console, and the background Recovery Worker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ledgerflow/twopc/pkg/archive"
	"github.com/ledgerflow/twopc/pkg/auth"
	"github.com/ledgerflow/twopc/pkg/coordclient"
	"github.com/ledgerflow/twopc/pkg/coordinator"
	"github.com/ledgerflow/twopc/pkg/txnlog"
)

func main() {
	cfg := coordinator.ConfigFromEnv()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "coordinator: invalid REDIS_URL: %v\n", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)

	store := txnlog.New(rdb)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		fmt.Fprintf(os.Stderr, "coordinator: cannot reach the transaction log store: %v\n", err)
		os.Exit(1)
	}

	locks := txnlog.NewLockManager(rdb, cfg.PairLockAcquireWait, cfg.PairLockHoldTimeout)

	if len(cfg.ParticipantURLs) == 0 {
		fmt.Fprintln(os.Stderr, "coordinator: no PARTICIPANT_*_URL configured")
		os.Exit(1)
	}
	participants := make(map[string]*coordclient.Client, len(cfg.ParticipantURLs))
	for account, url := range cfg.ParticipantURLs {
		participants[account] = coordclient.New(url, cfg.ParticipantTimeout)
	}

	archiver, err := archive.New(cfg.ArchiveDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "coordinator: failed to open archive directory: %v\n", err)
		os.Exit(1)
	}
	defer archiver.Close()

	verifier := auth.NewVerifier(cfg.JWTSecret)
	hub := coordinator.NewStreamHub()
	co := coordinator.New(cfg, store, locks, participants, archiver, hub)

	recoveryCtx, stopRecovery := context.WithCancel(context.Background())
	defer stopRecovery()
	rw := coordinator.NewRecoveryWorker(co, cfg.RecoveryInterval, cfg.RecoveryRollbackAge)
	// Supervise the worker: if Run panics, log it and start it again until
	// recoveryCtx is cancelled.
	go func() {
		for recoveryCtx.Err() == nil {
			func() {
				defer func() {
					if r := recover(); r != nil {
						fmt.Fprintf(os.Stderr, "coordinator: recovery worker panicked, restarting: %v\n", r)
					}
				}()
				rw.Run(recoveryCtx)
			}()
		}
	}()

	srv, err := coordinator.NewServer(cfg, co, verifier, hub)
	if err != nil {
		fmt.Fprintf(os.Stderr, "coordinator: failed to build server: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("coordinator listening on %s:%d with %d participant(s)\n", cfg.Host, cfg.Port, len(participants))

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "coordinator: server error: %v\n", err)
		os.Exit(1)
	case sig := <-sigChan:
		fmt.Printf("coordinator: received %v, shutting down\n", sig)
		stopRecovery()
		if err := srv.Shutdown(); err != nil {
			fmt.Fprintf(os.Stderr, "coordinator: shutdown error: %v\n", err)
		}
	}
}
