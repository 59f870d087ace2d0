// Command participant runs one account's Participant service: the
// /prepare, /commit, /rollback, /balance HTTP surface backed by durable
// on-disk state.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ledgerflow/twopc/pkg/participant"
)

func main() {
	cfg := participant.ConfigFromEnv()

	account := flag.String("account", cfg.AccountName, "account name this service owns")
	host := flag.String("host", cfg.Host, "listen host")
	port := flag.Int("port", cfg.Port, "listen port")
	dataPath := flag.String("data-path", cfg.DataPath, "directory holding state.json")
	initialBalance := flag.Int64("initial-balance", cfg.InitialBalance, "balance to seed if no state file exists")
	flag.Parse()

	cfg.AccountName = *account
	cfg.Host = *host
	cfg.Port = *port
	cfg.DataPath = *dataPath
	cfg.InitialBalance = *initialBalance

	svc, err := participant.NewService(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "participant: failed to open account state: %v\n", err)
		os.Exit(1)
	}

	srv := participant.NewServer(cfg, svc)
	fmt.Printf("participant[%s] listening on %s:%d\n", cfg.AccountName, cfg.Host, cfg.Port)

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
		fmt.Fprintf(os.Stderr, "participant[%s]: server error: %v\n", cfg.AccountName, err)
		os.Exit(1)
	case sig := <-sigChan:
		fmt.Printf("participant[%s]: received %v, shutting down\n", cfg.AccountName, sig)
		if err := srv.Shutdown(); err != nil {
			fmt.Fprintf(os.Stderr, "participant[%s]: shutdown error: %v\n", cfg.AccountName, err)
		}
	}
}
