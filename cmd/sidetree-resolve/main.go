// Command sidetree-resolve is the demo/introspection CLI for the
// resolution engine: ingest raw anchored operations into a SQLite
// OperationStore, resolve a DID suffix against it, or print store
// statistics. Grounded on the teacher's cobra dependency (present in its
// go.mod, never wired into an actual cmd/ — this module is its first real
// user) and on the teacher's root-level debug scripts
// (check_ballot.go/test_ballot.go) for what a one-shot operator tool in
// this project looks like, generalized from "poke one CHAR ballot" into
// proper subcommands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/didresolve/sidetree-resolver/pkg/config"
	"github.com/didresolve/sidetree-resolver/pkg/operation"
	"github.com/didresolve/sidetree-resolver/pkg/resolver"
	"github.com/didresolve/sidetree-resolver/pkg/store"
	"github.com/didresolve/sidetree-resolver/pkg/versionmgr"
)

var dbPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sidetree-resolve",
		Short: "Ingest and resolve Sidetree-style anchored DID operations",
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "", "path to the SQLite operation store (defaults to the configured data directory)")

	root.AddCommand(newIngestCmd(), newResolveCmd(), newStatusCmd())
	return root
}

func openStore() (*store.SQLStore, error) {
	path := dbPath
	if path == "" {
		cfg, err := config.LoadConfig()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		path = cfg.Database.Path
	}
	return store.NewSQLStore(path)
}

// ingestRecord is one entry of the file newIngestCmd reads: an anchor
// position plus the raw operation JSON it anchors.
type ingestRecord struct {
	TransactionTime   uint64          `json:"transaction_time"`
	TransactionNumber uint64          `json:"transaction_number"`
	OperationIndex    uint32          `json:"operation_index"`
	Operation         json.RawMessage `json:"operation"`
}

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file>",
		Short: "Parse and store anchored operations from a JSON array file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			var records []ingestRecord
			if err := json.Unmarshal(raw, &records); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			var ops []*operation.AnchoredOperation
			for i, rec := range records {
				key := operation.AnchorKey{
					TransactionTime:   rec.TransactionTime,
					TransactionNumber: rec.TransactionNumber,
					OperationIndex:    rec.OperationIndex,
				}
				op, err := operation.ParseOperation(rec.Operation, key)
				if err != nil {
					slog.Warn("skipping unparseable operation", "index", i, "error", err)
					continue
				}
				ops = append(ops, op)
			}
			if err := s.Put(ops); err != nil {
				return fmt.Errorf("store operations: %w", err)
			}

			fmt.Printf("ingested %d of %d operations\n", len(ops), len(records))
			return nil
		},
	}
}

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <did-suffix>",
		Short: "Resolve a DID suffix to its current state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			r := resolver.New(s, versionmgr.NewStatic(), slog.Default())
			state, ok := r.Resolve(context.Background(), args[0])
			if !ok {
				fmt.Println("not found")
				return nil
			}

			out, err := json.MarshalIndent(state, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal state: %w", err)
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print aggregate operation store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			stats, err := s.Stats()
			if err != nil {
				return fmt.Errorf("read stats: %w", err)
			}
			fmt.Printf("dids: %d\noperations: %d\n", stats.DidCount, stats.OperationCount)
			return nil
		},
	}
}
