// Command workgraphd is the composition root that wires the connection
// pool, repositories, history engine, mutation/reading services, and
// telemetry together behind a small Cobra CLI. It is intentionally thin:
// the transactional core lives entirely in internal/, and this binary only
// proves the pieces assemble.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/spf13/cobra"

	"github.com/steveyegge/workgraph/internal/config"
	"github.com/steveyegge/workgraph/internal/history"
	"github.com/steveyegge/workgraph/internal/service"
	"github.com/steveyegge/workgraph/internal/storage"
	"github.com/steveyegge/workgraph/internal/storage/sqlstore"
	"github.com/steveyegge/workgraph/internal/telemetry"
	"github.com/steveyegge/workgraph/internal/types"
)

var rootCmd = &cobra.Command{
	Use:           "workgraphd",
	Short:         "Hierarchical work-item service with reversible mutation history",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	config.BindFlags(rootCmd)
	rootCmd.AddCommand(addCmd, getCmd, undoCmd, redoCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// buildService loads config and assembles C1 through C6 against it. The add
// and get subcommands call this first; undo and redo build only the pool,
// store, and history engine in runHistoryOp. None of them keep long-lived
// state.
func buildService(cmd *cobra.Command) (*service.Service, func(), error) {
	cfg, err := config.Load(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger := config.NewLogger(cfg)

	pool, err := storage.Open("mysql", cfg.DSN, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open pool: %w", err)
	}
	pool.DB().SetMaxOpenConns(cfg.PoolMaxOpenConns)
	pool.DB().SetMaxIdleConns(cfg.PoolMaxIdleConns)
	if err := pool.DB().PingContext(cmd.Context()); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping pool: %w", err)
	}

	metrics, err := telemetry.New()
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("build telemetry: %w", err)
	}

	store := sqlstore.New(pool, metrics)
	historyEngine := history.New(store, metrics, logger)
	svc := service.New(store, historyEngine, metrics, logger)

	cleanup := func() { pool.Close() }
	return svc, cleanup, nil
}

var addCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a new work item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parentID, _ := cmd.Flags().GetString("parent")
		svc, cleanup, err := buildService(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		input := service.AddInput{Name: args[0]}
		if parentID != "" {
			input.ParentID = &parentID
		}
		view, err := svc.Add(cmd.Context(), input)
		if err != nil {
			return err
		}
		return printJSON(view)
	},
}

var getCmd = &cobra.Command{
	Use:   "get <work_item_id>",
	Short: "Fetch a work item with its immediate relational neighborhood",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := buildService(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		view, err := svc.GetWorkItemByID(cmd.Context(), args[0], types.ActiveOnly)
		if err != nil {
			return err
		}
		return printJSON(view)
	},
}

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Undo the most recent not-yet-undone action",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runHistoryOp(cmd, func(ctx context.Context, h *history.Engine) (*types.Action, error) {
			return h.Undo(ctx)
		})
	},
}

var redoCmd = &cobra.Command{
	Use:   "redo",
	Short: "Redo the most recently undone action",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runHistoryOp(cmd, func(ctx context.Context, h *history.Engine) (*types.Action, error) {
			return h.Redo(ctx)
		})
	},
}

func runHistoryOp(cmd *cobra.Command, op func(context.Context, *history.Engine) (*types.Action, error)) error {
	cfg, err := config.Load(cmd)
	if err != nil {
		return err
	}
	logger := config.NewLogger(cfg)
	pool, err := storage.Open("mysql", cfg.DSN, logger)
	if err != nil {
		return fmt.Errorf("open pool: %w", err)
	}
	defer pool.Close()

	metrics, err := telemetry.New()
	if err != nil {
		return fmt.Errorf("build telemetry: %w", err)
	}
	store := sqlstore.New(pool, metrics)
	historyEngine := history.New(store, metrics, logger)

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	action, err := op(ctx, historyEngine)
	if err != nil {
		return err
	}
	if action == nil {
		fmt.Println("nothing to do")
		return nil
	}
	return printJSON(action)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	addCmd.Flags().String("parent", "", "parent work item id (omit for a root item)")
}
