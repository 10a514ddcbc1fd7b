package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brojonat/solboard/client"
	"github.com/brojonat/solboard/service/solana"
	"github.com/fatih/color"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

func walletCommands() *cli.Command {
	return &cli.Command{
		Name:  "wallet",
		Usage: "Wallet history commands",
		Subcommands: []*cli.Command{
			walletHistoryCommand(),
			walletLookupCommand(),
			walletLookupsCommand(),
		},
	}
}

func walletHistoryCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "Fetch a wallet's recent transactions",
		ArgsUsage: "WALLET_ADDRESS",
		Description: `Fetch the balance and recent transactions of a wallet.

By default the history is fetched directly from the RPC endpoints given by
--rpc-url. With --via-server the solboard server fetches it instead.

--jq filters keep only the transactions for which every filter is truthy.
Each filter runs against the transaction's JSON form.

Example:
  solboard wallet history --limit 20 --policy heuristic \
    --jq '.success' --jq '.classification.kind == "swap"' \
    9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Value:   solana.DefaultSignatureLimit,
				Usage:   "Number of recent signatures to fetch (1-1000)",
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Value: solana.DefaultBatchSize,
				Usage: "Transactions fetched concurrently per batch",
			},
			&cli.DurationFlag{
				Name:  "delay",
				Value: solana.DefaultInterBatchDelay,
				Usage: "Pause between batches (negative disables pacing)",
			},
			&cli.StringFlag{
				Name:  "policy",
				Value: string(solana.PolicyStructural),
				Usage: "Classifier policy (structural, heuristic)",
			},
			&cli.StringSliceFlag{
				Name:  "jq",
				Usage: "jq filter transactions must satisfy (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "via-server",
				Usage: "Fetch through the solboard server instead of RPC",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Show balance changes and logs",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 2 * time.Minute,
				Usage: "Overall fetch timeout",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("wallet address is required")
			}
			address := c.Args().First()

			policy, err := solana.ParsePolicy(c.String("policy"))
			if err != nil {
				return err
			}
			filters, err := compileFilters(c.StringSlice("jq"))
			if err != nil {
				return err
			}

			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelError, // Only errors to stderr
			}))

			ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
			defer cancel()

			var snapshot *solana.WalletSnapshot
			if c.Bool("via-server") {
				cl := client.NewClient(c.String("server-url"), nil, logger)
				snapshot, err = cl.History(ctx, address, client.HistoryParams{
					Limit:     c.Int("limit"),
					BatchSize: c.Int("batch-size"),
					Delay:     c.Duration("delay"),
					Policy:    policy,
				})
			} else {
				rpcClient, perr := solana.NewEndpointPool(c.StringSlice("rpc-url"))
				if perr != nil {
					return perr
				}
				sc := solana.NewClient(rpcClient, c.String("cluster"), nil, logger).
					WithClassifier(solana.ClassifierForPolicy(policy)).
					WithCluster(c.String("cluster"))
				snapshot, err = sc.FetchWalletHistory(ctx, address, solana.HistoryOptions{
					SignatureLimit:  c.Int("limit"),
					BatchSize:       c.Int("batch-size"),
					InterBatchDelay: c.Duration("delay"),
				})
			}
			if err != nil {
				return fmt.Errorf("failed to fetch history: %w", err)
			}

			snapshot.Transactions, err = filterRecords(snapshot.Transactions, filters)
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return outputJSON(snapshot)
			}
			printSnapshot(os.Stdout, snapshot, c.Bool("verbose"))
			return nil
		},
	}
}

func walletLookupCommand() *cli.Command {
	return &cli.Command{
		Name:      "lookup",
		Usage:     "Run a lookup through the server's session API",
		ArgsUsage: "WALLET_ADDRESS",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("wallet address is required")
			}

			cl := client.NewClient(c.String("server-url"), nil, nil)
			result, err := cl.Lookup(c.Context, c.Args().First())
			if result == nil {
				return err
			}

			if c.Bool("json") {
				if encErr := outputJSON(result); encErr != nil {
					return encErr
				}
				return err
			}

			fmt.Printf("Session:    %s\n", result.SessionID)
			fmt.Printf("Generation: %d\n", result.State.Generation)
			if errors.Is(err, client.ErrSuperseded) {
				fmt.Println(color.YellowString("Superseded by a newer lookup; showing its state."))
			}
			if result.State.Err != "" {
				fmt.Println(color.RedString("Error: %s", result.State.Err))
			}
			if result.State.Snapshot != nil {
				printSnapshot(os.Stdout, result.State.Snapshot, false)
			}
			return err
		},
	}
}

func walletLookupsCommand() *cli.Command {
	return &cli.Command{
		Name:      "lookups",
		Usage:     "List audited lookups from the server",
		ArgsUsage: "[WALLET_ADDRESS]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Value:   50,
				Usage:   "Maximum number of lookups to return",
			},
		},
		Action: func(c *cli.Context) error {
			cl := client.NewClient(c.String("server-url"), nil, nil)
			records, err := cl.Lookups(c.Context, c.Args().First(), c.Int("limit"))
			if err != nil {
				return fmt.Errorf("failed to list lookups: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(records)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "COMPLETED\tADDRESS\tSTATUS\tBALANCE\tTXNS\tDURATION")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
					r.CompletedAt.Format(time.RFC3339),
					r.Address,
					lookupStatus(r.Success, r.Error),
					r.Balance,
					r.Transactions,
					time.Duration(r.DurationMS)*time.Millisecond,
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d lookups\n", len(records))
			return nil
		},
	}
}

func lookupStatus(success bool, errMsg *string) string {
	if success {
		return "ok"
	}
	if errMsg != nil {
		return "error: " + *errMsg
	}
	return "error"
}

// compileFilters parses and compiles jq filter expressions.
func compileFilters(filters []string) ([]*gojq.Code, error) {
	compiled := make([]*gojq.Code, len(filters))
	for i, filter := range filters {
		query, err := gojq.Parse(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
		}
		compiled[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}
	}
	return compiled, nil
}

// filterRecords keeps the records for which every filter yields a truthy
// first result. Filter runtime errors count as a mismatch.
func filterRecords(records []solana.TransactionRecord, filters []*gojq.Code) ([]solana.TransactionRecord, error) {
	if len(filters) == 0 {
		return records, nil
	}

	kept := make([]solana.TransactionRecord, 0, len(records))
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal transaction %s: %w", rec.Signature, err)
		}
		var doc interface{}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode transaction %s: %w", rec.Signature, err)
		}

		match := true
		for _, code := range filters {
			v, ok := code.Run(doc).Next()
			if !ok {
				match = false
				break
			}
			if _, isErr := v.(error); isErr || !isTruthy(v) {
				match = false
				break
			}
		}
		if match {
			kept = append(kept, rec)
		}
	}
	return kept, nil
}

// isTruthy checks if a jq result value is truthy.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	// Everything else (numbers, strings, objects, arrays) is truthy
	return true
}

func printSnapshot(out io.Writer, snap *solana.WalletSnapshot, verbose bool) {
	fmt.Fprintf(out, "Wallet:       %s\n", snap.Address)
	fmt.Fprintf(out, "Balance:      %s SOL\n", snap.Balance)
	fmt.Fprintf(out, "Transactions: %d", len(snap.Transactions))
	if snap.Dropped > 0 {
		fmt.Fprintf(out, " (%d unavailable)", snap.Dropped)
	}
	fmt.Fprintln(out)

	for _, rec := range snap.Transactions {
		fmt.Fprintln(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		status := color.GreenString("✓ success")
		if !rec.Success {
			status = color.RedString("✗ failed")
			if rec.Err != nil {
				status += " " + *rec.Err
			}
		}
		fmt.Fprintf(out, "Signature:  %s\n", rec.Signature)
		fmt.Fprintf(out, "Time:       %s (slot %d)\n", rec.Timestamp, rec.Slot)
		fmt.Fprintf(out, "Status:     %s\n", status)
		fmt.Fprintf(out, "Activity:   %s\n", color.CyanString(rec.Classification.Description))
		fmt.Fprintf(out, "Explorer:   %s\n", rec.Links.Solscan)

		if !verbose {
			continue
		}
		for _, bc := range rec.Classification.BalanceChanges {
			fmt.Fprintf(out, "  %s %s SOL\n", bc.Account, bc.Change)
		}
		for _, line := range rec.Classification.Logs {
			fmt.Fprintf(out, "  %s\n", color.HiBlackString(line))
		}
	}
}
