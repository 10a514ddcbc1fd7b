package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/brojonat/solboard/service/db"
	"github.com/brojonat/solboard/service/solana"
	"github.com/urfave/cli/v2"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create the creators and lookups tables if missing",
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			if err := store.EnsureSchema(c.Context); err != nil {
				return err
			}
			fmt.Println("Schema is up to date")
			return nil
		},
	}
}

func listCreatorsCommand() *cli.Command {
	return &cli.Command{
		Name:    "creators",
		Usage:   "List stored creators",
		Aliases: []string{"ls"},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Show every stored metric value",
			},
		},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			creators, err := store.ListCreators(c.Context)
			if err != nil {
				return fmt.Errorf("failed to list creators: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(creators)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSERNAME\tDISPLAY NAME\tMETRICS\tUPDATED")
			for _, cr := range creators {
				metrics := fmt.Sprintf("%d", len(cr.Metrics))
				if c.Bool("verbose") {
					metrics = metricSummary(cr.Metrics)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					cr.ID,
					cr.Username,
					cr.DisplayName,
					metrics,
					cr.UpdatedAt.Format(time.RFC3339),
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d creators\n", len(creators))
			return nil
		},
	}
}

func listLookupsCommand() *cli.Command {
	return &cli.Command{
		Name:  "lookups",
		Usage: "List recorded wallet lookups, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "address",
				Aliases: []string{"a"},
				Usage:   "Only show lookups of this wallet",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Value:   50,
				Usage:   "Maximum number of lookups to show",
			},
		},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			lookups, err := store.ListLookups(c.Context, db.ListLookupsParams{
				Address: c.String("address"),
				Limit:   int32(c.Int("limit")),
			})
			if err != nil {
				return fmt.Errorf("failed to list lookups: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(lookups)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "COMPLETED\tSESSION\tGEN\tADDRESS\tSTATUS\tBALANCE\tTXNS\tDURATION")
			for _, l := range lookups {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%d\t%s\n",
					l.CompletedAt.Format(time.RFC3339),
					shortID(l.SessionID),
					l.Generation,
					l.Address,
					lookupStatus(l.Success, l.Error),
					solana.SOL(l.Balance),
					l.Transactions,
					l.Duration,
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d lookups\n", len(lookups))
			return nil
		},
	}
}

func pruneLookupsCommand() *cli.Command {
	return &cli.Command{
		Name:  "prune-lookups",
		Usage: "Delete lookups older than a given age",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "older-than",
				Value: 30 * 24 * time.Hour,
				Usage: "Age beyond which lookups are deleted",
			},
		},
		Action: func(c *cli.Context) error {
			age := c.Duration("older-than")
			if age <= 0 {
				return fmt.Errorf("older-than must be positive")
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			n, err := store.DeleteLookupsOlderThan(c.Context, time.Now().Add(-age))
			if err != nil {
				return fmt.Errorf("failed to prune lookups: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(map[string]int64{"deleted": n})
			}
			fmt.Printf("Deleted %d lookups older than %s\n", n, age)
			return nil
		},
	}
}

// getStore creates a database store from the CLI context.
func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	pool, err := db.Connect(context.Background(), dbURL)
	if err != nil {
		return nil, nil, err
	}

	store := db.NewStore(pool, nil)
	closer := func() { pool.Close() }

	return store, closer, nil
}

// outputJSON writes v to stdout as indented JSON.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// metricSummary renders a creator's metrics as "id=value" pairs in id order.
func metricSummary(metrics map[string]int64) string {
	ids := make([]string, 0, len(metrics))
	for id := range metrics {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%s=%d", id, metrics[id])
	}
	return strings.Join(parts, " ")
}
