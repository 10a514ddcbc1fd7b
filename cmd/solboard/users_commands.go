package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/brojonat/solboard/client"
	"github.com/brojonat/solboard/service/ranking"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

func usersCommands() *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Creator leaderboard commands",
		Subcommands: []*cli.Command{
			usersListCommand(),
			usersMetricsCommand(),
		},
	}
}

func usersListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Usage:   "Rank creators by a metric",
		Aliases: []string{"ls"},
		Description: `Rank the server's creators.

Example:
  solboard users list --query cool --sort revenue --metrics followers,revenue,posts`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "query",
				Aliases: []string{"q"},
				Usage:   "Filter by username or display name substring",
			},
			&cli.StringFlag{
				Name:    "sort",
				Aliases: []string{"s"},
				Usage:   "Metric to rank by (defaults to the server's default)",
			},
			&cli.StringSliceFlag{
				Name:    "metrics",
				Aliases: []string{"m"},
				Usage:   "Metrics to display (comma separated or repeated)",
			},
			&cli.StringFlag{
				Name:  "toggle",
				Usage: "Select or deselect one metric on top of --metrics",
			},
		},
		Action: func(c *cli.Context) error {
			cl := client.NewClient(c.String("server-url"), nil, nil)
			page, err := cl.Users(c.Context, client.UsersParams{
				Query:   c.String("query"),
				Sort:    c.String("sort"),
				Metrics: c.StringSlice("metrics"),
				Toggle:  c.String("toggle"),
			})
			if err != nil {
				return fmt.Errorf("failed to list users: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(page)
			}

			printPage(os.Stdout, page)
			fmt.Fprintf(os.Stderr, "\nShowing %d of %d creators, sorted by %s\n", len(page.Rows), page.Total, page.Sort)
			return nil
		},
	}
}

func usersMetricsCommand() *cli.Command {
	return &cli.Command{
		Name:  "metrics",
		Usage: "List the metrics creators can be ranked by",
		Action: func(c *cli.Context) error {
			cl := client.NewClient(c.String("server-url"), nil, nil)
			defs, err := cl.MetricDefinitions(c.Context)
			if err != nil {
				return fmt.Errorf("failed to get metric definitions: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(defs)
			}

			defaults := make(map[string]bool, len(defs.DefaultDisplay))
			for _, id := range defs.DefaultDisplay {
				defaults[id] = true
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CATEGORY\tID\tLABEL\tKIND\tDEFAULT")
			for _, cat := range defs.Categories {
				for _, m := range cat.Metrics {
					mark := ""
					switch {
					case m.ID == defs.DefaultSort:
						mark = "sort"
					case defaults[m.ID]:
						mark = "shown"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", cat.Name, m.ID, m.Label, m.Kind, mark)
				}
			}
			return w.Flush()
		},
	}
}

// printPage renders a leaderboard page as a table. The sorted column's
// header is highlighted.
func printPage(out io.Writer, page *ranking.Page) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	headers := []string{"RANK", "USERNAME", "NAME"}
	for _, col := range page.Columns {
		label := strings.ToUpper(col.Label)
		if col.Sorted {
			label += " ▼"
		}
		headers = append(headers, label)
	}
	fmt.Fprintln(w, strings.Join(headers, "\t"))

	for _, row := range page.Rows {
		fields := []string{fmt.Sprintf("%d", row.Rank), row.Username, row.DisplayName}
		for _, cell := range row.Cells {
			if cell.MetricID == page.Sort {
				fields = append(fields, color.New(color.Bold).Sprint(cell.Display))
				continue
			}
			fields = append(fields, cell.Display)
		}
		fmt.Fprintln(w, strings.Join(fields, "\t"))
	}
	w.Flush()
}
