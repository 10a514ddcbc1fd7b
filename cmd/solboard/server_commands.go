package main

import (
	"context"
	"fmt"
	"time"

	"github.com/brojonat/solboard/client"
	"github.com/urfave/cli/v2"
)

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check server health",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 5 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			serverURL := c.String("server-url")
			if serverURL == "" {
				return fmt.Errorf("server-url is required (set SERVER_URL env var or use --server-url)")
			}

			ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
			defer cancel()

			if err := client.NewClient(serverURL, nil, nil).Health(ctx); err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}

			fmt.Printf("✓ Server is healthy\n")
			fmt.Printf("  URL: %s\n", serverURL)
			return nil
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show CLI and server version information",
		Action: func(c *cli.Context) error {
			fmt.Printf("solboard CLI\n")
			fmt.Printf("  Version: %s\n", version)
			fmt.Printf("  Commit:  %s\n", commit)
			fmt.Printf("  Built:   %s\n", date)

			serverURL := c.String("server-url")
			if serverURL == "" {
				return nil
			}

			ctx, cancel := context.WithTimeout(c.Context, 5*time.Second)
			defer cancel()

			v, err := client.NewClient(serverURL, nil, nil).Version(ctx)
			if err != nil {
				fmt.Printf("solboard server (%s)\n  unreachable: %v\n", serverURL, err)
				return nil
			}
			fmt.Printf("solboard server (%s)\n", serverURL)
			fmt.Printf("  Version: %s\n", v)
			return nil
		},
	}
}
