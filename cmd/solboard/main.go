package main

import (
	"fmt"
	"log"
	"os"

	"github.com/brojonat/solboard/service/config"
	"github.com/brojonat/solboard/service/solana"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "solboard",
		Usage: "Solana wallet explorer and creator leaderboard CLI",
		Description: `A command-line tool for the solboard service.

Use this CLI to fetch wallet histories straight from an RPC node, drive the
HTTP API, inspect the database and follow committed lookups over NATS or SSE.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			walletCommands(),
			usersCommands(),
			// Database inspection commands
			{
				Name:  "db",
				Usage: "Database inspection commands",
				Subcommands: []*cli.Command{
					migrateCommand(),
					listCreatorsCommand(),
					listLookupsCommand(),
					pruneLookupsCommand(),
				},
			},
			// NATS lookup streaming commands
			{
				Name:  "nats",
				Usage: "NATS lookup streaming commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
					inspectStreamCommand(),
				},
			},
			// SSE streaming commands
			sseCommands(),
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "solboard server URL",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.StringSliceFlag{
				Name:    "rpc-url",
				Usage:   "Solana RPC endpoint (repeat for a pool)",
				EnvVars: []string{"SOLANA_RPC_URL"},
				Value:   cli.NewStringSlice(config.DefaultSolanaRPCURL),
			},
			&cli.StringFlag{
				Name:    "cluster",
				Usage:   "Cluster for explorer links (mainnet-beta, devnet, testnet)",
				EnvVars: []string{"SOLANA_CLUSTER"},
				Value:   solana.ClusterMainnet,
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}
}
