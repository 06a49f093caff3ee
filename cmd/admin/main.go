// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Package main is the Custodia admin CLI. It operates directly on the
// server's DuckDB file, so it runs on the server host while the server is
// stopped, or against a copy of the database for offline forensics.
//
// Subcommands:
//
//	token create -machine <name>    mint or rotate a machine's bearer token
//	token list                      list machines and their tokens
//	token delete -machine <name>    revoke a machine's token
//	machines                        list machines that have records
//	graph -sha256 <hash>            render a hash history chain
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tomtom215/custodia/internal/config"
	"github.com/tomtom215/custodia/internal/database"
	"github.com/tomtom215/custodia/internal/history"
	"github.com/tomtom215/custodia/internal/logging"
)

var version = "dev"

const usage = `custodia-admin - Custodia administration tool

Usage:
  custodia-admin [-db <path>] <command> [options]

Commands:
  token create -machine <name>   mint (or rotate) a machine's bearer token
  token list                     list registered machines and tokens
  token delete -machine <name>   revoke a machine's token
  machines                       list machines that have contributed records
  graph -sha256 <hash> [-fmt ascii|mermaid|dot|json] [-limit n]
                                 render the history chain of a content hash
  version                        print version
`

func main() {
	logging.Init(logging.Config{Level: "warn", Format: "console"})

	dbPath := flag.String("db", "/data/custodia.duckdb", "path to the DuckDB database file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if args[0] == "version" {
		fmt.Printf("custodia-admin %s\n", version)
		return
	}

	db, err := database.New(&config.DatabaseConfig{Path: *dbPath, MaxMemory: "512MB"})
	if err != nil {
		fatalf("open database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: close database: %v\n", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	switch args[0] {
	case "token":
		runToken(ctx, db, args[1:])
	case "machines":
		runMachines(ctx, db)
	case "graph":
		runGraph(ctx, db, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		flag.Usage()
		os.Exit(2)
	}
}

func runToken(ctx context.Context, db *database.DB, args []string) {
	if len(args) == 0 {
		fatalf("token requires a subcommand: create, list, delete")
	}

	switch args[0] {
	case "create":
		fs := flag.NewFlagSet("token create", flag.ExitOnError)
		machine := fs.String("machine", "", "machine name the token authenticates")
		_ = fs.Parse(args[1:])
		if *machine == "" {
			fatalf("token create requires -machine")
		}
		token, rotated, err := db.CreateOrRotateToken(ctx, *machine)
		if err != nil {
			fatalf("create token: %v", err)
		}
		if rotated {
			fmt.Printf("rotated token for %s: %s\n", *machine, token)
		} else {
			fmt.Printf("created token for %s: %s\n", *machine, token)
		}

	case "list":
		tokens, err := db.ListTokens(ctx)
		if err != nil {
			fatalf("list tokens: %v", err)
		}
		if len(tokens) == 0 {
			fmt.Println("no tokens registered")
			return
		}
		for _, tok := range tokens {
			fmt.Printf("%-30s %-40s created %s updated %s\n",
				tok.MachineName, tok.Token, tok.CreatedAt, tok.UpdatedAt)
		}

	case "delete":
		fs := flag.NewFlagSet("token delete", flag.ExitOnError)
		machine := fs.String("machine", "", "machine name whose token to revoke")
		_ = fs.Parse(args[1:])
		if *machine == "" {
			fatalf("token delete requires -machine")
		}
		deleted, err := db.DeleteToken(ctx, *machine)
		if err != nil {
			fatalf("delete token: %v", err)
		}
		if !deleted {
			fatalf("no token registered for %q", *machine)
		}
		fmt.Printf("revoked token for %s\n", *machine)

	default:
		fatalf("unknown token subcommand %q", args[0])
	}
}

func runMachines(ctx context.Context, db *database.DB) {
	machines, err := db.ListMachines(ctx)
	if err != nil {
		fatalf("list machines: %v", err)
	}
	if len(machines) == 0 {
		fmt.Println("no records yet")
		return
	}
	for _, m := range machines {
		fmt.Println(m)
	}
}

func runGraph(ctx context.Context, db *database.DB, args []string) {
	fs := flag.NewFlagSet("graph", flag.ExitOnError)
	sha := fs.String("sha256", "", "content hash to trace")
	fmtName := fs.String("fmt", "ascii", "render format: ascii, mermaid, dot, json")
	limit := fs.Int("limit", 0, "maximum records to include (0 = default)")
	_ = fs.Parse(args)
	if *sha == "" {
		fatalf("graph requires -sha256")
	}

	format, err := history.ParseFormat(*fmtName)
	if err != nil {
		fatalf("%v", err)
	}

	clamped := database.ClampLimit(*limit, database.DefaultGraphLimit, database.MaxGraphLimit)
	records, err := db.RecordsBySHA256(ctx, *sha, clamped)
	if err != nil {
		fatalf("query records: %v", err)
	}

	rendered, err := history.Render(history.BuildChain(*sha, records), format)
	if err != nil {
		fatalf("render chain: %v", err)
	}
	fmt.Println(rendered)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
