// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package main implements the roam CLI: a local, incremental code
// intelligence engine that indexes a repository's structure and git
// history into an embedded SQLite store, then answers dependency,
// health, and architecture questions from it.
//
// Usage:
//
//	roam init                       Create .roam/project.yaml
//	roam index [--full]             Index (or re-index) the repository
//	roam index --metrics-addr=...   Serve Prometheus metrics while indexing
//	roam status [--json]            Show project status
//	roam reset                      Delete local project data
//	roam query deps <symbol>        Show dependency edges for a symbol
//	roam query affected <files...>  Show the blast radius of a change
//	roam query dead                 List unreferenced symbols
//	roam query cycles               List dependency cycles
//	roam query layers               List layering violations
//	roam query clusters             List detected clusters
//	roam query spectral             Show the spectral bisection
//	roam query hotspots             Rank files by churn x complexity
//	roam query darkmatter           List undeclared co-change couplings
//	roam query snapshot             Record a point-in-time summary
//	roam gate                       Evaluate rules and exit non-zero on failure
//	roam workspace add <n> <root>   Register an indexed repo in the multi-repo overlay
//	roam workspace routes <n>       List a registered repo's route symbols
//	roam workspace cross <a> <b>    Resolve cross-language bridge edges between two repos
package main

import (
	"flag"
	"fmt"
	"os"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GlobalFlags are the flags recognized before the subcommand name and
// threaded through to every subcommand's progress/output configuration.
type GlobalFlags struct {
	JSON    bool
	Agent   bool
	Quiet   bool
	NoColor bool
	Config  string
}

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version and exit")
		jsonOut     = flag.Bool("json", false, "Emit the query envelope as JSON")
		agentOut    = flag.Bool("agent", false, "Emit the compact agent-mode envelope (implies --json)")
		quiet       = flag.Bool("q", false, "Suppress progress output")
		noColor     = flag.Bool("no-color", false, "Disable colored output")
		configPath  = flag.String("config", "", "Path to .roam/project.yaml (default: ./.roam/project.yaml)")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `roam - local code intelligence engine

Usage:
  roam <command> [options]

Commands:
  init       Create .roam/project.yaml configuration
  index      Index (or re-index) the current repository
  status     Show project status
  reset      Delete local project data (destructive!)
  query      Run a read-only query against the index
  gate       Evaluate rules and fail the build on violations
  workspace  Manage the multi-repo overlay (add/list/routes/cross)

Query subcommands:
  deps <symbol>         Show what a symbol depends on and what depends on it
  affected <files...>   Show the blast radius of changing files
  dead                  List symbols nothing references
  cycles                List dependency cycles
  layers                List layering violations
  clusters              List detected module clusters
  spectral               Show the current spectral bisection
  hotspots               Rank files by churn x complexity
  darkmatter              List undeclared co-change couplings
  snapshot                Record a point-in-time project summary

Global Options:
  --json        Emit machine-readable JSON envelopes
  --agent       Emit the compact agent-mode envelope (implies --json)
  -q            Suppress progress output
  --no-color    Disable colored output
  --config      Path to .roam/project.yaml
  --version     Show version and exit

Examples:
  roam init
  roam index
  roam index --full
  roam index --metrics-addr=:9090
  roam status --json
  roam query deps myFunction
  roam query cycles --json
  roam gate

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("roam version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	globals := GlobalFlags{
		JSON:    *jsonOut || *agentOut,
		Agent:   *agentOut,
		Quiet:   *quiet || *jsonOut || *agentOut,
		NoColor: *noColor,
		Config:  *configPath,
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "init":
		runInit(cmdArgs, globals)
	case "index":
		runIndex(cmdArgs, globals)
	case "status":
		runStatus(cmdArgs, globals)
	case "reset":
		runReset(cmdArgs, globals)
	case "query":
		runQuery(cmdArgs, globals)
	case "gate":
		runGate(cmdArgs, globals)
	case "workspace":
		runWorkspace(cmdArgs, globals)
	default:
		fmt.Fprintf(os.Stderr, "roam: unknown command %q\n", command)
		flag.Usage()
		os.Exit(2)
	}
}
