// Command ingest processes objects already in the object store: one object,
// every object under a prefix, or (by default) everything under raw/.
//
// Exit codes:
//
//   - 0: every object was processed, deduplicated or degraded
//   - 1: setup failed or the run was interrupted
//   - 3: at least one object failed (details on stderr)
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"lakehouse/internal/app"
	"lakehouse/internal/config"
	"lakehouse/internal/ingest"

	// register all catalog backends; the config selects one.
	_ "lakehouse/internal/storage/all"
)

func main() {
	var (
		cfgPath = flag.String("config", os.Getenv("LAKEHOUSE_CONFIG"), "YAML config path (optional)")
		object  = flag.String("object", "", "process a single object path")
		prefix  = flag.String("prefix", ingest.RawPrefix, "process every object under this prefix")
		workers = flag.Int("workers", 0, "worker count (overrides ingest.workers)")
		owner   = flag.String("owner", "", "owner recorded as uploaded_by (overrides ingest.owner)")
		asJSON  = flag.Bool("json", false, "print the run summary as JSON")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fatalf("config: %v", err)
	}
	if *workers > 0 {
		cfg.Ingest.Workers = *workers
	}
	if *owner != "" {
		cfg.Ingest.Owner = *owner
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := app.Open(ctx, cfg)
	if err != nil {
		fatalf("%v", err)
	}
	defer env.Close()

	runner := env.Runner()
	var sum *ingest.Summary
	if *object != "" {
		sum, err = runner.Run(ctx, []string{*object})
	} else {
		sum, err = runner.RunPrefix(ctx, *prefix)
	}
	if err != nil {
		env.Close()
		fatalf("ingest: %v", err)
	}

	if *asJSON {
		printJSON(sum)
	} else {
		printSummary(sum)
	}
	for _, ferr := range sum.Failed {
		fmt.Fprintf(os.Stderr, "error: %v\n", ferr)
	}
	if len(sum.Failed) > 0 {
		env.Close()
		os.Exit(3)
	}
}

func printSummary(sum *ingest.Summary) {
	fmt.Printf("run %s: %d objects in %s\n", sum.RunID, len(sum.Results), sum.Elapsed)
	for _, st := range []ingest.Status{ingest.StatusProcessed, ingest.StatusDuplicate, ingest.StatusDegraded, ingest.StatusUnsupported, ingest.StatusFailed} {
		if n := sum.Counts[st]; n > 0 {
			fmt.Printf("  %-11s %d\n", st, n)
		}
	}
	for _, r := range sum.Results {
		fmt.Printf("%-11s %-8s %s\n", r.Status, r.Family, r.Path)
		for _, w := range r.Warnings {
			fmt.Printf("    warning: %v\n", w)
		}
	}
}

type resultJSON struct {
	Path     string   `json:"path"`
	Family   string   `json:"family,omitempty"`
	Hash     string   `json:"hash,omitempty"`
	Status   string   `json:"status"`
	Tables   int      `json:"tables"`
	Warnings []string `json:"warnings,omitempty"`
	Error    string   `json:"error,omitempty"`
}

func printJSON(sum *ingest.Summary) {
	out := struct {
		RunID   string         `json:"run_id"`
		Elapsed string         `json:"elapsed"`
		Counts  map[string]int `json:"counts"`
		Results []resultJSON   `json:"results"`
	}{RunID: sum.RunID, Elapsed: sum.Elapsed.String(), Counts: map[string]int{}}
	for st, n := range sum.Counts {
		out.Counts[string(st)] = n
	}
	failures := map[string]string{}
	for _, err := range sum.Failed {
		var oe *ingest.ObjectError
		if errors.As(err, &oe) {
			failures[oe.Path] = err.Error()
		}
	}
	for _, r := range sum.Results {
		rj := resultJSON{Path: r.Path, Family: string(r.Family), Hash: r.Hash, Status: string(r.Status), Tables: len(r.Tables)}
		for _, w := range r.Warnings {
			rj.Warnings = append(rj.Warnings, w.Error())
		}
		rj.Error = failures[r.Path]
		out.Results = append(out.Results, rj)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fatalf("encode summary: %v", err)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
