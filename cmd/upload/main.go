// Command upload copies a local folder into the object store under
// raw/<family>/ and, unless -process=false, ingests the uploaded objects.
package main

import (
	"context"
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
		dir     = flag.String("dir", "", "local folder to upload (required)")
		source  = flag.String("source", ingest.BulkSource, "source tag recorded in object metadata")
		owner   = flag.String("owner", "", "owner recorded as uploaded_by (overrides ingest.owner)")
		process = flag.Bool("process", true, "ingest the uploaded objects after the upload")
	)
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "upload: -dir is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fatalf("config: %v", err)
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

	bulk := &ingest.Bulk{
		Store:   env.Store,
		Catalog: env.Catalog,
		Owner:   cfg.Ingest.Owner,
		Source:  *source,
		Log:     env.Log,
	}
	rep, err := bulk.UploadDir(ctx, *dir)
	if err != nil {
		env.Close()
		fatalf("upload: %v", err)
	}
	fmt.Printf("batch %s: uploaded=%d skipped=%d failed=%d\n", rep.BatchID, len(rep.Uploaded), len(rep.Skipped), len(rep.Failed))
	for _, u := range rep.Uploaded {
		fmt.Printf("  %-8s %8d  %s\n", u.Family, u.Size, u.ObjectPath)
	}
	for _, s := range rep.Skipped {
		fmt.Printf("  skipped  %s\n", s)
	}
	for _, ferr := range rep.Failed {
		fmt.Fprintf(os.Stderr, "error: %v\n", ferr)
	}

	failed := len(rep.Failed)
	if *process && len(rep.Uploaded) > 0 {
		sum, err := env.Runner().Run(ctx, rep.Paths())
		if err != nil {
			env.Close()
			fatalf("ingest: %v", err)
		}
		fmt.Printf("run %s: processed=%d duplicate=%d degraded=%d failed=%d\n",
			sum.RunID,
			sum.Counts[ingest.StatusProcessed],
			sum.Counts[ingest.StatusDuplicate],
			sum.Counts[ingest.StatusDegraded],
			sum.Counts[ingest.StatusFailed]+sum.Counts[ingest.StatusUnsupported],
		)
		for _, ferr := range sum.Failed {
			fmt.Fprintf(os.Stderr, "error: %v\n", ferr)
		}
		failed += len(sum.Failed)
	}
	if failed > 0 {
		env.Close()
		os.Exit(3)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
