// Command probe reads a local file or URL the way the ingest engine would
// and prints the inferred table: format, encoding, sanitized columns with
// their types, and a per-column uniqueness report.
//
// Nothing is uploaded and no catalog is opened, so probe is safe to point at
// production exports before ingesting them.
//
// Output modes
//
//   - Default: a human-readable report on stdout.
//   - -json: the report as JSON, for scripting.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"lakehouse/internal/probe"
)

func main() {
	var (
		flagURL        = flag.String("url", "", "path or URL of the source file (CSV, JSON/NDJSON or Parquet)")
		flagBytes      = flag.Int("bytes", 0, "bytes to read from the start of the source (0 = up to 64MiB)")
		flagConfidence = flag.Float64("confidence", 0, "minimum encoding detector confidence (0 = default)")
		flagInsecure   = flag.Bool("allow-insecure", false, "skip TLS verification for https sources")
		flagJSON       = flag.Bool("json", false, "print the report as JSON")
		flagPretty     = flag.Bool("pretty", true, "indent JSON output")
	)
	flag.Parse()

	if strings.TrimSpace(*flagURL) == "" {
		fmt.Fprintln(os.Stderr, "missing -url")
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	rep, err := probe.Run(ctx, probe.Options{
		Source:           *flagURL,
		MaxBytes:         *flagBytes,
		MinConfidence:    *flagConfidence,
		AllowInsecureTLS: *flagInsecure,
	})
	if err != nil {
		cancel()
		fatalf("%v", err)
	}

	if !*flagJSON {
		fmt.Fprint(os.Stdout, rep.Text())
		return
	}
	enc := json.NewEncoder(os.Stdout)
	if *flagPretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(rep); err != nil {
		fatalf("encode report: %v", err)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
