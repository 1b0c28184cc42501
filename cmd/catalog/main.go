// Command catalog queries the lakehouse catalog.
//
// Usage:
//
//	catalog search [-limit n] <query>
//	catalog stats [-owner name]
//	catalog show <object path>
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"lakehouse/internal/app"
	"lakehouse/internal/config"
	"lakehouse/internal/storage"

	// register all catalog backends; the config selects one.
	_ "lakehouse/internal/storage/all"
)

const usage = `usage: catalog [-config path] <command> [args]

commands:
  search [-limit n] <query>   find documents whose text or path contains query
  stats [-owner name]         storage and processing statistics
  show <object path>          print one catalog entry as JSON
`

func main() {
	fs := flag.NewFlagSet("catalog", flag.ExitOnError)
	cfgPath := fs.String("config", os.Getenv("LAKEHOUSE_CONFIG"), "YAML config path (optional)")
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	_ = fs.Parse(os.Args[1:])

	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fatalf("config: %v", err)
	}
	ctx := context.Background()
	env, err := app.Open(ctx, cfg)
	if err != nil {
		fatalf("%v", err)
	}
	defer env.Close()

	cmd, args := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "search":
		err = search(ctx, env, args, os.Stdout)
	case "stats":
		err = stats(ctx, env, args, os.Stdout)
	case "show":
		err = show(ctx, env, args, os.Stdout)
	default:
		env.Close()
		fmt.Fprintf(os.Stderr, "catalog: unknown command %q\n", cmd)
		fs.Usage()
		os.Exit(2)
	}
	if err != nil {
		env.Close()
		fatalf("catalog %s: %v", cmd, err)
	}
}

func search(ctx context.Context, env *app.Env, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	limit := fs.Int("limit", 10, "maximum number of hits")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("expected exactly one query")
	}
	hits, err := env.Catalog.Search(ctx, fs.Arg(0), *limit)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Fprintln(w, "no matches")
		return nil
	}
	for _, h := range hits {
		fmt.Fprintf(w, "[%s] %s (%s)\n    %s\n", h.Kind, h.ObjectPath, h.CreatedAt.Format("2006-01-02 15:04"), h.Preview)
	}
	return nil
}

func stats(ctx context.Context, env *app.Env, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	owner := fs.String("owner", "", "restrict to one owner")
	if err := fs.Parse(args); err != nil {
		return err
	}
	filter := storage.StatsFilter{Owner: *owner}

	perFormat, err := env.Catalog.StorageStats(ctx, filter)
	if err != nil {
		return err
	}
	proc, err := env.Catalog.ProcessingStats(ctx, filter)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FORMAT\tFILES\tTOTAL BYTES\tAVG BYTES")
	for _, s := range perFormat {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.0f\n", s.Format, s.Files, s.TotalBytes, s.AvgBytes)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\ndocuments cataloged: %d\n", proc.DocumentEntries)
	fmt.Fprintf(w, "text extracted:      %d (%.2f%%)\n", proc.TextExtracted, proc.ExtractionRate)
	fmt.Fprintf(w, "document texts:      %d\n", proc.Documents)
	fmt.Fprintf(w, "images:              %d\n", proc.Images)
	if len(proc.Daily) > 0 {
		fmt.Fprintf(w, "\nlast %d days:\n", storage.TrendDays)
		for _, d := range proc.Daily {
			fmt.Fprintf(w, "  %s  %-8s %d\n", d.Day.Format("2006-01-02"), d.Format, d.Count)
		}
	}
	return nil
}

func show(ctx context.Context, env *app.Env, args []string, w io.Writer) error {
	if len(args) != 1 {
		return errors.New("expected exactly one object path")
	}
	rec, err := env.Catalog.GetEntry(ctx, env.Store.Container(), args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		ID            int64          `json:"catalog_id"`
		Container     string         `json:"bucket_name"`
		ObjectPath    string         `json:"object_name"`
		SizeBytes     int64          `json:"object_size"`
		Format        string         `json:"file_format"`
		RowCount      *int64         `json:"row_count"`
		TextExtracted bool           `json:"text_extracted"`
		ContentHash   string         `json:"content_hash,omitempty"`
		Owner         string         `json:"uploaded_by,omitempty"`
		CreatedAt     string         `json:"created_at"`
		LastModified  string         `json:"last_modified"`
		Metadata      map[string]any `json:"metadata"`
	}{
		ID:            rec.ID,
		Container:     rec.Container,
		ObjectPath:    rec.ObjectPath,
		SizeBytes:     rec.SizeBytes,
		Format:        rec.Format,
		RowCount:      rec.RowCount,
		TextExtracted: rec.TextExtracted,
		ContentHash:   rec.ContentHash,
		Owner:         rec.Owner,
		CreatedAt:     rec.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		LastModified:  rec.LastModified.Format("2006-01-02T15:04:05Z07:00"),
		Metadata:      rec.Metadata,
	})
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
