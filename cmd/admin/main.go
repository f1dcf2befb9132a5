package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"

	"github.com/tendant/simple-persist/pkg/persistence"
	"github.com/tendant/simple-persist/pkg/persistence/config"
	"github.com/tendant/simple-persist/pkg/persistence/container"
	"github.com/tendant/simple-persist/pkg/persistence/document"
)

const usage = `Simple Persist Admin CLI

Inspect persistence URIs and manage persisted documents.

USAGE:
  admin <command> [options]

COMMANDS:
  parse <uri>                         Show engine, path, namespace and name of a URI
  persist <namespace> [name] [file]   Persist a JSON document read from file (or stdin)
  get <uri>|<namespace>/<name>        Print a persisted document
  unpersist <namespace> <name>        Remove a persisted document
  list [namespace]                    List catalog records

ENVIRONMENT VARIABLES:
  DATABASE_URL       PostgreSQL connection string (default: in-memory catalog)
  DB_SCHEMA          PostgreSQL schema name
  STORAGE_URL        memory://, file:///dir, bolt:///file.db or s3://bucket?region=...
  DEFAULT_NAMESPACE  Namespace for documents persisted without one
  KEY_LAYOUT         flat or sharded

  Configuration can be loaded from a .env file in the current directory.
  Command line environment variables override .env file values.

  With the in-memory catalog only "parse" and "get <uri>" see documents
  persisted by earlier invocations.

OPTIONS:
  --overwrite        Replace an existing document (persist only)
  --json             Output as JSON
  --verbose          Log persistence events to stderr
`

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Print(usage + "\n")
		os.Exit(1)
	}

	command := os.Args[1]

	// Check for help
	if command == "help" || command == "--help" || command == "-h" {
		fmt.Print(usage + "\n")
		os.Exit(0)
	}

	args, flags := splitArgs(os.Args[2:])

	level := slog.LevelWarn
	if flags["verbose"] {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if command == "parse" {
		handleParse(args, flags["json"])
		return
	}

	ctx := context.Background()
	mgr, err := createManager(ctx, logger)
	if err != nil {
		log.Fatalf("Failed to create persistence manager: %v", err)
	}
	defer mgr.Close()

	switch command {
	case "persist":
		handlePersist(ctx, mgr, args, flags["overwrite"], flags["json"])
	case "get":
		handleGet(ctx, mgr, args)
	case "unpersist":
		handleUnpersist(ctx, mgr, args)
	case "list":
		handleList(ctx, mgr, args, flags["json"])
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage + "\n")
		os.Exit(1)
	}
}

func createManager(ctx context.Context, logger *slog.Logger) (*container.Manager, error) {
	cfg, err := config.Load(config.WithEnv(""))
	if err != nil {
		return nil, err
	}
	return cfg.BuildManager(ctx, logger)
}

// splitArgs separates positional arguments from --flags
func splitArgs(raw []string) ([]string, map[string]bool) {
	var args []string
	flags := map[string]bool{}
	for _, arg := range raw {
		if name, ok := strings.CutPrefix(arg, "--"); ok {
			key, value, found := strings.Cut(name, "=")
			enabled := true
			if found {
				enabled, _ = strconv.ParseBool(value)
			}
			flags[key] = enabled
			continue
		}
		args = append(args, arg)
	}
	return args, flags
}

func handleParse(args []string, useJSON bool) {
	if len(args) != 1 {
		log.Fatal("usage: admin parse <uri>")
	}
	uri, err := persistence.Parse(args[0])
	if err != nil {
		log.Fatalf("Failed to parse URI: %v", err)
	}

	view := map[string]string{
		"engine":     uri.Engine(),
		"path":       uri.Path(),
		"namespace":  uri.Namespace(),
		"name":       uri.Name(),
		"uri":        uri.String(),
		"global_uri": uri.URI(),
	}
	if useJSON {
		printJSON(view)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, key := range []string{"engine", "path", "namespace", "name", "uri", "global_uri"} {
		fmt.Fprintf(w, "%s\t%s\n", strings.ToUpper(key), view[key])
	}
	w.Flush()
}

func handlePersist(ctx context.Context, mgr *container.Manager, args []string, overwrite, useJSON bool) {
	if len(args) < 1 || len(args) > 3 {
		log.Fatal("usage: admin persist <namespace> [name] [file]")
	}

	var name string
	if len(args) > 1 {
		name = args[1]
	}

	input := io.Reader(os.Stdin)
	if len(args) == 3 {
		f, err := os.Open(args[2])
		if err != nil {
			log.Fatalf("Failed to open %s: %v", args[2], err)
		}
		defer f.Close()
		input = f
	}
	body, err := io.ReadAll(input)
	if err != nil {
		log.Fatalf("Failed to read document: %v", err)
	}

	doc := document.New(mgr, args[0], name)
	doc.Body = json.RawMessage(body)

	uri, err := doc.Persist(ctx, overwrite)
	if err != nil {
		log.Fatalf("Failed to persist document: %v", err)
	}

	if useJSON {
		printJSON(map[string]string{"id": doc.GlobalID().String(), "uri": uri.String(), "global_uri": doc.URI()})
		return
	}
	fmt.Println(uri.String())
}

func handleGet(ctx context.Context, mgr *container.Manager, args []string) {
	if len(args) != 1 {
		log.Fatal("usage: admin get <uri>|<namespace>/<name>")
	}

	doc := document.New(mgr, "", "")
	var err error
	if strings.Contains(args[0], "://") {
		var uri *persistence.URI
		uri, err = persistence.Parse(args[0])
		if err == nil {
			_, err = mgr.Load(ctx, uri, doc)
		}
	} else {
		namespace, name, ok := strings.Cut(args[0], "/")
		if !ok {
			log.Fatal("usage: admin get <uri>|<namespace>/<name>")
		}
		_, err = mgr.LoadByName(ctx, "", namespace, name, doc)
	}
	if err != nil {
		log.Fatalf("Failed to load document: %v", err)
	}

	printJSON(doc)
}

func handleUnpersist(ctx context.Context, mgr *container.Manager, args []string) {
	if len(args) != 2 {
		log.Fatal("usage: admin unpersist <namespace> <name>")
	}

	doc := document.New(mgr, args[0], args[1])
	if err := doc.Unpersist(ctx); err != nil {
		log.Fatalf("Failed to unpersist document: %v", err)
	}
	fmt.Printf("Removed %s\n", doc.URI())
}

func handleList(ctx context.Context, mgr *container.Manager, args []string, useJSON bool) {
	var namespace string
	if len(args) > 0 {
		namespace = args[0]
	}

	records, err := mgr.List(ctx, namespace)
	if err != nil {
		log.Fatalf("Failed to list records: %v", err)
	}

	if useJSON {
		printJSON(records)
		return
	}

	// Table output
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tNAMESPACE\tNAME\tTYPE\tSIZE\tURI\tUPDATED\n")
	for _, record := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			record.ID.String()[:8]+"...",
			truncate(record.Namespace, 20),
			truncate(record.Name, 30),
			record.ObjectType,
			record.Size,
			record.URI,
			record.UpdatedAt.Format("2006-01-02 15:04:05"),
		)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d\n", len(records))
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
	fmt.Println(string(data))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
