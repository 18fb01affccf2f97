// Package cmd provides CLI command implementations for Prism.
package cmd

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rHedBull/prism/internal/artifact"
	"github.com/rHedBull/prism/internal/config"
	"github.com/rHedBull/prism/internal/diff"
	"github.com/rHedBull/prism/internal/export"
	"github.com/rHedBull/prism/internal/graph"
	"github.com/rHedBull/prism/internal/ingestion"
	"github.com/rHedBull/prism/internal/logging"
	"github.com/rHedBull/prism/internal/output"
	"github.com/rHedBull/prism/internal/plan"
	"github.com/rHedBull/prism/internal/storage"
	"github.com/rHedBull/prism/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

// runContext carries the streams, environment and global flags shared by
// every command.
type runContext struct {
	ctx    context.Context
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string

	verbose int
	quiet   bool
}

// config loads root's .prism.toml and applies PRISM_* variables on top.
func (rc *runContext) config(root string) (*config.Config, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(rc.getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// logger writes to stderr. -v and -q win over the configured level.
func (rc *runContext) logger(cfg *config.Config) *slog.Logger {
	level := logging.LevelFromString(cfg.LogLevel)
	if rc.quiet || rc.verbose > 0 {
		level = logging.LevelFromVerbosity(rc.verbose, rc.quiet)
	}
	return logging.New(rc.stderr, level)
}

func (rc *runContext) printf(format string, args ...any) {
	if !rc.quiet {
		fmt.Fprintf(rc.stdout, format, args...)
	}
}

func (rc *runContext) success(format string, args ...any) {
	color.New(color.FgGreen).Fprintf(rc.stdout, format+"\n", args...)
}

func (rc *runContext) progress(phase string, pct float64) {
	fmt.Fprintf(rc.stderr, "\r\033[K%s (%.0f%%)", phase, pct*100)
}

// BuildCmd builds the architecture graph of a source tree.
type BuildCmd struct {
	Path     string `arg:"" optional:"" default:"." help:"Path to repository"`
	Output   string `short:"o" help:"Output directory (default: <path>/.callgraph)"`
	Rev      string `help:"Build a git revision instead of the working tree"`
	Snapshot string `help:"Also save the graph to the snapshot store under this label"`
	Store    string `help:"Snapshot store directory"`
	Workers  int    `help:"Maximum files parsed concurrently"`
}

// Run executes the build command.
func (c *BuildCmd) Run(rc *runContext) error {
	root, err := repoRoot(c.Path)
	if err != nil {
		return err
	}
	cfg, err := rc.config(root)
	if err != nil {
		return err
	}
	if c.Workers > 0 {
		cfg.Workers = c.Workers
	}

	opts := cfg.BuildOptions(rc.logger(cfg))
	if !rc.quiet {
		opts.Progress = rc.progress
	}

	rc.printf("Analyzing %s...\n", root)
	var res *ingestion.Result
	if c.Rev != "" {
		res, err = ingestion.BuildRevision(rc.ctx, root, c.Rev, opts)
	} else {
		res, err = ingestion.BuildGraph(rc.ctx, root, opts)
	}
	if !rc.quiet {
		fmt.Fprintln(rc.stderr) // Newline after progress
	}
	if err != nil {
		return fmt.Errorf("building graph: %w", err)
	}

	outDir := resolvePath(root, c.Output, cfg.OutputDir)
	if err := output.WriteGraph(outDir, res.Graph); err != nil {
		return err
	}

	rc.success("Graph written to %s/", outDir)
	rc.printf("  %d nodes\n", len(res.Graph.Nodes))
	rc.printf("  %d edges\n", len(res.Graph.Edges))
	rc.printf("  %d files, %d declarations in %.2fs\n",
		res.Stats.Files, res.Stats.Declarations, res.Stats.Duration.Seconds())

	if c.Snapshot != "" {
		store, err := openStore(resolvePath(root, c.Store, cfg.SnapshotDir), false)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		snap, err := store.Save(rc.ctx, c.Snapshot, res.Graph)
		if err != nil {
			return fmt.Errorf("saving snapshot: %w", err)
		}
		rc.success("Snapshot %q saved (%s)", snap.Label, snap.ID)
	}
	return nil
}

// DiffCmd compares two graphs.
type DiffCmd struct {
	GraphA    string `arg:"" name:"graph-a" help:"Base graph directory (or snapshot label with --snapshots)"`
	GraphB    string `arg:"" name:"graph-b" help:"Target graph directory (or snapshot label with --snapshots)"`
	Output    string `short:"o" help:"Output directory for diff.json (default: the target graph directory)"`
	RefA      string `help:"Label recorded for the base graph"`
	RefB      string `help:"Label recorded for the target graph"`
	MinLevel  int    `help:"Ignore nodes below this abstraction level"`
	Snapshots bool   `help:"Read both graphs from the snapshot store"`
	Store     string `help:"Snapshot store directory"`
}

// Run executes the diff command.
func (c *DiffCmd) Run(rc *runContext) error {
	cfg, err := rc.config(".")
	if err != nil {
		return err
	}

	var a, b *graph.Graph
	outDir := c.Output
	if c.Snapshots {
		store, err := openStore(resolvePath(".", c.Store, cfg.SnapshotDir), true)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if a, err = store.Load(rc.ctx, c.GraphA); err != nil {
			return fmt.Errorf("loading %s: %w", c.GraphA, err)
		}
		if b, err = store.Load(rc.ctx, c.GraphB); err != nil {
			return fmt.Errorf("loading %s: %w", c.GraphB, err)
		}
		outDir = cmp.Or(outDir, resolvePath(".", "", cfg.OutputDir))
	} else {
		if a, err = output.ReadGraph(c.GraphA); err != nil {
			return err
		}
		dirB, err := output.ResolveDir(c.GraphB)
		if err != nil {
			return err
		}
		if b, err = output.ReadGraph(dirB); err != nil {
			return err
		}
		outDir = cmp.Or(outDir, dirB)
	}

	meta := diff.Meta{
		"source": diff.SourceCommits,
		"ref_a":  cmp.Or(c.RefA, c.GraphA),
		"ref_b":  cmp.Or(c.RefB, c.GraphB),
	}
	res, err := diff.Compute(a, b, meta, levelFilter(c.MinLevel)...)
	if err != nil {
		return fmt.Errorf("computing diff: %w", err)
	}
	if err := output.WriteDiff(outDir, res); err != nil {
		return err
	}

	rc.success("Diff written to %s", filepath.Join(outDir, output.DiffFile))
	printSummary(rc, res.Summary)
	return nil
}

// PlanCmd previews an architecture plan against a graph.
type PlanCmd struct {
	Plan     string `arg:"" help:"Plan file (JSON or YAML)" type:"existingfile"`
	GraphDir string `required:"" help:"Graph directory the plan is applied to"`
	Output   string `short:"o" help:"Output directory for diff.json and plan.json (default: the graph directory)"`
	MinLevel int    `help:"Ignore nodes below this abstraction level"`
}

// Run executes the plan command.
func (c *PlanCmd) Run(rc *runContext) error {
	dir, err := output.ResolveDir(c.GraphDir)
	if err != nil {
		return err
	}
	g, err := output.ReadGraph(dir)
	if err != nil {
		return err
	}
	p, err := plan.Load(c.Plan)
	if err != nil {
		return err
	}
	res, err := plan.Apply(g, p, levelFilter(c.MinLevel)...)
	if err != nil {
		return fmt.Errorf("applying plan: %w", err)
	}

	outDir := cmp.Or(c.Output, dir)
	if err := output.WriteDiff(outDir, res); err != nil {
		return err
	}
	if err := output.CopyPlan(outDir, c.Plan); err != nil {
		return err
	}

	rc.success("Plan %q applied, diff written to %s", res.Meta["plan_name"], filepath.Join(outDir, output.DiffFile))
	printSummary(rc, res.Summary)
	return nil
}

// SnapshotsCmd lists or deletes stored graph snapshots.
type SnapshotsCmd struct {
	Store  string `help:"Snapshot store directory"`
	Delete string `help:"Delete the snapshot with this label"`
	JSON   bool   `help:"Print snapshots as JSON"`
}

// Run executes the snapshots command.
func (c *SnapshotsCmd) Run(rc *runContext) error {
	cfg, err := rc.config(".")
	if err != nil {
		return err
	}
	path := resolvePath(".", c.Store, cfg.SnapshotDir)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if c.Delete != "" {
			return fmt.Errorf("deleting %s: %w", c.Delete, storage.ErrSnapshotNotFound)
		}
		rc.printf("No snapshots in %s\n", path)
		return nil
	}

	store, err := openStore(path, c.Delete == "")
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if c.Delete != "" {
		if err := store.Delete(rc.ctx, c.Delete); err != nil {
			return fmt.Errorf("deleting %s: %w", c.Delete, err)
		}
		rc.success("Deleted snapshot %q", c.Delete)
		return nil
	}

	snaps, err := store.List(rc.ctx)
	if err != nil {
		return fmt.Errorf("listing snapshots: %w", err)
	}
	if c.JSON {
		data, err := json.MarshalIndent(snaps, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(rc.stdout, string(data))
		return nil
	}
	if len(snaps) == 0 {
		rc.printf("No snapshots in %s\n", path)
		return nil
	}

	color.New(color.Bold).Fprintf(rc.stdout, "%-24s %8s %8s  %-20s  %s\n", "LABEL", "NODES", "EDGES", "CREATED", "ID")
	for _, s := range snaps {
		fmt.Fprintf(rc.stdout, "%-24s %8d %8d  %-20s  %s\n",
			s.Label, s.Nodes, s.Edges, s.CreatedAt.Format(time.RFC3339), s.ID)
	}
	return nil
}

// WatchCmd rebuilds the graph whenever sources change.
type WatchCmd struct {
	Path     string        `arg:"" optional:"" default:"." help:"Path to repository"`
	Output   string        `short:"o" help:"Output directory (default: <path>/.callgraph)"`
	Debounce time.Duration `default:"2s" help:"Quiet period before a rebuild"`
}

// Run executes the watch command.
func (c *WatchCmd) Run(rc *runContext) error {
	root, err := repoRoot(c.Path)
	if err != nil {
		return err
	}
	cfg, err := rc.config(root)
	if err != nil {
		return err
	}
	logger := rc.logger(cfg)
	opts := cfg.BuildOptions(logger)
	opts.Debounce = c.Debounce

	w := &watchWriter{rc: rc, dir: resolvePath(root, c.Output, cfg.OutputDir)}
	if prev, err := output.ReadGraph(w.dir); err == nil {
		w.previous = prev
	}

	rc.success("Watching %s (Ctrl+C to stop)", root)
	err = ingestion.WatchRepo(rc.ctx, root, opts, w.handle)
	if errors.Is(err, context.Canceled) {
		rc.printf("\nStopped after %d builds\n", w.builds)
		return nil
	}
	return err
}

// watchWriter persists every watch build and its diff against the build
// before it.
type watchWriter struct {
	rc       *runContext
	dir      string
	previous *graph.Graph
	builds   int
}

func (w *watchWriter) handle(_ context.Context, res *ingestion.Result) error {
	if err := output.WriteGraph(w.dir, res.Graph); err != nil {
		return err
	}
	w.builds++

	if w.previous != nil {
		d, err := diff.Compute(w.previous, res.Graph, diff.Meta{"source": diff.SourceWatch})
		if err != nil {
			return fmt.Errorf("computing diff: %w", err)
		}
		if err := output.WriteDiff(w.dir, d); err != nil {
			return err
		}
		s := d.Summary
		w.rc.printf("[%s] %d nodes, %d edges (+%d -%d ~%d nodes)\n",
			time.Now().Format(time.TimeOnly), len(res.Graph.Nodes), len(res.Graph.Edges),
			s.AddedNodes, s.RemovedNodes, s.ModifiedNodes)
	} else {
		w.rc.printf("[%s] %d nodes, %d edges\n",
			time.Now().Format(time.TimeOnly), len(res.Graph.Nodes), len(res.Graph.Edges))
	}
	w.previous = res.Graph
	return nil
}

// MCPCmd starts the MCP server.
type MCPCmd struct {
	SDK bool `help:"Serve through the MCP SDK stdio transport"`
}

// Run executes the MCP command.
func (c *MCPCmd) Run(rc *runContext) error {
	cfg, err := rc.config(".")
	if err != nil {
		return err
	}
	server, err := mcp.NewServer(Version, rc.logger(cfg))
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	if c.SDK {
		err = server.SDK().Run(rc.ctx, &sdkmcp.StdioTransport{})
	} else {
		err = server.Run(rc.ctx, rc.stdin, rc.stdout)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ExportCmd loads a graph into Neo4j.
type ExportCmd struct {
	GraphDir  string `arg:"" optional:"" default:"." help:"Graph directory"`
	URI       string `name:"neo4j-uri" help:"Neo4j connection URI"`
	Username  string `name:"neo4j-user" help:"Neo4j username"`
	Password  string `name:"neo4j-password" help:"Neo4j password"`
	Database  string `name:"neo4j-database" help:"Neo4j database"`
	BatchSize int    `help:"Rows per statement"`
	Clean     bool   `help:"Delete previously exported nodes first"`
}

// Run executes the export command.
func (c *ExportCmd) Run(rc *runContext) error {
	cfg, err := rc.config(".")
	if err != nil {
		return err
	}
	nc := cfg.Neo4j
	nc.URI = cmp.Or(c.URI, nc.URI)
	nc.Username = cmp.Or(c.Username, nc.Username)
	nc.Password = cmp.Or(c.Password, nc.Password)
	nc.Database = cmp.Or(c.Database, nc.Database)
	nc.BatchSize = cmp.Or(c.BatchSize, nc.BatchSize)

	g, err := output.ReadGraph(c.GraphDir)
	if err != nil {
		return err
	}

	runner, err := export.NewNeo4jRunner(rc.ctx, nc)
	if err != nil {
		return err
	}
	defer func() { _ = runner.Close(context.Background()) }()

	return c.export(rc, runner, g, nc.BatchSize, rc.logger(cfg))
}

func (c *ExportCmd) export(rc *runContext, r export.Runner, g *graph.Graph, batchSize int, logger *slog.Logger) error {
	stats, err := export.Export(rc.ctx, r, g, export.Options{
		Clean:     c.Clean,
		BatchSize: batchSize,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("exporting graph: %w", err)
	}
	rc.success("Exported %d nodes and %d relationships in %d statements",
		stats.Nodes, stats.Relationships, stats.Statements)
	return nil
}

// PublishCmd uploads graph artifacts to S3-compatible storage.
type PublishCmd struct {
	Dir      string `arg:"" optional:"" default:"." help:"Artifact directory"`
	RunID    string `required:"" name:"run-id" help:"Run id the artifacts are stored under"`
	Endpoint string `help:"S3 endpoint"`
	Bucket   string `help:"S3 bucket"`
}

// Run executes the publish command.
func (c *PublishCmd) Run(rc *runContext) error {
	cfg, err := rc.config(".")
	if err != nil {
		return err
	}
	sc := cfg.S3
	sc.Endpoint = cmp.Or(c.Endpoint, sc.Endpoint)
	sc.Bucket = cmp.Or(c.Bucket, sc.Bucket)

	store, err := artifact.NewS3Store(sc)
	if err != nil {
		return err
	}
	return c.publish(rc, store)
}

func (c *PublishCmd) publish(rc *runContext, store artifact.Store) error {
	dir := c.Dir
	if resolved, err := output.ResolveDir(dir); err == nil {
		dir = resolved
	}
	names, err := artifact.Publish(rc.ctx, store, dir, c.RunID)
	if err != nil {
		return err
	}
	rc.success("Published %d artifacts under %s/", len(names), c.RunID)
	for _, name := range names {
		rc.printf("  %s\n", name)
	}
	return nil
}

// Helper functions

func repoRoot(path string) (string, error) {
	root, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("accessing %s: %w", root, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", root)
	}
	return root, nil
}

// resolvePath returns flag when set, else configured relative to root.
func resolvePath(root, flag, configured string) string {
	if flag != "" {
		return flag
	}
	if filepath.IsAbs(configured) {
		return configured
	}
	return filepath.Join(root, configured)
}

func openStore(path string, readOnly bool) (*storage.BadgerStore, error) {
	if readOnly {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("no snapshot store at %s: %w", path, err)
		}
	} else if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot store: %w", err)
	}
	store := storage.NewBadgerStore()
	if err := store.Initialize(path, readOnly); err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	return store, nil
}

// levelFilter returns the diff options for a --min-level flag. Zero
// keeps every node.
func levelFilter(minLevel int) []diff.Option {
	if minLevel <= 0 {
		return nil
	}
	return []diff.Option{diff.WithMinLevel(minLevel)}
}

func printSummary(rc *runContext, s diff.Summary) {
	if s.Empty() {
		rc.printf("  no structural changes\n")
		return
	}
	rc.printf("  added nodes:     %d\n", s.AddedNodes)
	rc.printf("  removed nodes:   %d\n", s.RemovedNodes)
	rc.printf("  moved nodes:     %d\n", s.MovedNodes)
	rc.printf("  modified nodes:  %d\n", s.ModifiedNodes)
	rc.printf("  added edges:     %d\n", s.AddedEdges)
	rc.printf("  removed edges:   %d\n", s.RemovedEdges)
}

// CLI is the root Kong command structure.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	Verbose int              `short:"v" type:"counter" help:"Increase log verbosity (-v info, -vv debug)"`
	Quiet   bool             `short:"q" help:"Suppress non-essential output"`

	// Commands
	Build     BuildCmd     `cmd:"" help:"Build the architecture graph of a repository"`
	Diff      DiffCmd      `cmd:"" help:"Structural diff of two graphs"`
	Plan      PlanCmd      `cmd:"" help:"Preview an architecture plan against a graph"`
	Snapshots SnapshotsCmd `cmd:"" help:"List or delete stored graph snapshots"`
	Watch     WatchCmd     `cmd:"" help:"Watch mode with live rebuilds"`
	MCP       MCPCmd       `cmd:"" name:"mcp" help:"Start MCP server (stdio transport)"`
	Export    ExportCmd    `cmd:"" help:"Export a graph to Neo4j"`
	Publish   PublishCmd   `cmd:"" help:"Upload graph artifacts to S3-compatible storage"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses command-line arguments and executes the selected command.
// Variables from a .env file in the working directory are loaded first
// but never override the environment.
func (c *CLI) Execute(args []string) error {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return c.run(&runContext{
		ctx:    ctx,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		getenv: os.Getenv,
	}, args)
}

func (c *CLI) run(rc *runContext, args []string) error {
	parser, err := kong.New(c,
		kong.Name("prism"),
		kong.Description("Architecture graphs, structural diffs and plan previews for Python and TypeScript"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
		kong.Writers(rc.stdout, rc.stderr),
	)
	if err != nil {
		return err
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	rc.verbose, rc.quiet = c.Verbose, c.Quiet
	return kongCtx.Run(rc)
}
