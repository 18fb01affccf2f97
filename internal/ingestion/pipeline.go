package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"runtime"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rHedBull/prism/internal/graph"
	"github.com/rHedBull/prism/internal/logging"
	"github.com/rHedBull/prism/internal/parsers"
)

// ProgressCallback is called with phase name and progress (0.0-1.0).
type ProgressCallback func(phase string, progress float64)

// Build phases reported through ProgressCallback.
const (
	PhaseWalking = "Walking files"
	PhaseParsing = "Parsing code"
	PhaseImports = "Resolving imports"
	PhaseCalls   = "Tracing calls"
)

// Options configures a graph build. The zero value is usable.
type Options struct {
	// Workers bounds concurrent parsing. Zero means GOMAXPROCS.
	Workers int

	// Levels is the abstraction level lexicon. Nil means DefaultLevels.
	Levels *Levels

	// SkipDirs are directory names pruned in addition to DefaultSkipDirs.
	SkipDirs []string

	// Logger receives debug and timing output. Nil discards it.
	Logger *slog.Logger

	// Progress, if set, is called at the start and end of every phase.
	Progress ProgressCallback

	// Debounce is how long WatchRepo waits for changes to settle. Zero
	// means DefaultDebounce.
	Debounce time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Levels == nil {
		o.Levels = DefaultLevels()
	}
	if o.Logger == nil {
		o.Logger = logging.Discard()
	}
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	return o
}

func (o Options) report(phase string, progress float64) {
	if o.Progress != nil {
		o.Progress(phase, progress)
	}
}

// Stats summarizes a build.
type Stats struct {
	Files        int
	Directories  int
	Declarations int
	Imports      int
	Calls        int
	Duration     time.Duration
}

// Result is the outcome of a build.
type Result struct {
	Graph *graph.Graph
	Stats Stats
}

// BuildGraph discovers the source files under root and builds their graph.
func BuildGraph(ctx context.Context, root string, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	opts.report(PhaseWalking, 0)
	files, err := Discover(root, opts.SkipDirs...)
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	opts.report(PhaseWalking, 1)
	opts.Logger.Debug("pipeline.discovered", "root", root, "files", len(files))

	return Build(ctx, files, opts)
}

// BuildRevision builds the graph of a git revision of the repository at
// repoPath without checking it out.
func BuildRevision(ctx context.Context, repoPath, rev string, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	opts.report(PhaseWalking, 0)
	files, err := DiscoverRevision(repoPath, rev, opts.SkipDirs...)
	if err != nil {
		return nil, err
	}
	opts.report(PhaseWalking, 1)
	opts.Logger.Debug("pipeline.discovered", "repo", repoPath, "rev", rev, "files", len(files))

	return Build(ctx, files, opts)
}

// Build builds the graph of an already discovered file set.
//
// Files are parsed concurrently but nodes and edges are always emitted in
// path order, so identical input yields identical output. A file that
// cannot be parsed fails the whole build.
func Build(ctx context.Context, files []SourceFile, opts Options) (*Result, error) {
	start := time.Now()
	opts = opts.withDefaults()

	files = slices.Clone(files)
	sortFiles(files)

	opts.report(PhaseParsing, 0)
	parsed, err := parseFiles(ctx, files, opts.Workers)
	if err != nil {
		return nil, err
	}
	b := newBuilder(opts.Levels, opts.Logger, files)
	b.addDirectories(files)
	b.addFiles(parsed)
	opts.report(PhaseParsing, 1)

	opts.report(PhaseImports, 0)
	b.addImports(parsed)
	opts.report(PhaseImports, 1)

	opts.report(PhaseCalls, 0)
	b.addCalls(parsed)
	opts.report(PhaseCalls, 1)

	b.stats.Files = len(files)
	b.stats.Duration = time.Since(start)
	opts.Logger.Info("pipeline.done",
		"files", b.stats.Files,
		"nodes", len(b.g.Nodes),
		"edges", len(b.g.Edges),
		"elapsed", b.stats.Duration,
	)
	return &Result{Graph: b.g, Stats: b.stats}, nil
}

// parseFiles parses every file with at most workers goroutines. Results
// keep the order of files.
func parseFiles(ctx context.Context, files []SourceFile, workers int) ([]*parsers.ParseResult, error) {
	results := make([]*parsers.ParseResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range files {
		g.Go(func() error {
			p, err := parsers.ForLanguage(f.Language)
			if err != nil {
				return fmt.Errorf("%s: %w", f.Path, err)
			}
			res, err := p.Parse(ctx, f.Path, f.Content)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// builder accumulates nodes and edges in emission order.
type builder struct {
	levels   *Levels
	logger   *slog.Logger
	resolver *resolver
	g        *graph.Graph
	ids      map[string]bool
	stats    Stats
}

func newBuilder(levels *Levels, logger *slog.Logger, files []SourceFile) *builder {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	return &builder{
		levels:   levels,
		logger:   logger,
		resolver: newResolver(paths),
		g:        graph.New(),
		ids:      make(map[string]bool),
	}
}

func (b *builder) addNode(n graph.Node) bool {
	if b.ids[n.ID] {
		return false
	}
	b.ids[n.ID] = true
	b.g.Nodes = append(b.g.Nodes, n)
	return true
}

func (b *builder) addEdge(from, to string, typ graph.EdgeType, weight int) {
	b.g.Edges = append(b.g.Edges, graph.Edge{From: from, To: to, Type: typ, Weight: weight})
}

// addDirectories emits one node per directory prefix of every file path,
// plus a contains edge from its parent directory.
func (b *builder) addDirectories(files []SourceFile) {
	for _, f := range files {
		dir := path.Dir(f.Path)
		if dir == "." {
			continue
		}
		var prefix, parent string
		for i, part := range splitPath(dir) {
			if i == 0 {
				prefix = part
			} else {
				prefix = prefix + "/" + part
			}
			id := graph.DirectoryID(prefix)
			if b.addNode(graph.NewDirectoryNode(prefix, part, parent, b.levels.Classify(prefix))) {
				b.stats.Directories++
				if parent != "" {
					b.addEdge(parent, id, graph.EdgeContains, 1)
				}
			}
			parent = id
		}
	}
}

// addFiles emits each file node followed by its declarations. Declarations
// inherit the file's abstraction level; a repeated declaration id keeps
// the first occurrence.
func (b *builder) addFiles(parsed []*parsers.ParseResult) {
	for _, res := range parsed {
		fileID := graph.FileID(res.FilePath)
		level := b.levels.Classify(res.FilePath)

		var parent string
		if dir := path.Dir(res.FilePath); dir != "." {
			parent = graph.DirectoryID(dir)
		}
		b.addNode(graph.NewFileNode(res.FilePath, path.Base(res.FilePath), res.Language, parent,
			res.LinesOfCode, len(res.Decls), level))
		if parent != "" {
			b.addEdge(parent, fileID, graph.EdgeContains, 1)
		}

		for _, d := range res.Decls {
			n := declNode(res, d, level)
			if !b.addNode(n) {
				b.logger.Debug("pipeline.duplicate_declaration", "id", n.ID)
				continue
			}
			b.stats.Declarations++
			b.addEdge(fileID, n.ID, graph.EdgeContains, 1)
		}
	}
}

func declNode(res *parsers.ParseResult, d parsers.Decl, level int) graph.Node {
	if d.Kind == graph.NodeFunction {
		return graph.NewFunctionNode(res.FilePath, d.Name, res.Language, d.Metrics(), d.Calls, level)
	}
	return graph.NewClassNode(d.Kind, res.FilePath, d.Name, res.Language, d.Metrics(), d.Decorators, d.Bases, level)
}

// addImports emits one imports edge per resolved import statement.
func (b *builder) addImports(parsed []*parsers.ParseResult) {
	for _, res := range parsed {
		from := graph.FileID(res.FilePath)
		for _, imp := range res.Imports {
			target, ok := b.resolver.resolve(imp.Module, res.FilePath)
			if !ok {
				continue
			}
			b.addEdge(from, graph.FileID(target), graph.EdgeImports, max(1, len(imp.Names)))
			b.stats.Imports++
		}
	}
}

// addCalls resolves recorded call names to function nodes. A function in
// the same file (other than the caller) wins over an imported one; names
// matching neither are dropped. At most one edge is emitted per pair, and
// a repeated declaration contributes no calls.
func (b *builder) addCalls(parsed []*parsers.ParseResult) {
	symbols := make(map[string]map[string]string, len(parsed))
	for _, res := range parsed {
		table := make(map[string]string)
		for _, d := range res.Decls {
			if d.Kind != graph.NodeFunction {
				continue
			}
			if _, ok := table[d.Name]; !ok {
				table[d.Name] = graph.FunctionID(res.FilePath, d.Name)
			}
		}
		symbols[res.FilePath] = table
	}

	seen := make(map[graph.EdgeKey]bool)
	for _, res := range parsed {
		local := symbols[res.FilePath]
		imported := b.importMap(res)

		// Only the first declaration of a name became a node.
		callers := make(map[string]bool)
		for _, d := range res.Decls {
			if d.Kind != graph.NodeFunction {
				continue
			}
			caller := graph.FunctionID(res.FilePath, d.Name)
			if callers[caller] {
				continue
			}
			callers[caller] = true
			for _, name := range d.Calls {
				target, ok := local[name]
				if !ok || target == caller {
					target, ok = symbols[imported[name]][name]
				}
				if !ok || target == caller {
					continue
				}
				key := graph.EdgeKey{From: caller, To: target, Type: graph.EdgeCalls}
				if seen[key] {
					continue
				}
				seen[key] = true
				b.addEdge(caller, target, graph.EdgeCalls, 1)
				b.stats.Calls++
			}
		}
	}
}

// importMap maps each locally bound import name of a file to the file it
// resolves to. Later imports of the same name win.
func (b *builder) importMap(res *parsers.ParseResult) map[string]string {
	m := make(map[string]string)
	for _, imp := range res.Imports {
		target, ok := b.resolver.resolve(imp.Module, res.FilePath)
		if !ok {
			continue
		}
		for _, name := range imp.Names {
			m[name] = target
		}
	}
	return m
}

func splitPath(p string) []string {
	return strings.Split(p, "/")
}
