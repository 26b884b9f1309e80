package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"neuralca/internal/envconfig"
	"neuralca/internal/logutil"
	"neuralca/internal/nn"
	"neuralca/internal/perceive"
	"neuralca/internal/storage"
	"neuralca/pkg/neuralca"
)

const exportsDir = "exports"

func main() {
	cfg := envconfig.LoadConfig(storage.DefaultStoreKind())
	slog.SetDefault(logutil.NewLogger(os.Stderr, cfg.LogLevel()))

	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "sweep":
		return runSweep(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	case "delete":
		return runDelete(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "kernels":
		return runKernels(ctx, args[1:])
	case "activations":
		return runActivations(ctx, args[1:])
	case "env":
		return runEnv(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// storeFlags registers --store and --db-path with defaults taken from the
// environment.
func storeFlags(fs *flag.FlagSet) (*string, *string) {
	cfg := envconfig.LoadConfig(storage.DefaultStoreKind())
	storeKind := fs.String("store", cfg.Store, "store backend: memory|sqlite")
	dbPath := fs.String("db-path", cfg.DBPath, "sqlite database path")
	return storeKind, dbPath
}

func newClient(storeKind, dbPath string, float16 bool) (*neuralca.Client, error) {
	return neuralca.New(neuralca.Options{
		StoreKind:  storeKind,
		DBPath:     dbPath,
		ExportsDir: exportsDir,
		Float16:    float16,
	})
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind, dbPath := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath, false)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	storeKind, dbPath := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath, false)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Reset(ctx); err != nil {
		return err
	}

	fmt.Printf("reset store=%s\n", *storeKind)
	return nil
}

// runRequestFlags registers the flags shared by run and sweep. The returned
// function builds the request after fs.Parse: with --config only explicitly set
// flags override the file, otherwise every flag value is used.
func runRequestFlags(fs *flag.FlagSet) func() (neuralca.RunRequest, error) {
	configPath := fs.String("config", "", "optional run config JSON path")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	height := fs.Int("height", 16, "grid height")
	width := fs.Int("width", 16, "grid width")
	channels := fs.Int("channels", 8, "channels per cell")
	initPattern := fs.String("init", "seed", "initial state: zeros|ones|seed|random")
	perceiveName := fs.String("perceive", neuralca.PerceiveDepthwise, "perceive unit: identity|depthwise")
	kernels := fs.String("kernels", "", "comma-separated kernel names for depthwise perceive (default identity,sobel_x,sobel_y)")
	padding := fs.String("padding", perceive.PaddingCircular, "depthwise padding: circular|zero")
	updateName := fs.String("update", neuralca.UpdateResidual, "update unit: increment|residual")
	hidden := fs.String("hidden", "32", "comma-separated hidden layer sizes for residual update")
	activation := fs.String("activation", "relu", "hidden activation for residual update")
	delta := fs.Float64("delta", 1, "per-step increment for update=increment")
	aliveMasking := fs.Bool("alive-masking", false, "zero cells with no living neighbor after each update")
	aliveThreshold := fs.Float64("alive-threshold", 0.1, "alive channel threshold used by alive masking")
	inputKind := fs.String("input", neuralca.InputNone, "external input: none|constant|sequence")
	inputWidth := fs.Int("input-width", 2, "external input features per step")
	inputAxis := fs.String("input-axis", "", "axis of the input holding per-step slices (empty keeps the input constant)")
	seed := fs.Int64("seed", 1, "rng seed")
	steps := fs.Int("steps", 32, "number of steps")
	allSteps := fs.Bool("all-steps", false, "persist every intermediate state")
	encode := fs.Bool("encode", false, "sample a latent encoding of the final state")
	latentSize := fs.Int("latent-size", 8, "latent vector size for --encode")

	return func() (neuralca.RunRequest, error) {
		setFlags := make(map[string]bool)
		fs.Visit(func(f *flag.Flag) {
			setFlags[f.Name] = true
		})
		flagValue := map[string]any{
			"run-id":          *runID,
			"height":          *height,
			"width":           *width,
			"channels":        *channels,
			"init":            *initPattern,
			"perceive":        *perceiveName,
			"kernels":         *kernels,
			"padding":         *padding,
			"update":          *updateName,
			"hidden":          *hidden,
			"activation":      *activation,
			"delta":           *delta,
			"alive-masking":   *aliveMasking,
			"alive-threshold": *aliveThreshold,
			"input":           *inputKind,
			"input-width":     *inputWidth,
			"input-axis":      *inputAxis,
			"seed":            *seed,
			"steps":           *steps,
			"all-steps":       *allSteps,
			"encode":          *encode,
			"latent-size":     *latentSize,
		}

		req, err := loadOrDefaultRunRequest(*configPath)
		if err != nil {
			return neuralca.RunRequest{}, err
		}
		if *configPath == "" {
			for name := range flagValue {
				setFlags[name] = true
			}
		}
		if err := overrideFromFlags(&req, setFlags, flagValue); err != nil {
			return neuralca.RunRequest{}, err
		}
		return req, nil
	}
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	buildRequest := runRequestFlags(fs)
	float16 := fs.Bool("f16", envconfig.LoadConfig(storage.DefaultStoreKind()).Float16, "persist trajectories in half precision")
	jsonOut := fs.Bool("json", false, "emit run summary as JSON")
	storeKind, dbPath := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	req, err := buildRequest()
	if err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath, *float16)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	fmt.Printf("run_id=%s shape=%v steps=%d trajectory=%d final_mean=%.6f final_std=%.6f alive=%d\n",
		summary.RunID,
		summary.Shape,
		summary.NumSteps,
		summary.TrajectoryLength,
		summary.Final.Mean,
		summary.Final.Std,
		summary.Final.Alive,
	)
	if len(summary.Encoded) > 0 {
		fmt.Printf("encoded=%s\n", formatValues(summary.Encoded))
	}
	return nil
}

func runSweep(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	buildRequest := runRequestFlags(fs)
	seeds := fs.String("seeds", "", "comma-separated seeds (overrides --count)")
	count := fs.Int("count", 4, "number of consecutive seeds starting at --seed")
	workers := fs.Int("workers", 0, "concurrent runs (0 uses GOMAXPROCS)")
	float16 := fs.Bool("f16", envconfig.LoadConfig(storage.DefaultStoreKind()).Float16, "persist trajectories in half precision")
	storeKind, dbPath := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	req, err := buildRequest()
	if err != nil {
		return err
	}

	var seedList []int64
	if *seeds != "" {
		for _, item := range splitList(*seeds) {
			v, err := strconv.ParseInt(item, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid --seeds: %w", err)
			}
			seedList = append(seedList, v)
		}
	} else {
		if *count <= 0 {
			return errors.New("count must be > 0")
		}
		for i := 0; i < *count; i++ {
			seedList = append(seedList, req.Seed+int64(i))
		}
	}

	client, err := newClient(*storeKind, *dbPath, *float16)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summaries, err := client.Sweep(ctx, neuralca.SweepRequest{Base: req, Seeds: seedList, Workers: *workers})
	if err != nil {
		return err
	}

	data := make([][]string, 0, len(summaries))
	for i, s := range summaries {
		data = append(data, []string{
			s.RunID,
			strconv.FormatInt(seedList[i], 10),
			strconv.FormatFloat(s.Final.Mean, 'f', 6, 64),
			strconv.FormatFloat(s.Final.Std, 'f', 6, 64),
			strconv.Itoa(s.Final.Alive),
		})
	}
	renderTable([]string{"RUN ID", "SEED", "MEAN", "STD", "ALIVE"}, data)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	tableOut := fs.Bool("table", false, "emit runs list as a table")
	storeKind, dbPath := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := newClient(*storeKind, *dbPath, false)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items, err := client.Runs(ctx, neuralca.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}
	if len(items) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	if *tableOut {
		data := make([][]string, 0, len(items))
		for _, item := range items {
			data = append(data, []string{
				item.RunID,
				fmt.Sprint(item.Shape),
				item.Update,
				strconv.Itoa(item.NumSteps),
				humanize.Bytes(uint64(item.PayloadBytes)),
				relativeTime(item.CreatedAtUTC),
			})
		}
		renderTable([]string{"RUN ID", "SHAPE", "UPDATE", "STEPS", "SIZE", "CREATED"}, data)
		return nil
	}

	for _, item := range items {
		fmt.Printf("run_id=%s created=%s shape=%v perceive=%s update=%s steps=%d all_steps=%t final_mean=%.6f alive=%d size=%s\n",
			item.RunID,
			relativeTime(item.CreatedAtUTC),
			item.Shape,
			item.Perceive,
			item.Update,
			item.NumSteps,
			item.AllSteps,
			item.FinalMean,
			item.FinalAlive,
			humanize.Bytes(uint64(item.PayloadBytes)),
		)
	}
	return nil
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show the most recent run")
	showStats := fs.Bool("stats", false, "print per-step statistics")
	jsonOut := fs.Bool("json", false, "emit run record as JSON")
	storeKind, dbPath := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("show requires --run-id or --latest")
	}

	client, err := newClient(*storeKind, *dbPath, false)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	detail, err := client.Show(ctx, neuralca.ShowRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(detail.Record)
	}

	record := detail.Record
	fmt.Printf("run_id=%s created=%s shape=%v perceive=%s update=%s seed=%d steps=%d trajectory=%d\n",
		record.ID,
		relativeTime(record.CreatedAtUTC),
		record.Final.Shape,
		record.Config.Perceive,
		record.Config.Update,
		record.Config.Seed,
		record.Config.NumSteps,
		len(record.Trajectory),
	)
	if *showStats {
		for _, s := range record.Stats {
			fmt.Printf("step=%d mean=%.6f std=%.6f min=%.6f max=%.6f alive=%d\n", s.Step, s.Mean, s.Std, s.Min, s.Max, s.Alive)
		}
	}
	return nil
}

func runDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	storeKind, dbPath := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("delete requires --run-id")
	}

	client, err := newClient(*storeKind, *dbPath, false)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Delete(ctx, *runID); err != nil {
		return err
	}

	fmt.Printf("deleted run_id=%s\n", *runID)
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run")
	outDir := fs.String("out", exportsDir, "export output directory")
	storeKind, dbPath := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}

	client, err := newClient(*storeKind, *dbPath, false)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, neuralca.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}

	fmt.Printf("exported run_id=%s states=%d to=%s\n", exported.RunID, exported.States, exported.Directory)
	return nil
}

func runKernels(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("kernels", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	for _, name := range perceive.ListKernels() {
		fmt.Println(name)
	}
	return nil
}

func runActivations(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("activations", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	for _, name := range nn.ListActivations() {
		fmt.Println(name)
	}
	return nil
}

func runEnv(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("env", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "emit resolved values as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := envconfig.LoadConfig(storage.DefaultStoreKind())
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg.Values())
	}
	vars := cfg.AsMap()
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := vars[name]
		fmt.Printf("%s=%v\t%s\n", name, v.Value, v.Description)
	}
	return nil
}

func renderTable(header []string, data [][]string) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}

func relativeTime(createdAtUTC string) string {
	ts, err := time.Parse(time.RFC3339Nano, createdAtUTC)
	if err != nil {
		return createdAtUTC
	}
	return humanize.Time(ts)
}

func formatValues(values []float32) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(float64(v), 'f', 4, 32)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: neuralcactl <init|reset|run|sweep|runs|show|delete|export|kernels|activations|env> [flags]", msg)
}
