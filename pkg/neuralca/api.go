// Package neuralca is the public entry point for building, running and
// persisting neural cellular automata.
package neuralca

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pdevine/tensor"

	"neuralca/internal/ca"
	"neuralca/internal/grid"
	"neuralca/internal/logutil"
	"neuralca/internal/model"
	"neuralca/internal/stats"
	"neuralca/internal/storage"
)

const (
	defaultExportsDir = "exports"
	defaultDBPath     = "neuralca.db"
)

type Options struct {
	StoreKind  string
	DBPath     string
	ExportsDir string
	// Float16 persists trajectory states in half precision. Final states
	// are always stored at full precision.
	Float16 bool
}

type Client struct {
	store      storage.Store
	exportsDir string
	float16    bool

	initOnce sync.Once
	initErr  error
}

type RunRequest struct {
	RunID string

	Height      int
	Width       int
	Channels    int
	InitPattern string

	Perceive string
	Kernels  []string
	Padding  string

	Update         string
	Hidden         []int
	Activation     string
	// Delta is the per-step increment; nil means 1.
	Delta          *float32
	AliveMasking   bool
	AliveThreshold float32

	Input       string
	InputWidth  int
	InputInAxis *int

	Seed     int64
	NumSteps int
	AllSteps bool

	Encode     bool
	LatentSize int
}

type RunSummary struct {
	RunID            string
	CreatedAtUTC     string
	Shape            []int
	NumSteps         int
	TrajectoryLength int
	Final            model.StepStats
	Encoded          []float32
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Shape        []int
	Perceive     string
	Update       string
	NumSteps     int
	AllSteps     bool
	FinalMean    float64
	FinalAlive   int
	PayloadBytes int
}

type ShowRequest struct {
	RunID  string
	Latest bool
}

type RunDetail struct {
	Record model.RunRecord
	Final  []float32
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
	States    int
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		exportsDir: exportsDir,
		float16:    opts.Float16,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// Init prepares the backing store. Other methods call it on first use.
func (c *Client) Init(ctx context.Context) error {
	c.initOnce.Do(func() {
		c.initErr = c.store.Init(ctx)
	})
	return c.initErr
}

func (c *Client) Reset(ctx context.Context) error {
	if err := c.Init(ctx); err != nil {
		return err
	}
	return c.store.Reset(ctx)
}

// Run builds the automaton described by req, runs it and persists the result.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if err := c.Init(ctx); err != nil {
		return RunSummary{}, err
	}
	if err := ctx.Err(); err != nil {
		return RunSummary{}, err
	}
	if req.RunID != "" {
		if err := stats.ValidateRunID(req.RunID); err != nil {
			return RunSummary{}, err
		}
	}
	req = withDefaults(req)

	built, err := build(req)
	if err != nil {
		return RunSummary{}, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx = logutil.WithRunID(ctx, runID)
	logger := logutil.Logger(ctx)
	logger.Info("starting run", "shape", grid.Shape(built.first), "perceive", req.Perceive, "update", req.Update, "num_steps", req.NumSteps, "all_steps", req.AllSteps)

	aliveChannel := built.config.AliveChannel
	first, err := stats.Summarize(0, built.first, aliveChannel, req.AliveThreshold)
	if err != nil {
		return RunSummary{}, err
	}
	stepStats := []model.StepStats{first}
	var observeErr error

	started := time.Now()
	result, err := built.engine.Run(built.first, built.input, ca.RunOptions{
		NumSteps:    req.NumSteps,
		AllSteps:    req.AllSteps,
		InputInAxis: req.InputInAxis,
		Observer: func(step int, state *tensor.Dense) {
			s, err := stats.Summarize(step, state, aliveChannel, req.AliveThreshold)
			if err != nil {
				observeErr = errors.Join(observeErr, err)
				return
			}
			stepStats = append(stepStats, s)
			logutil.TraceContext(ctx, "step", "step", step, "mean", s.Mean, "alive", s.Alive)
		},
	})
	if err != nil {
		logger.Error("run failed", "error", err)
		return RunSummary{}, err
	}
	if observeErr != nil {
		return RunSummary{}, fmt.Errorf("step stats: %w", observeErr)
	}

	record := model.RunRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: storage.CurrentSchemaVersion, CodecVersion: storage.CurrentCodecVersion},
		ID:              runID,
		CreatedAtUTC:    time.Now().UTC().Format(time.RFC3339Nano),
		Config:          built.config,
		Stats:           stepStats,
	}
	record.Final, err = storage.EncodeTensor(result.Final, false)
	if err != nil {
		return RunSummary{}, fmt.Errorf("encode final state: %w", err)
	}
	for i, state := range result.Trajectory {
		rec, err := storage.EncodeTensor(state, c.float16)
		if err != nil {
			return RunSummary{}, fmt.Errorf("encode trajectory[%d]: %w", i, err)
		}
		record.Trajectory = append(record.Trajectory, rec)
	}

	summary := RunSummary{
		RunID:            runID,
		CreatedAtUTC:     record.CreatedAtUTC,
		Shape:            grid.Shape(result.Final),
		NumSteps:         req.NumSteps,
		TrajectoryLength: len(result.Trajectory),
		Final:            stepStats[len(stepStats)-1],
	}

	if built.unsupervised != nil {
		encoded, err := built.unsupervised.Encode(result.Final, built.rng)
		if err != nil {
			return RunSummary{}, fmt.Errorf("encode final state: %w", err)
		}
		rec, err := storage.EncodeTensor(encoded, false)
		if err != nil {
			return RunSummary{}, err
		}
		record.Encoded = &rec
		values, err := grid.Values(encoded)
		if err != nil {
			return RunSummary{}, err
		}
		summary.Encoded = append([]float32(nil), values...)
	}

	if err := c.store.SaveRun(ctx, record); err != nil {
		return RunSummary{}, fmt.Errorf("save run: %w", err)
	}
	logger.Info("run complete", "elapsed", time.Since(started), "final_mean", summary.Final.Mean, "alive", summary.Final.Alive, "trajectory", summary.TrajectoryLength)
	return summary, nil
}

// Delete removes a stored run. Deleting an unknown id is an error.
func (c *Client) Delete(ctx context.Context, runID string) error {
	if runID == "" {
		return errors.New("run id is required")
	}
	if err := c.Init(ctx); err != nil {
		return err
	}
	_, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("run not found: %s", runID)
	}
	return c.store.DeleteRun(ctx, runID)
}

func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	if req.Limit <= 0 {
		req.Limit = 20
	}

	runs, err := c.store.ListRuns(ctx, req.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]RunItem, 0, len(runs))
	for _, run := range runs {
		item := RunItem{
			RunID:        run.ID,
			CreatedAtUTC: run.CreatedAtUTC,
			Shape:        run.Final.Shape,
			Perceive:     run.Config.Perceive,
			Update:       run.Config.Update,
			NumSteps:     run.Config.NumSteps,
			AllSteps:     run.Config.AllSteps,
			PayloadBytes: payloadBytes(run),
		}
		if n := len(run.Stats); n > 0 {
			item.FinalMean = run.Stats[n-1].Mean
			item.FinalAlive = run.Stats[n-1].Alive
		}
		out = append(out, item)
	}
	return out, nil
}

func (c *Client) Show(ctx context.Context, req ShowRequest) (RunDetail, error) {
	run, err := c.resolveRun(ctx, req.RunID, req.Latest)
	if err != nil {
		return RunDetail{}, err
	}
	final, err := storage.DecodeTensor(run.Final)
	if err != nil {
		return RunDetail{}, fmt.Errorf("decode final state: %w", err)
	}
	values, err := grid.Values(final)
	if err != nil {
		return RunDetail{}, err
	}
	return RunDetail{Record: run, Final: values}, nil
}

// Export writes run.json and states.csv for a stored run. Runs without a
// captured trajectory export only their final state.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	run, err := c.resolveRun(ctx, req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}

	artifacts := stats.RunArtifacts{
		RunID:        run.ID,
		CreatedAtUTC: run.CreatedAtUTC,
		Config:       run.Config,
		Stats:        run.Stats,
	}
	if len(run.Trajectory) > 0 {
		states, err := storage.DecodeTrajectory(run)
		if err != nil {
			return ExportSummary{}, err
		}
		artifacts.States = states
		for i := range states {
			artifacts.Steps = append(artifacts.Steps, i)
		}
	} else {
		final, err := storage.DecodeTensor(run.Final)
		if err != nil {
			return ExportSummary{}, err
		}
		artifacts.States = []*tensor.Dense{final}
		artifacts.Steps = []int{run.Config.NumSteps}
	}
	if run.Encoded != nil {
		encoded, err := storage.DecodeTensor(*run.Encoded)
		if err != nil {
			return ExportSummary{}, err
		}
		artifacts.Encoded, err = grid.Values(encoded)
		if err != nil {
			return ExportSummary{}, err
		}
	}

	dir, err := stats.WriteRunArtifacts(req.OutDir, artifacts)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: run.ID, Directory: filepath.Clean(dir), States: len(artifacts.States)}, nil
}

func (c *Client) resolveRun(ctx context.Context, runID string, latest bool) (model.RunRecord, error) {
	if runID != "" && latest {
		return model.RunRecord{}, errors.New("use either run id or latest")
	}
	if runID == "" && !latest {
		return model.RunRecord{}, errors.New("run id or latest is required")
	}
	if err := c.Init(ctx); err != nil {
		return model.RunRecord{}, err
	}

	if latest {
		runs, err := c.store.ListRuns(ctx, 1)
		if err != nil {
			return model.RunRecord{}, err
		}
		if len(runs) == 0 {
			return model.RunRecord{}, errors.New("no runs available")
		}
		return runs[0], nil
	}

	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return model.RunRecord{}, err
	}
	if !ok {
		return model.RunRecord{}, fmt.Errorf("run not found: %s", runID)
	}
	return run, nil
}

func payloadBytes(run model.RunRecord) int {
	total := len(run.Final.Data)
	for _, rec := range run.Trajectory {
		total += len(rec.Data)
	}
	if run.Encoded != nil {
		total += len(run.Encoded.Data)
	}
	return total
}

// rngFor seeds the generator that drives, in order: update network weights,
// random initial states, inputs, encoder weights and latent sampling.
func rngFor(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
