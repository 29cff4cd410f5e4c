package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/variantkit/vcfshard/vcfshard/sharding"
	"github.com/variantkit/vcfshard/vcfshard/storage"
	"github.com/variantkit/vcfshard/vcfshard/vcf"
)

// StageFunc is one downstream transformation: it receives exactly one
// shard (or upstream artifact) path and returns the path of the artifact
// it produced. Implementations must not share mutable state between
// invocations; each per-shard chain is independently retryable.
type StageFunc func(ctx context.Context, inputPath string) (string, error)

// StageTemplate is a downstream task template the orchestrator maps over
// the runtime-determined shard list.
type StageTemplate struct {
	Name string
	Run  StageFunc
	// Retries is how many extra attempts a retryable failure gets.
	Retries int
	// Backoff is the pause between attempts.
	Backoff time.Duration
}

// Orchestrator drives one sharding run and fans the downstream stage
// chain out over its shards, bounded by a concurrency limit. The
// sharding stage itself stays a single linear pass; only the per-shard
// chains run concurrently.
type Orchestrator struct {
	store         storage.Handler
	stage         *sharding.Stage
	downstream    []StageTemplate
	maxConcurrent int
}

func New(store storage.Handler, downstream []StageTemplate, maxConcurrent int) *Orchestrator {
	if maxConcurrent <= 0 {
		maxConcurrent = runtime.NumCPU()
	}
	return &Orchestrator{
		store:         store,
		stage:         sharding.NewStage(store),
		downstream:    downstream,
		maxConcurrent: maxConcurrent,
	}
}

// PipelineResult is what a full pipeline run produces: the shard list
// from the sharding stage and the final artifact per shard chain.
type PipelineResult struct {
	RunID      string
	RunDir     string
	ShardPaths []string
	Artifacts  []string
}

// Execute runs the whole pipeline once: shard the input, then map the
// downstream chain over the resulting shards. The shard count is unknown
// until the sharding stage returns.
func (o *Orchestrator) Execute(ctx context.Context, params sharding.Params) (*PipelineResult, error) {
	result, err := o.stage.Shard(ctx, params)
	if err != nil {
		return nil, err
	}

	// Completion gate: fan-out only proceeds past a recorded manifest.
	manifest, err := sharding.LoadManifest(ctx, o.store, result.Run.Dir())
	if err != nil {
		return nil, err
	}

	artifacts, err := o.fanOut(ctx, manifest.Shards)
	if err != nil {
		return nil, err
	}
	return &PipelineResult{
		RunID:      result.Run.ID,
		RunDir:     result.Run.Dir(),
		ShardPaths: manifest.Shards,
		Artifacts:  artifacts,
	}, nil
}

// ResumeFanOut fans out over an already-completed run. A run directory
// without a manifest is refused: partial shard sets are never reused.
func (o *Orchestrator) ResumeFanOut(ctx context.Context, runDir string) ([]string, error) {
	manifest, err := sharding.LoadManifest(ctx, o.store, runDir)
	if err != nil {
		return nil, err
	}
	return o.fanOut(ctx, manifest.Shards)
}

// fanOut instantiates one chain per shard. Every chain operates only on
// its own shard and its own artifacts, so no locking is needed between
// them; results land in per-shard slots.
func (o *Orchestrator) fanOut(ctx context.Context, shardPaths []string) ([]string, error) {
	if len(shardPaths) == 0 {
		slog.Info("fan-out skipped: run produced no shards")
		return nil, nil
	}
	slog.Info("fanning out downstream chains",
		"shards", len(shardPaths),
		"stages", len(o.downstream),
		"maxConcurrent", o.maxConcurrent,
	)

	artifacts := make([]string, len(shardPaths))
	p := pool.New().WithContext(ctx).WithMaxGoroutines(o.maxConcurrent)
	for i, shardPath := range shardPaths {
		p.Go(func(ctx context.Context) error {
			artifact, err := o.runChain(ctx, shardPath)
			if err != nil {
				return fmt.Errorf("shard %s: %w", shardPath, err)
			}
			artifacts[i] = artifact
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return artifacts, nil
}

// runChain feeds one shard through every downstream stage in order, each
// stage consuming the previous stage's artifact.
func (o *Orchestrator) runChain(ctx context.Context, shardPath string) (string, error) {
	current := shardPath
	for _, stage := range o.downstream {
		artifact, err := o.runStage(ctx, stage, current)
		if err != nil {
			return "", fmt.Errorf("stage %s: %w", stage.Name, err)
		}
		current = artifact
	}
	return current, nil
}

func (o *Orchestrator) runStage(ctx context.Context, stage StageTemplate, input string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= stage.Retries; attempt++ {
		if attempt > 0 {
			slog.Warn("retrying stage", "stage", stage.Name, "input", input, "attempt", attempt)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(stage.Backoff):
			}
		}
		artifact, err := stage.Run(ctx, input)
		if err == nil {
			return artifact, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}
	return "", lastErr
}

// retryable separates failures worth another attempt (transient storage,
// flaky network) from ones that will fail identically every time
// (corrupt input, permission denied, bad parameters).
func retryable(err error) bool {
	if errors.Is(err, vcf.ErrFormat) || errors.Is(err, context.Canceled) {
		return false
	}
	var we *storage.WriteError
	if errors.As(err, &we) {
		return we.Transient
	}
	return true
}
