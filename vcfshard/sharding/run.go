package sharding

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/google/uuid"

	internal "github.com/variantkit/vcfshard/vcfshard"
	"github.com/variantkit/vcfshard/vcfshard/config"
	"github.com/variantkit/vcfshard/vcfshard/storage"
	"github.com/variantkit/vcfshard/vcfshard/vcf"
)

// runIDLayout gives second resolution, enough to keep concurrent runs
// apart at moderate run frequency; the uuid suffix covers the rest.
const runIDLayout = "2006-01-02_15-04-05"

// Params are one run's input parameters. They are validated before any
// I/O happens.
type Params struct {
	Input         string
	Region        vcf.Region
	LinesPerShard int
	OutputRoot    string
	// ProgressEvery logs a progress line every N records; 0 disables it.
	ProgressEvery int
	// RunID pins the run identifier instead of minting a timestamp one.
	// The named run directory must not already exist.
	RunID string
}

func (p Params) Validate() error {
	if strings.TrimSpace(p.Input) == "" {
		return fmt.Errorf("%w: input locator is required", config.ErrConfiguration)
	}
	if p.LinesPerShard <= 0 {
		return fmt.Errorf("%w: linesPerShard must be positive, got %d", config.ErrConfiguration, p.LinesPerShard)
	}
	if strings.TrimSpace(p.OutputRoot) == "" {
		return fmt.Errorf("%w: outputRoot is required", config.ErrConfiguration)
	}
	if p.RunID != "" {
		if strings.ContainsAny(p.RunID, "/\\") || p.RunID == "." || p.RunID == ".." {
			return fmt.Errorf("%w: runID must be a plain directory name, got %q", config.ErrConfiguration, p.RunID)
		}
	}
	return nil
}

// Run is one append-only invocation of the sharding stage. All of its
// artifacts live under Dir(); nothing in a prior run's directory is ever
// touched.
type Run struct {
	ID        string
	Params    Params
	StartedAt time.Time
}

func (r *Run) Dir() string {
	return path.Join(r.Params.OutputRoot, r.ID)
}

func (r *Run) ShardsDir() string {
	return path.Join(r.Dir(), internal.DefaultShardDirName)
}

func (r *Run) ShardPath(index int) string {
	return path.Join(r.ShardsDir(), fmt.Sprintf("shard_%04d.vcf.gz", index))
}

func (r *Run) ShardIndexPath(index int) string {
	return r.ShardPath(index) + ".idx.json"
}

func (r *Run) ManifestPath() string {
	return path.Join(r.Dir(), internal.DefaultManifestName)
}

// RunManager allocates run identities and persists manifests.
type RunManager struct {
	store         storage.Handler
	assertHandler *assert.AssertHandler
	now           func() time.Time
}

func NewRunManager(store storage.Handler, assertHandler *assert.AssertHandler) *RunManager {
	if assertHandler == nil {
		assertHandler = assert.NewAssertHandler()
	}
	return &RunManager{
		store:         store,
		assertHandler: assertHandler,
		now:           time.Now,
	}
}

// BeginRun allocates a unique run directory under the output root. The
// identifier is the UTC start timestamp; on collision (an existing run
// directory or two runs inside the same second) a short uuid suffix
// disambiguates. A caller-supplied RunID is taken verbatim, and an
// existing directory under that name fails the run instead: reruns get
// fresh directories, never a rewrite of an old one.
func (m *RunManager) BeginRun(ctx context.Context, params Params) (*Run, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	started := m.now().UTC()
	id := params.RunID
	if id == "" {
		id = started.Format(runIDLayout)
	}

	taken, err := m.runDirTaken(ctx, params.OutputRoot, id)
	if err != nil {
		return nil, fmt.Errorf("checking run directory: %w", err)
	}
	if taken {
		if params.RunID != "" {
			return nil, fmt.Errorf("run %s: directory already exists under %s, runs are append-only", id, params.OutputRoot)
		}
		id = id + "_" + uuid.NewString()[:8]
		slog.Warn("run id collision, adding disambiguator", "runID", id)
	}

	run := &Run{ID: id, Params: params, StartedAt: started}
	slog.Info("starting sharding run",
		"runID", run.ID,
		"input", params.Input,
		"region", regionLabel(params.Region),
		"linesPerShard", params.LinesPerShard,
		"outputDir", run.Dir(),
	)
	return run, nil
}

func (m *RunManager) runDirTaken(ctx context.Context, root, id string) (bool, error) {
	existing, err := m.store.List(ctx, path.Join(root, id))
	if err != nil {
		return false, err
	}
	return len(existing) > 0, nil
}

// RecordManifest persists the run manifest exactly once, after every
// shard is durably written. Its presence is the run's success marker: a
// crash mid-sharding leaves shards behind but no manifest, and the
// orchestrator must treat such a run as failed.
func (m *RunManager) RecordManifest(ctx context.Context, run *Run, shards []ShardDescriptor) (*Manifest, error) {
	exists, err := m.store.Exists(ctx, run.ManifestPath())
	if err != nil {
		return nil, fmt.Errorf("run %s: checking manifest: %w", run.ID, err)
	}
	if exists {
		return nil, fmt.Errorf("run %s: manifest already recorded, runs are write-once", run.ID)
	}

	// The manifest's shard list is positional; a gap or reordering here
	// would hand the orchestrator the wrong fan-out.
	for i, shard := range shards {
		m.assertHandler.Assert(ctx, shard.Index == i,
			"shard descriptors must be contiguous and ordered",
			"runID", run.ID, "position", i, "index", shard.Index)
	}

	manifest := NewManifest(run, shards, m.now().UTC())
	data, err := manifest.encode()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", run.ID, err)
	}
	if err := m.store.Write(ctx, run.ManifestPath(), data); err != nil {
		return nil, fmt.Errorf("run %s: writing manifest: %w", run.ID, err)
	}

	slog.Info("recorded run manifest",
		"runID", run.ID,
		"manifest", run.ManifestPath(),
		"shardCount", len(shards),
	)
	return manifest, nil
}

func regionLabel(r vcf.Region) string {
	if r.IsZero() {
		return "all"
	}
	return r.String()
}
