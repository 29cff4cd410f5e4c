package sharding

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	assert "github.com/ZanzyTHEbar/assert-lib"

	"github.com/variantkit/vcfshard/vcfshard/storage"
	"github.com/variantkit/vcfshard/vcfshard/streaming"
	"github.com/variantkit/vcfshard/vcfshard/vcf"
)

// Stage is the sharding stage as the orchestrator sees it: one entry
// point per run that returns the ordered shard list the orchestrator
// fans downstream tasks over.
type Stage struct {
	store storage.Handler
	runs  *RunManager
}

// NewStage assembles the sharding stage on top of a storage backend.
func NewStage(store storage.Handler) *Stage {
	assertHandler := assert.NewAssertHandler()
	return &Stage{
		store: store,
		runs:  NewRunManager(store, assertHandler),
	}
}

// Result is what one run hands back to the orchestrator.
type Result struct {
	Run      *Run
	Manifest *Manifest
	Shards   []ShardDescriptor
}

// ShardPaths returns the ordered storage paths the orchestrator maps
// downstream tasks over. The cardinality is unknown before execution.
func (r *Result) ShardPaths() []string {
	paths := make([]string, len(r.Shards))
	for i, s := range r.Shards {
		paths[i] = s.Path
	}
	return paths
}

// Shard executes one full sharding run: validate parameters, open the
// source, drain it into shards, then record the manifest as the
// completion marker. On failure, already-written shards stay behind as
// forensic evidence but no manifest appears, so the orchestrator never
// fans out over a partial run.
func (s *Stage) Shard(ctx context.Context, params Params) (*Result, error) {
	run, err := s.runs.BeginRun(ctx, params)
	if err != nil {
		return nil, err
	}

	stream, err := streaming.Open(ctx, params.Input, params.Region)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", run.ID, err)
	}
	defer stream.Close()

	header := stream.Header()
	slog.Info("parsed source header",
		"runID", run.ID,
		"fileformat", header.FileFormat,
		"samples", len(header.Samples),
		"contigs", len(header.Contigs),
	)

	shards, err := NewShardWriter(s.store, run).Run(ctx, stream)
	if err != nil {
		// Shards written so far remain on storage; the absent manifest
		// marks the run as failed.
		return nil, err
	}

	manifest, err := s.runs.RecordManifest(ctx, run, shards)
	if err != nil {
		return nil, err
	}
	return &Result{Run: run, Manifest: manifest, Shards: shards}, nil
}

// InspectSummary is the result of a streaming pass without sharding.
type InspectSummary struct {
	TotalRecords int
	ByContig     map[string]int
}

// Inspect streams a source and reports per-contig record counts, up to
// limit records (0 means all). It writes nothing.
func (s *Stage) Inspect(ctx context.Context, source string, region vcf.Region, limit int) (*InspectSummary, error) {
	stream, err := streaming.Open(ctx, source, region)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	summary := &InspectSummary{ByContig: make(map[string]int)}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		summary.TotalRecords++
		summary.ByContig[rec.Chrom]++
		if limit > 0 && summary.TotalRecords >= limit {
			slog.Info("reached inspection limit", "limit", limit)
			break
		}
	}
	return summary, nil
}
