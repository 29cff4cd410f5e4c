package sharding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	internal "github.com/variantkit/vcfshard/vcfshard"
	"github.com/variantkit/vcfshard/vcfshard/storage"
)

// ErrRunIncomplete marks a run directory with no manifest: either the
// run crashed mid-sharding or it is still in flight. Its shards must not
// be fed downstream.
var ErrRunIncomplete = errors.New("run has no manifest")

// Manifest is the audit record and completion marker of one run. It is
// written once, after all shards, and never mutated.
type Manifest struct {
	RunID         string    `json:"runId"`
	Input         string    `json:"input"`
	Region        string    `json:"region,omitempty"`
	LinesPerShard int       `json:"linesPerShard"`
	OutputRoot    string    `json:"outputRoot"`
	ShardCount    int       `json:"shardCount"`
	TotalRecords  int       `json:"totalRecords"`
	Shards        []string  `json:"shards"`
	StartedAt     time.Time `json:"startedAt"`
	CompletedAt   time.Time `json:"completedAt"`
}

func NewManifest(run *Run, shards []ShardDescriptor, completed time.Time) *Manifest {
	m := &Manifest{
		RunID:         run.ID,
		Input:         run.Params.Input,
		LinesPerShard: run.Params.LinesPerShard,
		OutputRoot:    run.Params.OutputRoot,
		ShardCount:    len(shards),
		Shards:        make([]string, 0, len(shards)),
		StartedAt:     run.StartedAt,
		CompletedAt:   completed,
	}
	if !run.Params.Region.IsZero() {
		m.Region = run.Params.Region.String()
	}
	for _, shard := range shards {
		m.TotalRecords += shard.Records
		m.Shards = append(m.Shards, shard.Path)
	}
	return m
}

func (m *Manifest) encode() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// LoadManifest reads the manifest under runDir. ErrRunIncomplete means
// the run never completed; this is the orchestrator's fan-out gate.
func LoadManifest(ctx context.Context, store storage.Handler, runDir string) (*Manifest, error) {
	manifestPath := path.Join(runDir, internal.DefaultManifestName)
	exists, err := store.Exists(ctx, manifestPath)
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", manifestPath, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrRunIncomplete, runDir)
	}

	data, err := store.Read(ctx, manifestPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", manifestPath, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", manifestPath, err)
	}
	return &m, nil
}
