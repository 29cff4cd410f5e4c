package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/variantkit/vcfshard/vcfshard/sharding"
	"github.com/variantkit/vcfshard/vcfshard/storage"
	"github.com/variantkit/vcfshard/vcfshard/vcf"
)

const testPreamble = `##fileformat=VCFv4.2
##contig=<ID=chr21>
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO
`

func writeInput(t *testing.T, records int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(testPreamble)
	for i := 0; i < records; i++ {
		fmt.Fprintf(&b, "chr21\t%d\t.\tA\tG\t30\tPASS\t.\n", 1000+i*10)
	}
	path := filepath.Join(t.TempDir(), "input.vcf")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func newTestStore(t *testing.T) storage.Handler {
	t.Helper()
	store, err := storage.NewLocalHandler(t.TempDir())
	require.NoError(t, err)
	return store
}

func testParams(input string, linesPerShard int) sharding.Params {
	return sharding.Params{Input: input, LinesPerShard: linesPerShard, OutputRoot: "runs"}
}

// markerStage writes a sibling artifact for its input, the way the
// transform and load stages produce one output per shard.
func markerStage(store storage.Handler, suffix string) StageTemplate {
	return StageTemplate{
		Name: "marker" + suffix,
		Run: func(ctx context.Context, inputPath string) (string, error) {
			artifact := inputPath + suffix
			if err := store.Write(ctx, artifact, []byte("from "+inputPath)); err != nil {
				return "", err
			}
			return artifact, nil
		},
	}
}

func TestOrchestrator(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{"ExecuteChainsPerShard", testExecuteChainsPerShard},
		{"DynamicCardinality", testDynamicCardinality},
		{"EmptyRunSkipsFanOut", testEmptyRunSkipsFanOut},
		{"ManifestGate", testManifestGate},
		{"RetryTransient", testRetryTransient},
		{"NoRetryPermanent", testNoRetryPermanent},
		{"ConcurrencyBound", testConcurrencyBound},
	}
	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}

func testExecuteChainsPerShard(t *testing.T) {
	store := newTestStore(t)
	o := New(store, []StageTemplate{
		markerStage(store, ".tsv"),
		markerStage(store, ".parquet"),
	}, 4)

	result, err := o.Execute(context.Background(), testParams(writeInput(t, 250), 100))
	require.NoError(t, err)

	require.Len(t, result.ShardPaths, 3)
	require.Len(t, result.Artifacts, 3)
	for i, artifact := range result.Artifacts {
		// Each chain's final artifact derives from its own shard only.
		assert.Equal(t, result.ShardPaths[i]+".tsv.parquet", artifact)
		ok, err := store.Exists(context.Background(), artifact)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func testDynamicCardinality(t *testing.T) {
	store := newTestStore(t)
	o := New(store, []StageTemplate{markerStage(store, ".out")}, 2)

	// The same template fans out over however many shards the input
	// yields; the count is unknown before execution.
	for _, tc := range []struct {
		records, perShard, wantShards int
	}{
		{10, 100, 1},
		{250, 50, 5},
		{100, 100, 1},
	} {
		result, err := o.Execute(context.Background(), testParams(writeInput(t, tc.records), tc.perShard))
		require.NoError(t, err)
		assert.Len(t, result.Artifacts, tc.wantShards)
	}
}

func testEmptyRunSkipsFanOut(t *testing.T) {
	store := newTestStore(t)
	invoked := atomic.Int32{}
	o := New(store, []StageTemplate{{
		Name: "count",
		Run: func(ctx context.Context, inputPath string) (string, error) {
			invoked.Add(1)
			return inputPath, nil
		},
	}}, 2)

	params := testParams(writeInput(t, 50), 100)
	params.Region = vcf.Region{Contig: "chr21", Start: 1, End: 5}

	result, err := o.Execute(context.Background(), params)
	require.NoError(t, err)
	assert.Empty(t, result.ShardPaths)
	assert.Empty(t, result.Artifacts)
	assert.Zero(t, invoked.Load(), "no shards means no downstream instantiation")
}

func testManifestGate(t *testing.T) {
	store := newTestStore(t)
	o := New(store, []StageTemplate{markerStage(store, ".out")}, 2)
	ctx := context.Background()

	// A run directory with shards but no manifest: crashed mid-sharding.
	require.NoError(t, store.Write(ctx, "runs/2025-01-01_00-00-00/shards/shard_0000.vcf.gz", []byte("orphan")))

	_, err := o.ResumeFanOut(ctx, "runs/2025-01-01_00-00-00")
	require.Error(t, err)
	assert.ErrorIs(t, err, sharding.ErrRunIncomplete, "partial shard sets are never reused")
}

func testRetryTransient(t *testing.T) {
	store := newTestStore(t)
	var attempts atomic.Int32
	flaky := StageTemplate{
		Name:    "flaky",
		Retries: 3,
		Backoff: time.Millisecond,
		Run: func(ctx context.Context, inputPath string) (string, error) {
			if attempts.Add(1) <= 2 {
				return "", &storage.WriteError{Path: inputPath, Transient: true, Err: fmt.Errorf("blip")}
			}
			return inputPath + ".ok", nil
		},
	}
	o := New(store, []StageTemplate{flaky}, 1)

	result, err := o.Execute(context.Background(), testParams(writeInput(t, 10), 100))
	require.NoError(t, err)
	assert.Equal(t, int32(3), attempts.Load(), "two transient failures, then success")
	require.Len(t, result.Artifacts, 1)
	assert.True(t, strings.HasSuffix(result.Artifacts[0], ".ok"))
}

func testNoRetryPermanent(t *testing.T) {
	store := newTestStore(t)
	var attempts atomic.Int32
	corrupt := StageTemplate{
		Name:    "corrupt",
		Retries: 5,
		Run: func(ctx context.Context, inputPath string) (string, error) {
			attempts.Add(1)
			return "", fmt.Errorf("parsing shard: %w", vcf.ErrFormat)
		},
	}
	o := New(store, []StageTemplate{corrupt}, 1)

	_, err := o.Execute(context.Background(), testParams(writeInput(t, 10), 100))
	require.Error(t, err)
	assert.ErrorIs(t, err, vcf.ErrFormat)
	assert.Equal(t, int32(1), attempts.Load(), "format errors fail identically every attempt")

	attempts.Store(0)
	denied := StageTemplate{
		Name:    "denied",
		Retries: 5,
		Run: func(ctx context.Context, inputPath string) (string, error) {
			attempts.Add(1)
			return "", &storage.WriteError{Path: inputPath, Transient: false, Err: fmt.Errorf("permission denied")}
		},
	}
	o = New(store, []StageTemplate{denied}, 1)
	_, err = o.Execute(context.Background(), testParams(writeInput(t, 10), 100))
	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())
}

func testConcurrencyBound(t *testing.T) {
	store := newTestStore(t)

	var mu sync.Mutex
	inFlight, peak := 0, 0
	gauge := StageTemplate{
		Name: "gauge",
		Run: func(ctx context.Context, inputPath string) (string, error) {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			inFlight--
			mu.Unlock()
			return inputPath, nil
		},
	}
	o := New(store, []StageTemplate{gauge}, 2)

	result, err := o.Execute(context.Background(), testParams(writeInput(t, 200), 20))
	require.NoError(t, err)
	require.Len(t, result.Artifacts, 10)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 2, "fan-out must respect the concurrency limit")
	assert.GreaterOrEqual(t, peak, 1)
}
