package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internal "github.com/variantkit/vcfshard/vcfshard"
	"github.com/variantkit/vcfshard/vcfshard/config"
)

// chtemp moves the test into a fresh directory so config discovery only
// sees files the test planted, and resets viper's global state around it.
func chtemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	viper.Reset()
	t.Cleanup(func() {
		require.NoError(t, os.Chdir(wd))
		viper.Reset()
	})
	return dir
}

func writeConfigFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRunConfigMergesFileAndFlags(t *testing.T) {
	dir := chtemp(t)
	writeConfigFile(t, dir, `
pipeline:
  outputRoot: from-file
storage:
  backend: local
  basePath: /srv/vcfshard-data
`)

	// The file has no input; the flag supplies it. Everything the file
	// does set must survive the merge.
	cfg, err := loadRunConfig(shardOptions{input: "sample.vcf"})
	require.NoError(t, err)
	assert.Equal(t, "sample.vcf", cfg.Pipeline.Input)
	assert.Equal(t, "from-file", cfg.Pipeline.OutputRoot)
	assert.Equal(t, "/srv/vcfshard-data", cfg.Storage.BasePath)
	assert.Equal(t, internal.DefaultLinesPerShard, cfg.Pipeline.LinesPerShard)
}

func TestLoadRunConfigFlagsOverrideFile(t *testing.T) {
	dir := chtemp(t)
	writeConfigFile(t, dir, `
pipeline:
  input: from-file.vcf
  linesPerShard: 500
storage:
  backend: local
`)

	cfg, err := loadRunConfig(shardOptions{
		input:           "from-flag.vcf",
		linesPerShard:   250,
		storageBackend:  "s3",
		storageBasePath: "/elsewhere",
	})
	require.NoError(t, err)
	assert.Equal(t, "from-flag.vcf", cfg.Pipeline.Input)
	assert.Equal(t, 250, cfg.Pipeline.LinesPerShard)
	assert.Equal(t, "s3", cfg.Storage.Backend)
	assert.Equal(t, "/elsewhere", cfg.Storage.BasePath)
}

func TestLoadRunConfigRejectsUnparseableFile(t *testing.T) {
	dir := chtemp(t)
	writeConfigFile(t, dir, "pipeline: [broken")

	// A discovered file that fails to parse is an error, never silently
	// replaced by built-in defaults.
	_, err := loadRunConfig(shardOptions{input: "sample.vcf"})
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func TestLoadRunConfigFlagOnly(t *testing.T) {
	chtemp(t)

	cfg, err := loadRunConfig(shardOptions{input: "sample.vcf", outputRoot: "out"})
	require.NoError(t, err)
	assert.Equal(t, "sample.vcf", cfg.Pipeline.Input)
	assert.Equal(t, "out", cfg.Pipeline.OutputRoot)
	assert.Equal(t, "local", cfg.Storage.Backend)
}

func TestLoadRunConfigExplicitMissingFile(t *testing.T) {
	dir := chtemp(t)

	// An explicitly named config file must exist.
	_, err := loadRunConfig(shardOptions{
		configPath: filepath.Join(dir, "nope.yaml"),
		input:      "sample.vcf",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func TestLoadRunConfigValidatesMergedResult(t *testing.T) {
	chtemp(t)

	// No input from file or flag: the merged config fails validation.
	_, err := loadRunConfig(shardOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfiguration)
}
