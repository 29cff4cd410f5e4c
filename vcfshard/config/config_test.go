package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ConfigTestSuite tests the config package functionality
type ConfigTestSuite struct {
	suite.Suite
	tempDir string
	origDir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	viper.Reset()

	// Save original directory
	var err error
	suite.origDir, err = os.Getwd()
	require.NoError(suite.T(), err)

	// Create temporary directory for testing
	tempDir, err := os.MkdirTemp("", "vcfshard-config-test-*")
	require.NoError(suite.T(), err)
	suite.tempDir = tempDir

	// Change to temp directory
	err = os.Chdir(tempDir)
	require.NoError(suite.T(), err)
}

func (suite *ConfigTestSuite) TearDownTest() {
	if suite.origDir != "" {
		os.Chdir(suite.origDir)
	}
	if suite.tempDir != "" {
		os.RemoveAll(suite.tempDir)
	}
}

func (suite *ConfigTestSuite) writeConfig(content string) string {
	path := filepath.Join(suite.tempDir, "config.yaml")
	require.NoError(suite.T(), os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (suite *ConfigTestSuite) TestLoadConfigFromFile() {
	path := suite.writeConfig(`
pipeline:
  input: /test_data/sample.vcf.gz
  region: chr21:5000-6000
  linesPerShard: 2500
  outputRoot: runs
storage:
  backend: local
  basePath: /data
`)

	cfg, err := LoadConfig(path)
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), "/test_data/sample.vcf.gz", cfg.Pipeline.Input)
	assert.Equal(suite.T(), 2500, cfg.Pipeline.LinesPerShard)
	assert.Equal(suite.T(), "local", cfg.Storage.Backend)
	assert.Equal(suite.T(), "/data", cfg.Storage.BasePath)

	region, err := cfg.ParsedRegion()
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "chr21", region.Contig)
	assert.Equal(suite.T(), uint64(5000), region.Start)
}

func (suite *ConfigTestSuite) TestDefaults() {
	path := suite.writeConfig(`
pipeline:
  input: /test_data/sample.vcf.gz
`)

	cfg, err := LoadConfig(path)
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), 10000, cfg.Pipeline.LinesPerShard)
	assert.Equal(suite.T(), "runs", cfg.Pipeline.OutputRoot)
	assert.Equal(suite.T(), 10000, cfg.Pipeline.ProgressEvery)
	assert.Equal(suite.T(), "local", cfg.Storage.Backend)

	region, err := cfg.ParsedRegion()
	require.NoError(suite.T(), err)
	assert.True(suite.T(), region.IsZero())
}

func (suite *ConfigTestSuite) TestValidation() {
	cases := []struct {
		name    string
		content string
	}{
		{"MissingInput", `
pipeline:
  linesPerShard: 100
`},
		{"ZeroLinesPerShard", `
pipeline:
  input: /in.vcf.gz
  linesPerShard: 0
`},
		{"NegativeLinesPerShard", `
pipeline:
  input: /in.vcf.gz
  linesPerShard: -5
`},
		{"BadRegion", `
pipeline:
  input: /in.vcf.gz
  region: "chr1:10-5"
`},
	}

	for _, tc := range cases {
		suite.Run(tc.name, func() {
			viper.Reset()
			path := suite.writeConfig(tc.content)
			_, err := LoadConfig(path)
			require.Error(suite.T(), err)
			assert.ErrorIs(suite.T(), err, ErrConfiguration)
		})
	}
}

func (suite *ConfigTestSuite) TestMissingConfigFileUsesDefaults() {
	// No config file anywhere under the temp dir: LoadConfig should fall
	// back to defaults and then fail validation on the missing input.
	_, err := LoadConfig("")
	require.Error(suite.T(), err)
	assert.ErrorIs(suite.T(), err, ErrConfiguration)
}
