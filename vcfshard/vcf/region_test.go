package vcf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRegion(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    Region
		wantErr bool
	}{
		{"WholeContig", "chr21", Region{Contig: "chr21"}, false},
		{"Interval", "chr21:5000-6000", Region{Contig: "chr21", Start: 5000, End: 6001}, false},
		{"ThousandsSeparators", "chr1:1,000-2,000", Region{Contig: "chr1", Start: 1000, End: 2001}, false},
		{"SingleBase", "chrX:42-42", Region{Contig: "chrX", Start: 42, End: 43}, false},
		{"Empty", "", Region{}, true},
		{"NoContig", ":5-10", Region{}, true},
		{"NoEnd", "chr1:5", Region{}, true},
		{"ZeroStart", "chr1:0-10", Region{}, true},
		{"Inverted", "chr1:10-5", Region{}, true},
		{"Garbage", "chr1:abc-def", Region{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseRegion(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRegionOverlaps(t *testing.T) {
	interval := Region{Contig: "chr21", Start: 100, End: 200}

	assert.True(t, interval.Overlaps("chr21", 100, 1))
	assert.True(t, interval.Overlaps("chr21", 199, 1))
	assert.False(t, interval.Overlaps("chr21", 200, 1), "end is exclusive")
	assert.False(t, interval.Overlaps("chr21", 50, 1))
	assert.True(t, interval.Overlaps("chr21", 95, 10), "deletion spanning the start overlaps")
	assert.False(t, interval.Overlaps("chr22", 150, 1), "other contigs never match")

	whole := Region{Contig: "chr21"}
	assert.True(t, whole.Overlaps("chr21", 1, 1))
	assert.False(t, whole.Overlaps("chr22", 1, 1))
	assert.True(t, Region{}.IsZero())
	assert.False(t, interval.IsZero())
}

func TestRegionString(t *testing.T) {
	r, err := ParseRegion("chr21:5000-6000")
	require.NoError(t, err)
	assert.Equal(t, "chr21:5000-6000", r.String())
	assert.Equal(t, "chr21", Region{Contig: "chr21"}.String())
}
