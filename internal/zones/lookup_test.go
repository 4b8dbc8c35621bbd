package zones

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupCSV(n int) string {
	var b strings.Builder
	b.WriteString("zone_id,borough,zone,service_zone\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "%d,Borough %d,Zone %d,Boro Zone\n", i, (i%5)+1, i)
	}
	return b.String()
}

func TestParse(t *testing.T) {
	lookup, err := Parse(strings.NewReader(lookupCSV(265)))
	require.NoError(t, err)

	assert.Equal(t, 265, lookup.Count())
	assert.NoError(t, lookup.Validate())

	z, ok := lookup.Get(42)
	require.True(t, ok)
	assert.Equal(t, 42, z.ID)
	assert.Equal(t, "Zone 42", z.Name)

	assert.True(t, lookup.Contains(1))
	assert.False(t, lookup.Contains(999))
}

func TestParse_RejectsDuplicates(t *testing.T) {
	csv := "zone_id,borough,zone,service_zone\n1,A,One,Boro\n1,A,OneAgain,Boro\n"
	_, err := Parse(strings.NewReader(csv))
	assert.ErrorContains(t, err, "duplicate zone id")
}

func TestParse_RejectsReservedGlobalID(t *testing.T) {
	csv := "zone_id,borough,zone,service_zone\n0,A,Global,Boro\n"
	_, err := Parse(strings.NewReader(csv))
	assert.ErrorContains(t, err, "reserved")
}

func TestValidate_TruncatedLookup(t *testing.T) {
	lookup, err := Parse(strings.NewReader(lookupCSV(10)))
	require.NoError(t, err)
	assert.Error(t, lookup.Validate())
}

func TestIDs_Ascending(t *testing.T) {
	lookup, err := Parse(strings.NewReader("zone_id,borough,zone,service_zone\n3,A,C,Boro\n1,A,A,Boro\n2,A,B,Boro\n"))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, lookup.IDs())
}
