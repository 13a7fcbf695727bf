package types

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleNested() Data {
	return Vector{
		Count(42),
		String("payload"),
		NewSet(Integer(-1), Integer(7), Boolean(true)),
		NewTable(
			TableEntry{Key: String("addr"), Value: Address(netip.MustParseAddr("10.1.2.3"))},
			TableEntry{Key: String("net"), Value: Subnet(netip.MustParsePrefix("10.0.0.0/8"))},
			TableEntry{Key: String("port"), Value: Port{Number: 443, Protocol: TCP}},
		),
		Timestamp(time.Unix(1600000000, 12345).UTC()),
		Timespan(1500 * time.Millisecond),
		EnumValue("state/established"),
		None{},
	}
}

func TestData_StructuralEquality(t *testing.T) {
	assert.True(t, Equal(sampleNested(), sampleNested()))
	assert.False(t, Equal(Count(1), Integer(1)))
	assert.False(t, Equal(String("a"), String("b")))
	assert.True(t, Equal(nil, None{}))
}

func TestData_SetIsCanonical(t *testing.T) {
	a := NewSet(Count(3), Count(1), Count(2), Count(1))
	b := NewSet(Count(1), Count(2), Count(3))

	assert.True(t, Equal(a, b))
	assert.Equal(t, 3, len(a))
	assert.True(t, a.Contains(Count(2)))
	assert.False(t, a.Contains(Count(9)))
}

func TestData_TableLaterKeyWins(t *testing.T) {
	table := NewTable(
		TableEntry{Key: String("k"), Value: Count(1)},
		TableEntry{Key: String("k"), Value: Count(2)},
	)

	require.Equal(t, 1, len(table))
	v, ok := table.Lookup(String("k"))
	require.True(t, ok)
	assert.True(t, Equal(v, Count(2)))
}

func TestData_HashIsOrderIndependentForContainers(t *testing.T) {
	a := NewSet(String("x"), String("y"), String("z"))
	b := NewSet(String("z"), String("x"), String("y"))
	assert.Equal(t, Hash(a), Hash(b))

	ta := NewTable(
		TableEntry{Key: Count(1), Value: String("a")},
		TableEntry{Key: Count(2), Value: String("b")},
	)
	tb := NewTable(
		TableEntry{Key: Count(2), Value: String("b")},
		TableEntry{Key: Count(1), Value: String("a")},
	)
	assert.Equal(t, Hash(ta), Hash(tb))

	// Vectors are ordered, swapping elements changes the hash.
	assert.NotEqual(t, Hash(Vector{Count(1), Count(2)}), Hash(Vector{Count(2), Count(1)}))
}

func TestData_CompareIsTotal(t *testing.T) {
	assert.Equal(t, 0, Compare(Count(5), Count(5)))
	assert.Equal(t, -1, Compare(Count(1), Count(2)))
	assert.Equal(t, 1, Compare(Count(2), Count(1)))

	// Different types rank by type, never panic.
	assert.Equal(t, -1, Compare(None{}, Vector{}))
	assert.Equal(t, 1, Compare(String("z"), Count(999)))
}

func TestData_JSONRoundTrip(t *testing.T) {
	original := sampleNested()

	b, err := MarshalData(original)
	require.NoError(t, err)

	restored, err := UnmarshalData(b)
	require.NoError(t, err)
	assert.True(t, Equal(original, restored),
		"expected %s, found %s", ToString(original), ToString(restored))
}

func TestData_JSONRoundTripKeepsCountPrecision(t *testing.T) {
	original := Count(1<<63 + 12345)

	b, err := MarshalData(original)
	require.NoError(t, err)

	restored, err := UnmarshalData(b)
	require.NoError(t, err)
	assert.True(t, Equal(original, restored))
}

func TestData_ToString(t *testing.T) {
	assert.Equal(t, "T", ToString(Boolean(true)))
	assert.Equal(t, "F", ToString(Boolean(false)))
	assert.Equal(t, "{1, 2}", ToString(NewSet(Count(2), Count(1))))
	assert.Equal(t, "[nil, x]", ToString(Vector{None{}, String("x")}))
	assert.Equal(t, "{k -> 1}", ToString(NewTable(TableEntry{Key: String("k"), Value: Count(1)})))
	assert.Equal(t, "443/tcp", ToString(Port{Number: 443, Protocol: TCP}))
}
