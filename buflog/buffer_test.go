package buflog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferAppendAndBytes(t *testing.T) {
	b := NewBuffer(1024)
	require.Equal(t, 0, b.Size())
	require.Equal(t, 0, b.NumRecords())

	b.Append([]byte("abc"))
	require.Equal(t, 3, b.Size())
	require.Equal(t, 1, b.NumRecords())
	require.Equal(t, "abc", string(b.Bytes()))

	b.Append([]byte("def"))
	require.Equal(t, "abcdef", string(b.Bytes()))
	require.Equal(t, 2, b.NumRecords())
}

func TestBufferFitsIsStrictlyLessThan(t *testing.T) {
	b := NewBuffer(10)
	require.True(t, b.Fits(9))
	require.False(t, b.Fits(10), "size+n must be strictly less than capacity")

	b.Append(make([]byte, 9))
	require.False(t, b.Fits(1))
	require.True(t, b.Fits(0), "0 bytes still fits since 9+0 < 10")
}

func TestBufferClearResetsSizeAndCount(t *testing.T) {
	b := NewBuffer(64)
	b.Append([]byte("hello"))
	b.Clear()
	require.Equal(t, 0, b.Size())
	require.Equal(t, 0, b.NumRecords())
	require.Empty(t, b.Bytes())
}

func TestBufferReserveGrowsAndPreservesContent(t *testing.T) {
	b := NewBuffer(8)
	b.Append([]byte("abcd"))
	b.Reserve(100)
	require.GreaterOrEqual(t, b.Capacity(), 100)
	require.Equal(t, "abcd", string(b.Bytes()))

	// Reserve to a smaller value than current capacity is a no-op.
	b.Reserve(1)
	require.GreaterOrEqual(t, b.Capacity(), 100)
}

func TestBufferAppendPanicsWithoutFitsCheck(t *testing.T) {
	b := NewBuffer(4)
	require.Panics(t, func() {
		b.Append([]byte("toolong"))
	})
}
