package columnar

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_ValueOf_Native_roundTrip(t *testing.T) {
	require.Equal(t, int32(-7), Native[int32](ValueOf(int32(-7))))
	require.Equal(t, int64(1<<40), Native[int64](ValueOf(int64(1<<40))))
	require.Equal(t, float32(1.5), Native[float32](ValueOf(float32(1.5))))
	require.Equal(t, 2.5, Native[float64](ValueOf(2.5)))
	require.Equal(t, true, Native[bool](ValueOf(true)))
	require.Equal(t, []byte("abc"), Native[[]byte](ValueOf([]byte("abc"))))
}

func Test_MakeValues_CopyNative(t *testing.T) {
	src := []int64{5, 10, 15}

	values := MakeValues(nil, src)
	require.Len(t, values, len(src))

	out := make([]int64, len(src))
	n := CopyNative(out, values)
	require.Equal(t, len(src), n)
	require.Equal(t, src, out)
}
