package rectype

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckTag(t *testing.T) {
	t.Parallel()

	for _, tag := range []string{"DataSet", "Run", "_x", "ns:Set", "Data-Set.v2", "Größe"} {
		require.NoError(t, CheckTag(tag), tag)
	}
	for _, tag := range []string{"", " ", "Data Set", "1Set", "-Set", "Set>", "</Set", "a/b", "\xff"} {
		require.ErrorIs(t, CheckTag(tag), ErrInvalidTag, "%q", tag)
	}
}
