package numbering

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitNumber(t *testing.T) {
	parts, err := splitNumber("PO-0005")
	require.NoError(t, err)
	require.Equal(t, "PO-", parts.prefix)
	require.Equal(t, int64(5), parts.value)
	require.Equal(t, 4, parts.width)

	_, err = splitNumber("")
	require.Error(t, err)

	_, err = splitNumber("NODIGITS")
	require.Error(t, err)
}

func TestIncrementNumberKeepsPadding(t *testing.T) {
	next, err := incrementNumber("PO-0005", 1)
	require.NoError(t, err)
	require.Equal(t, "PO-0006", next)

	next, err = incrementNumber("PO-0099", 2)
	require.NoError(t, err)
	require.Equal(t, "PO-0101", next)

	// Width grows once the padded digits overflow.
	next, err = incrementNumber("PO-9999", 1)
	require.NoError(t, err)
	require.Equal(t, "PO-10000", next)
}

func TestCompareNumbers(t *testing.T) {
	cmp, err := compareNumbers("PO-0005", "PO-0006")
	require.NoError(t, err)
	require.Equal(t, -1, cmp)

	cmp, err = compareNumbers("PO-0010", "PO-0002")
	require.NoError(t, err)
	require.Equal(t, 1, cmp)

	_, err = compareNumbers("PO-0005", "INV-0005")
	require.Error(t, err)
}

func TestNumberInRange(t *testing.T) {
	in, err := numberInRange("PO-0500", "PO-0001", "PO-0999")
	require.NoError(t, err)
	require.True(t, in)

	in, err = numberInRange("PO-1000", "PO-0001", "PO-0999")
	require.NoError(t, err)
	require.False(t, in)

	// Open-ended range.
	in, err = numberInRange("PO-99999", "PO-0001", "")
	require.NoError(t, err)
	require.True(t, in)
}

func TestRemaining(t *testing.T) {
	left, err := Remaining("PO-0090", "PO-0100")
	require.NoError(t, err)
	require.Equal(t, int64(10), left)

	left, err = Remaining("PO-0100", "PO-0100")
	require.NoError(t, err)
	require.Equal(t, int64(0), left)

	left, err = Remaining("PO-0101", "PO-0100")
	require.NoError(t, err)
	require.Equal(t, int64(0), left)

	_, err = Remaining("PO-0001", "INV-0100")
	require.Error(t, err)
}
