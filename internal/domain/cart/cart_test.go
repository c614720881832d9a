package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCart_Add(t *testing.T) {
	c := New("C101")

	total, err := c.Add("P002", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	total, err = c.Add("P002", 3)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Equal(t, 5, c.Quantity("P002"))
}

func TestCart_Add_RejectsNonPositiveQuantity(t *testing.T) {
	c := New("C101")

	for _, qty := range []int{0, -1, -100} {
		_, err := c.Add("P001", qty)
		require.ErrorIs(t, err, ErrInvalidQuantity)
	}
	assert.True(t, c.IsEmpty())
}

func TestCart_Remove_Idempotent(t *testing.T) {
	c := New("C101")
	_, err := c.Add("P001", 1)
	require.NoError(t, err)

	c.Remove("P001")
	assert.True(t, c.IsEmpty())

	// removing again, or removing something never added, is a no-op
	c.Remove("P001")
	c.Remove("P999")
	assert.True(t, c.IsEmpty())
}

func TestCart_Lines_OrderedAndStable(t *testing.T) {
	c := New("C101")
	for _, id := range []string{"P003", "P001", "P002"} {
		_, err := c.Add(id, 1)
		require.NoError(t, err)
	}

	lines := c.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, "P001", lines[0].ProductID)
	assert.Equal(t, "P002", lines[1].ProductID)
	assert.Equal(t, "P003", lines[2].ProductID)

	// the snapshot is detached from later mutation
	c.Remove("P001")
	assert.Len(t, lines, 3)
	assert.Equal(t, "P001", lines[0].ProductID)
}

func TestCart_Quantity_ZeroWhenAbsent(t *testing.T) {
	c := New("C101")
	assert.Equal(t, 0, c.Quantity("P001"))
}
