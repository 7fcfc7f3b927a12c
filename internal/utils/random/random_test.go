package random

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickCoversAllItems(t *testing.T) {
	items := []string{"a", "b", "c"}
	seen := map[string]int{}
	for i := 0; i < 300; i++ {
		v, err := Pick(items)
		require.NoError(t, err)
		seen[v]++
	}
	assert.Len(t, seen, 3)
}

func TestPickEmpty(t *testing.T) {
	_, err := Pick([]int(nil))
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Intn(0)
	assert.Error(t, err)
}
