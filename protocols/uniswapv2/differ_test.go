package uniswapv2

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDrift(t *testing.T) {
	tracked := Pool{Reserve0: big.NewInt(1000), Reserve1: big.NewInt(2000)}

	t.Run("should report nothing for matching reserves", func(t *testing.T) {
		fetched := Pool{Reserve0: big.NewInt(1000), Reserve1: big.NewInt(2000)}
		assert.Empty(t, Drift(tracked, fetched))
	})

	t.Run("should name every reserve that moved", func(t *testing.T) {
		assert.Equal(t, []string{"reserve0"}, Drift(tracked, Pool{Reserve0: big.NewInt(1001), Reserve1: big.NewInt(2000)}))
		assert.Equal(t, []string{"reserve1"}, Drift(tracked, Pool{Reserve0: big.NewInt(1000), Reserve1: big.NewInt(1999)}))
		assert.Equal(t, []string{"reserve0", "reserve1"}, Drift(tracked, Pool{Reserve0: big.NewInt(0), Reserve1: big.NewInt(0)}))
	})
}
