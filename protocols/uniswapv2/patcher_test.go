package uniswapv2

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplySync(t *testing.T) {
	prev := Pool{
		Address:  common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc"),
		Token0:   common.HexToAddress("0x01"),
		Token1:   common.HexToAddress("0x02"),
		Reserve0: big.NewInt(1000),
		Reserve1: big.NewInt(5000),
		Fee:      3000,
	}

	t.Run("should replace both reserves", func(t *testing.T) {
		ev := Sync{Reserve0: big.NewInt(1100), Reserve1: big.NewInt(4546)}
		next, err := ApplySync(prev, ev)
		require.NoError(t, err)

		assert.Zero(t, next.Reserve0.Cmp(big.NewInt(1100)))
		assert.Zero(t, next.Reserve1.Cmp(big.NewInt(4546)))
		assert.Equal(t, prev.Address, next.Address)
		assert.Equal(t, prev.Fee, next.Fee)
	})

	t.Run("should leave the previous state untouched", func(t *testing.T) {
		ev := Sync{Reserve0: big.NewInt(1), Reserve1: big.NewInt(2)}
		next, err := ApplySync(prev, ev)
		require.NoError(t, err)

		ev.Reserve0.SetInt64(999)
		assert.Equal(t, "1", next.Reserve0.String(), "event memory must not alias the new state")
		assert.Equal(t, "1000", prev.Reserve0.String())
		assert.Equal(t, "5000", prev.Reserve1.String())
	})

	t.Run("should reject reserves outside uint112", func(t *testing.T) {
		_, err := ApplySync(prev, Sync{Reserve0: new(big.Int).Lsh(big.NewInt(1), 112), Reserve1: big.NewInt(1)})
		assert.ErrorIs(t, err, ErrInvalidState)

		_, err = ApplySync(prev, Sync{Reserve0: big.NewInt(-1), Reserve1: big.NewInt(1)})
		assert.ErrorIs(t, err, ErrInvalidState)

		_, err = ApplySync(prev, Sync{Reserve0: big.NewInt(1)})
		assert.ErrorIs(t, err, ErrInvalidState)
	})
}

func TestClone(t *testing.T) {
	p := Pool{Reserve0: big.NewInt(7), Reserve1: big.NewInt(9)}
	c := p.Clone()

	assert.NotSame(t, p.Reserve0, c.Reserve0)
	assert.NotSame(t, p.Reserve1, c.Reserve1)
	c.Reserve0.SetInt64(8)
	assert.Equal(t, "7", p.Reserve0.String())

	empty := Pool{}.Clone()
	assert.Nil(t, empty.Reserve0)
}
