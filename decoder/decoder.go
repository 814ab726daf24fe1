package decoder

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/defistate/defistate-arb-go/engine"
	uniswapv2 "github.com/defistate/defistate-arb-go/protocols/uniswapv2"
	uniswapv3 "github.com/defistate/defistate-arb-go/protocols/uniswapv3"
)

var (
	// ErrRemovedLog is returned for logs dropped by a chain reorganisation.
	ErrRemovedLog = errors.New("log was removed by a reorg")
	// ErrUnknownEvent is returned for logs whose first topic is not a tracked event.
	ErrUnknownEvent = errors.New("unknown event")
	ErrMalformedLog = errors.New("malformed log")
)

type decodeFunc func(log types.Log) (engine.Event, error)

// Decoder turns pool logs into the events the tracker applies.
type Decoder struct {
	pairABI abi.ABI
	poolABI abi.ABI
	byTopic map[common.Hash]decodeFunc
}

func New() (*Decoder, error) {
	pairABI, poolABI, err := ABIs()
	if err != nil {
		return nil, err
	}
	d := &Decoder{
		pairABI: pairABI,
		poolABI: poolABI,
	}
	d.byTopic = map[common.Hash]decodeFunc{
		pairABI.Events["Sync"].ID: d.decodeSync,
		poolABI.Events["Swap"].ID: d.decodeSwap,
		poolABI.Events["Mint"].ID: d.decodeMint,
		poolABI.Events["Burn"].ID: d.decodeBurn,
	}
	return d, nil
}

// Topics returns the event signatures the decoder understands, for log filters.
func (d *Decoder) Topics() []common.Hash {
	topics := make([]common.Hash, 0, len(d.byTopic))
	for topic := range d.byTopic {
		topics = append(topics, topic)
	}
	slices.SortFunc(topics, func(a, b common.Hash) int { return bytes.Compare(a[:], b[:]) })
	return topics
}

// Decode returns the emitting pool, the position of the log and the decoded event.
func (d *Decoder) Decode(log types.Log) (common.Address, engine.Marker, engine.Event, error) {
	marker := engine.Marker{Block: log.BlockNumber, LogIndex: uint64(log.Index)}
	if log.Removed {
		return log.Address, marker, nil, fmt.Errorf("%w: %s at %s", ErrRemovedLog, log.Address, marker)
	}
	if len(log.Topics) == 0 {
		return log.Address, marker, nil, fmt.Errorf("%w: no topics", ErrMalformedLog)
	}
	decode, ok := d.byTopic[log.Topics[0]]
	if !ok {
		return log.Address, marker, nil, fmt.Errorf("%w: %s", ErrUnknownEvent, log.Topics[0])
	}
	ev, err := decode(log)
	if err != nil {
		return log.Address, marker, nil, fmt.Errorf("%w: %s at %s: %w", ErrMalformedLog, log.Address, marker, err)
	}
	return log.Address, marker, ev, nil
}

func (d *Decoder) decodeSync(log types.Log) (engine.Event, error) {
	values, err := unpack(d.pairABI.Events["Sync"], log, 2)
	if err != nil {
		return nil, err
	}
	reserve0, err := asBigInt(values[0])
	if err != nil {
		return nil, err
	}
	reserve1, err := asBigInt(values[1])
	if err != nil {
		return nil, err
	}
	return uniswapv2.Sync{Reserve0: reserve0, Reserve1: reserve1}, nil
}

func (d *Decoder) decodeSwap(log types.Log) (engine.Event, error) {
	values, err := unpack(d.poolABI.Events["Swap"], log, 5)
	if err != nil {
		return nil, err
	}
	sqrtPrice, err := asBigInt(values[2])
	if err != nil {
		return nil, err
	}
	liquidity, err := asBigInt(values[3])
	if err != nil {
		return nil, err
	}
	tick, err := asInt24(values[4])
	if err != nil {
		return nil, err
	}
	return uniswapv3.Swap{SqrtPriceX96: sqrtPrice, Liquidity: liquidity, Tick: tick}, nil
}

type positionTopics struct {
	Owner     common.Address
	TickLower *big.Int
	TickUpper *big.Int
}

func (d *Decoder) decodeMint(log types.Log) (engine.Event, error) {
	event := d.poolABI.Events["Mint"]
	lower, upper, err := parseRange(event, log)
	if err != nil {
		return nil, err
	}
	values, err := unpack(event, log, 4)
	if err != nil {
		return nil, err
	}
	amount, err := asBigInt(values[1])
	if err != nil {
		return nil, err
	}
	return uniswapv3.Mint{TickLower: lower, TickUpper: upper, Amount: amount}, nil
}

func (d *Decoder) decodeBurn(log types.Log) (engine.Event, error) {
	event := d.poolABI.Events["Burn"]
	lower, upper, err := parseRange(event, log)
	if err != nil {
		return nil, err
	}
	values, err := unpack(event, log, 3)
	if err != nil {
		return nil, err
	}
	amount, err := asBigInt(values[0])
	if err != nil {
		return nil, err
	}
	return uniswapv3.Burn{TickLower: lower, TickUpper: upper, Amount: amount}, nil
}

func parseRange(event abi.Event, log types.Log) (lower, upper int32, err error) {
	indexed := indexedArguments(event.Inputs)
	if len(log.Topics) != len(indexed)+1 {
		return 0, 0, fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(log.Topics))
	}
	var topics positionTopics
	if err := abi.ParseTopics(&topics, indexed, log.Topics[1:]); err != nil {
		return 0, 0, fmt.Errorf("parse topics: %w", err)
	}
	if lower, err = asInt24(topics.TickLower); err != nil {
		return 0, 0, err
	}
	if upper, err = asInt24(topics.TickUpper); err != nil {
		return 0, 0, err
	}
	return lower, upper, nil
}

func unpack(event abi.Event, log types.Log, want int) ([]any, error) {
	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	if len(values) != want {
		return nil, fmt.Errorf("unexpected %s values: %d", event.Name, len(values))
	}
	return values, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func asBigInt(v any) (*big.Int, error) {
	n, ok := v.(*big.Int)
	if !ok || n == nil {
		return nil, fmt.Errorf("expected integer, got %T", v)
	}
	return new(big.Int).Set(n), nil
}

func asInt24(v any) (int32, error) {
	n, err := asBigInt(v)
	if err != nil {
		return 0, err
	}
	if !n.IsInt64() || n.Int64() < -(1<<23) || n.Int64() >= 1<<23 {
		return 0, fmt.Errorf("value %s out of int24 range", n)
	}
	return int32(n.Int64()), nil
}
