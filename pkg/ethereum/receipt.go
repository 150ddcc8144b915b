package ethereum

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// Event is one decoded log entry
type Event struct {
	Name     string         `json:"name"`
	Address  common.Address `json:"address"`
	LogIndex uint           `json:"logIndex"`
	Fields   map[string]any `json:"fields"`
}

// Receipt is the outcome of a mined transaction
type Receipt struct {
	TxHash          common.Hash        `json:"transactionHash"`
	BlockNumber     uint64             `json:"blockNumber"`
	GasUsed         uint64             `json:"gasUsed"`
	Status          bool               `json:"status"`
	From            common.Address     `json:"from"`
	To              *common.Address    `json:"to,omitempty"`
	ContractAddress common.Address     `json:"contractAddress"`
	Events          map[string][]Event `json:"events"`
}

// Event returns the first decoded event with the given name
func (r *Receipt) Event(name string) (Event, bool) {
	if r == nil {
		return Event{}, false
	}
	events := r.Events[name]
	if len(events) == 0 {
		return Event{}, false
	}
	return events[0], true
}

// EventDecoder decodes logs against a set of known event ABIs, keyed by topic
type EventDecoder struct {
	events map[common.Hash]abi.Event
}

// NewEventDecoder indexes the non-anonymous events of every ABI
func NewEventDecoder(abis ...abi.ABI) *EventDecoder {
	d := &EventDecoder{events: make(map[common.Hash]abi.Event)}
	for _, a := range abis {
		for _, ev := range a.Events {
			if ev.Anonymous {
				continue
			}
			d.events[ev.ID] = ev
		}
	}
	return d
}

// Decode returns the decoded event for log. ok is false for logs no known ABI describes.
func (d *EventDecoder) Decode(log *types.Log) (ev Event, ok bool, err error) {
	if d == nil || len(log.Topics) == 0 {
		return Event{}, false, nil
	}
	def, found := d.events[log.Topics[0]]
	if !found {
		return Event{}, false, nil
	}

	fields := make(map[string]any)
	if nonIndexed := def.Inputs.NonIndexed(); len(nonIndexed) > 0 {
		if err := nonIndexed.UnpackIntoMap(fields, log.Data); err != nil {
			return Event{}, false, fmt.Errorf("failed to unpack %s data: %w", def.Name, err)
		}
	}

	var indexed abi.Arguments
	for _, arg := range def.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(indexed) > 0 {
		if err := abi.ParseTopicsIntoMap(fields, indexed, log.Topics[1:]); err != nil {
			return Event{}, false, fmt.Errorf("failed to parse %s topics: %w", def.Name, err)
		}
	}

	return Event{
		Name:     def.Name,
		Address:  log.Address,
		LogIndex: log.Index,
		Fields:   fields,
	}, true, nil
}

// newReceipt flattens r. Logs that match a known event but fail to unpack are logged and skipped.
func newReceipt(from common.Address, r *types.Receipt, decoder *EventDecoder, logger *zap.Logger) *Receipt {
	out := &Receipt{
		TxHash:          r.TxHash,
		GasUsed:         r.GasUsed,
		Status:          r.Status == types.ReceiptStatusSuccessful,
		From:            from,
		ContractAddress: r.ContractAddress,
		Events:          make(map[string][]Event),
	}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.Uint64()
	}

	for _, log := range r.Logs {
		ev, ok, err := decoder.Decode(log)
		if err != nil {
			logger.Warn("Failed to decode receipt log",
				zap.String("tx_hash", r.TxHash.Hex()),
				zap.Uint("log_index", log.Index),
				zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		out.Events[ev.Name] = append(out.Events[ev.Name], ev)
	}
	return out
}
