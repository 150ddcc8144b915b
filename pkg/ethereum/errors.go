package ethereum

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// ErrTransactionReverted is wrapped by SubmissionError when a mined receipt reports failure
var ErrTransactionReverted = errors.New("transaction reverted")

// InvalidConnectionError is returned when a binding is created without a usable connection
type InvalidConnectionError struct {
	Reason string
}

func (e *InvalidConnectionError) Error() string {
	return "invalid connection: " + e.Reason
}

// InvalidAddressError is returned for malformed addresses and for the zero address where
// a contract address is required
type InvalidAddressError struct {
	Field string
	Value string
}

func (e *InvalidAddressError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid address %q", e.Value)
	}
	return fmt.Sprintf("invalid address for %s: %q", e.Field, e.Value)
}

// InvalidTransactionOptionsError is returned when transaction options are missing or malformed.
// It is always raised before any network call.
type InvalidTransactionOptionsError struct {
	Reason string
}

func (e *InvalidTransactionOptionsError) Error() string {
	return "invalid transaction options: " + e.Reason
}

// SubmissionError wraps any failure while sending a transaction or waiting for its receipt.
// The transport error stays reachable through errors.Unwrap.
type SubmissionError struct {
	Contract string
	Method   string
	TxHash   common.Hash
	// Receipt is set when the transaction was mined but reverted
	Receipt *Receipt
	Err     error
}

func (e *SubmissionError) Error() string {
	op := e.Contract
	if e.Method != "" {
		op += "." + e.Method
	} else {
		op += " deployment"
	}
	if e.TxHash != (common.Hash{}) {
		return fmt.Sprintf("submit %s (tx %s): %v", op, e.TxHash.Hex(), e.Err)
	}
	return fmt.Sprintf("submit %s: %v", op, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// RevertReason extracts the Solidity Error(string) reason carried by a failed submission.
// Nodes attach revert data to eth_estimateGas / eth_call failures as rpc.DataError.
func RevertReason(err error) (string, bool) {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return "", false
	}

	var data []byte
	switch v := dataErr.ErrorData().(type) {
	case string:
		decoded, decErr := hexutil.Decode(v)
		if decErr != nil {
			return "", false
		}
		data = decoded
	case []byte:
		data = v
	default:
		return "", false
	}

	reason, unpackErr := abi.UnpackRevert(data)
	if unpackErr != nil {
		return "", false
	}
	return reason, true
}
