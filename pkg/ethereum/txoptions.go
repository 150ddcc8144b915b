package ethereum

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TxOptions are the caller supplied transaction parameters.
// From is required. GasPrice and Gas are optional base-10 strings; when empty the node is asked.
// Extra is handed to the connection untouched.
type TxOptions struct {
	From     common.Address    `json:"from" yaml:"from"`
	GasPrice string            `json:"gasPrice,omitempty" yaml:"gas_price,omitempty"`
	Gas      string            `json:"gas,omitempty" yaml:"gas,omitempty"`
	Extra    map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// ValidateTxOptions checks opts without touching the network
func ValidateTxOptions(opts *TxOptions) error {
	if opts == nil {
		return &InvalidTransactionOptionsError{Reason: "transaction options are required"}
	}
	if opts.From == (common.Address{}) {
		return &InvalidTransactionOptionsError{Reason: "from address is required"}
	}
	if opts.GasPrice != "" {
		if _, ok := parseUint(opts.GasPrice); !ok {
			return &InvalidTransactionOptionsError{Reason: fmt.Sprintf("gasPrice %q is not a number", opts.GasPrice)}
		}
	}
	if opts.Gas != "" {
		gas, ok := parseUint(opts.Gas)
		if !ok || !gas.IsUint64() {
			return &InvalidTransactionOptionsError{Reason: fmt.Sprintf("gas %q is not a number", opts.Gas)}
		}
	}
	return nil
}

// GasPriceValue returns the configured gas price or nil
func (o *TxOptions) GasPriceValue() *big.Int {
	if o == nil || o.GasPrice == "" {
		return nil
	}
	v, _ := parseUint(o.GasPrice)
	return v
}

// GasValue returns the configured gas limit or 0
func (o *TxOptions) GasValue() uint64 {
	if o == nil || o.Gas == "" {
		return 0
	}
	v, ok := parseUint(o.Gas)
	if !ok || !v.IsUint64() {
		return 0
	}
	return v.Uint64()
}

// WithFrom returns a copy of o sending from addr
func (o TxOptions) WithFrom(addr common.Address) *TxOptions {
	o.From = addr
	if o.Extra != nil {
		extra := make(map[string]string, len(o.Extra))
		for k, v := range o.Extra {
			extra[k] = v
		}
		o.Extra = extra
	}
	return &o
}

func parseUint(s string) (*big.Int, bool) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}
