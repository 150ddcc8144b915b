package ethereum

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAddress converts user input into an address. Input must be 0x-prefixed 40 hex chars;
// mixed-case input must also carry a valid EIP-55 checksum.
func ParseAddress(field, value string) (common.Address, error) {
	s := strings.TrimSpace(value)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return common.Address{}, &InvalidAddressError{Field: field, Value: value}
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, &InvalidAddressError{Field: field, Value: value}
	}

	addr := common.HexToAddress(s)
	body := s[2:]
	if body != strings.ToLower(body) && body != strings.ToUpper(body) && addr.Hex() != "0x"+body {
		return common.Address{}, &InvalidAddressError{Field: field, Value: value}
	}
	return addr, nil
}

// ParseAddresses parses a list of addresses, reporting the first invalid entry
func ParseAddresses(field string, values []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(values))
	for _, v := range values {
		addr, err := ParseAddress(field, v)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// RequireContractAddress rejects the zero address where a deployed contract is expected
func RequireContractAddress(field string, addr common.Address) error {
	if addr == (common.Address{}) {
		return &InvalidAddressError{Field: field, Value: addr.Hex()}
	}
	return nil
}
