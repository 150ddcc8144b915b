package commands

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/chainsafe/optimal-wallet/pkg/artifacts"
	"github.com/chainsafe/optimal-wallet/pkg/ethereum"
	"github.com/chainsafe/optimal-wallet/pkg/ethereum/contracts"
)

type rawTxOutput struct {
	Contract string        `json:"contract"`
	From     string        `json:"from,omitempty"`
	Gas      string        `json:"gas,omitempty"`
	GasPrice string        `json:"gasPrice,omitempty"`
	Data     hexutil.Bytes `json:"data"`
}

func deployTxCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy-tx <contract> [constructor args...]",
		Short: "Print the unsigned creation transaction of a contract",
		Long: "Print the unsigned creation transaction of a contract for external signing.\n" +
			"Address array arguments are comma separated.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := opts.provider()
			if err != nil {
				return err
			}
			a, err := provider.Lookup(args[0])
			if err != nil {
				return err
			}
			ctorArgs, err := constructorArgs(a.ABI.Constructor, args[1:])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			tx, err := contracts.NewRegistry(provider).DeployTx(args[0], ctorArgs...)
			if err != nil {
				return err
			}

			out := &rawTxOutput{Contract: tx.Contract, Gas: opts.gas, GasPrice: opts.gasPrice, Data: tx.Data}
			if opts.from != "" {
				from, err := ethereum.ParseAddress("from", opts.from)
				if err != nil {
					return err
				}
				out.From = from.Hex()
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func contractsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "contracts",
		Short: "List known contracts, their constructor and whether bytecode is available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			provider, err := opts.provider()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CONTRACT\tDEPLOYABLE\tCONSTRUCTOR")
			for _, name := range provider.Names() {
				a, err := provider.Lookup(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%t\t(%s)\n", name, a.Deployable(), constructorSignature(a))
			}
			return tw.Flush()
		},
	}
}

func constructorSignature(a *artifacts.Artifact) string {
	inputs := a.ABI.Constructor.Inputs
	parts := make([]string, 0, len(inputs))
	for _, in := range inputs {
		parts = append(parts, strings.TrimSpace(in.Type.String()+" "+in.Name))
	}
	return strings.Join(parts, ", ")
}

// constructorArgs converts command line strings into the Go values expected by the ABI packer
func constructorArgs(ctor abi.Method, raw []string) ([]any, error) {
	if len(raw) != len(ctor.Inputs) {
		return nil, fmt.Errorf("constructor takes %d arguments, got %d", len(ctor.Inputs), len(raw))
	}
	out := make([]any, 0, len(raw))
	for i, in := range ctor.Inputs {
		v, err := convertArg(in.Type, raw[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d (%s %s): %w", i, in.Type.String(), in.Name, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func convertArg(t abi.Type, raw string) (any, error) {
	switch t.T {
	case abi.AddressTy:
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("%q is not an address", raw)
		}
		return common.HexToAddress(raw), nil
	case abi.StringTy:
		return raw, nil
	case abi.BoolTy:
		return strconv.ParseBool(raw)
	case abi.UintTy:
		return convertUint(t.Size, raw)
	case abi.SliceTy:
		if t.Elem.T != abi.AddressTy {
			return nil, fmt.Errorf("unsupported slice type %s", t.String())
		}
		addrs := make([]common.Address, 0)
		if raw == "" {
			return addrs, nil
		}
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if !common.IsHexAddress(part) {
				return nil, fmt.Errorf("%q is not an address", part)
			}
			addrs = append(addrs, common.HexToAddress(part))
		}
		return addrs, nil
	}
	return nil, fmt.Errorf("unsupported type %s", t.String())
}

func convertUint(size int, raw string) (any, error) {
	if size > 64 {
		v, ok := new(big.Int).SetString(raw, 10)
		if !ok || v.Sign() < 0 {
			return nil, fmt.Errorf("%q is not an unsigned integer", raw)
		}
		return v, nil
	}
	v, err := strconv.ParseUint(raw, 10, size)
	if err != nil {
		return nil, err
	}
	switch size {
	case 8:
		return uint8(v), nil
	case 16:
		return uint16(v), nil
	case 32:
		return uint32(v), nil
	default:
		return v, nil
	}
}
