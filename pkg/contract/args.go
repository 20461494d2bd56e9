package contract

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	embarkerrors "github.com/toadkicker/embark-framework/pkg/errors"
)

// ParseArgs converts textual arguments into the Go values the ABI packer
// expects for method name. An empty name selects the constructor.
// Numbers accept decimal or 0x hex, bytes are 0x hex. Arrays and tuples
// are not supported.
func (d Descriptor) ParseArgs(name string, raw []string) ([]any, error) {
	var inputs abi.Arguments
	if name == "" {
		inputs = d.ABI.Constructor.Inputs
	} else {
		m, ok := d.ABI.Methods[name]
		if !ok {
			return nil, embarkerrors.NewInputError("method", fmt.Sprintf("unknown method %q", name), name)
		}
		inputs = m.Inputs
	}
	if len(raw) != len(inputs) {
		return nil, embarkerrors.NewInputError("args",
			fmt.Sprintf("expected %d arguments, got %d", len(inputs), len(raw)), raw)
	}

	out := make([]any, len(raw))
	for i, arg := range inputs {
		v, err := parseArg(arg.Type, raw[i])
		if err != nil {
			return nil, embarkerrors.NewInputError(arg.Name,
				fmt.Sprintf("argument %d (%s): %v", i, arg.Type.String(), err), raw[i])
		}
		out[i] = v
	}
	return out, nil
}

func parseArg(t abi.Type, s string) (any, error) {
	switch t.T {
	case abi.StringTy:
		return s, nil
	case abi.BoolTy:
		return strconv.ParseBool(s)
	case abi.AddressTy:
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("invalid address %q", s)
		}
		return common.HexToAddress(s), nil
	case abi.IntTy, abi.UintTy:
		n, ok := new(big.Int).SetString(s, 0)
		if !ok {
			return nil, fmt.Errorf("invalid number %q", s)
		}
		if t.T == abi.UintTy && n.Sign() < 0 {
			return nil, fmt.Errorf("negative value for unsigned type")
		}
		return sizedInt(t, n)
	case abi.BytesTy:
		return hexutil.Decode(s)
	case abi.FixedBytesTy:
		b, err := hexutil.Decode(s)
		if err != nil {
			return nil, err
		}
		if len(b) > t.Size {
			return nil, fmt.Errorf("%d bytes do not fit bytes%d", len(b), t.Size)
		}
		v := reflect.New(t.GetType()).Elem()
		reflect.Copy(v, reflect.ValueOf(b))
		return v.Interface(), nil
	default:
		return nil, fmt.Errorf("unsupported type")
	}
}

// sizedInt returns n as the Go type go-ethereum binds t to: a fixed-width
// integer up to 64 bits, *big.Int above.
func sizedInt(t abi.Type, n *big.Int) (any, error) {
	goType := t.GetType()
	if goType == reflect.TypeOf(n) {
		return n, nil
	}
	v := reflect.New(goType).Elem()
	if t.T == abi.UintTy {
		if !n.IsUint64() || v.OverflowUint(n.Uint64()) {
			return nil, fmt.Errorf("%s overflows uint%d", n, t.Size)
		}
		v.SetUint(n.Uint64())
	} else {
		if !n.IsInt64() || v.OverflowInt(n.Int64()) {
			return nil, fmt.Errorf("%s overflows int%d", n, t.Size)
		}
		v.SetInt(n.Int64())
	}
	return v.Interface(), nil
}
