package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	embarkerrors "github.com/toadkicker/embark-framework/pkg/errors"
)

// Kind is the type of an ABI entry.
type Kind string

const (
	KindFunction Kind = "function"
	KindEvent    Kind = "event"
)

// Param is one input or output of an ABI entry.
type Param struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Indexed bool   `json:"indexed,omitempty"`
}

// MethodSpec describes one callable entry of a contract interface.
type MethodSpec struct {
	// Name is the member name. Overloaded entries after the first get a
	// numeric suffix (transfer, transfer0, ...).
	Name      string
	RawName   string
	Kind      Kind
	ReadOnly  bool
	Inputs    []Param
	Outputs   []Param
	Signature string
}

// Descriptor is a contract interface plus its creation bytecode and, for a
// bound instance, its address.
type Descriptor struct {
	Entries  []MethodSpec
	ABI      abi.ABI
	Bytecode []byte
	Address  *common.Address
}

type rawEntry struct {
	Type            string  `json:"type"`
	Name            string  `json:"name"`
	Constant        bool    `json:"constant"`
	StateMutability string  `json:"stateMutability"`
	Inputs          []Param `json:"inputs"`
	Outputs         []Param `json:"outputs"`
}

// ParseDescriptor builds a Descriptor from a JSON ABI, hex bytecode (with or
// without 0x, may be empty) and an optional hex address.
func ParseDescriptor(abiJSON []byte, bytecode, address string) (Descriptor, error) {
	parsed, err := abi.JSON(bytes.NewReader(abiJSON))
	if err != nil {
		return Descriptor{}, embarkerrors.NewInputError("abi", fmt.Sprintf("invalid ABI: %v", err), nil)
	}

	var raw []rawEntry
	if err := json.Unmarshal(abiJSON, &raw); err != nil {
		return Descriptor{}, embarkerrors.NewInputError("abi", fmt.Sprintf("invalid ABI: %v", err), nil)
	}

	desc := Descriptor{
		Entries:  specsFromRaw(raw, parsed),
		ABI:      parsed,
		Bytecode: common.FromHex(bytecode),
	}

	if address != "" {
		if !common.IsHexAddress(address) {
			return Descriptor{}, embarkerrors.NewInputError("address", fmt.Sprintf("invalid contract address %q", address), address)
		}
		addr := common.HexToAddress(address)
		desc.Address = &addr
	}

	return desc, nil
}

// specsFromRaw keeps the declaration order of the ABI file, which the
// parsed abi.ABI maps lose, and resolves overloaded names the same way
// go-ethereum does.
func specsFromRaw(raw []rawEntry, parsed abi.ABI) []MethodSpec {
	usedMethods := make(map[string]bool)
	usedEvents := make(map[string]bool)
	specs := make([]MethodSpec, 0, len(raw))

	for _, entry := range raw {
		switch entry.Type {
		case "", "function":
			name := abi.ResolveNameConflict(entry.Name, func(s string) bool { return usedMethods[s] })
			usedMethods[name] = true
			method, ok := parsed.Methods[name]
			if !ok {
				continue
			}
			specs = append(specs, MethodSpec{
				Name:      name,
				RawName:   entry.Name,
				Kind:      KindFunction,
				ReadOnly:  entry.Constant || isReadOnlyMutability(entry.StateMutability),
				Inputs:    entry.Inputs,
				Outputs:   entry.Outputs,
				Signature: method.Sig,
			})
		case "event":
			name := abi.ResolveNameConflict(entry.Name, func(s string) bool { return usedEvents[s] })
			usedEvents[name] = true
			event, ok := parsed.Events[name]
			if !ok {
				continue
			}
			specs = append(specs, MethodSpec{
				Name:      name,
				RawName:   entry.Name,
				Kind:      KindEvent,
				Inputs:    entry.Inputs,
				Signature: event.Sig,
			})
		}
	}

	return specs
}

func isReadOnlyMutability(m string) bool {
	switch strings.ToLower(m) {
	case "view", "pure":
		return true
	default:
		return false
	}
}

// Bound reports whether the descriptor carries an address.
func (d Descriptor) Bound() bool {
	return d.Address != nil
}

// Clone returns a copy of d that shares no entries, bytecode or address
// with it. The parsed ABI is shared; it is never modified after parsing.
func (d Descriptor) Clone() Descriptor {
	out := d
	out.Entries = append([]MethodSpec(nil), d.Entries...)
	out.Bytecode = bytes.Clone(d.Bytecode)
	if d.Address != nil {
		addr := *d.Address
		out.Address = &addr
	}
	return out
}

// WithAddress returns a copy of d bound to addr.
func (d Descriptor) WithAddress(addr common.Address) Descriptor {
	d.Address = &addr
	return d
}
