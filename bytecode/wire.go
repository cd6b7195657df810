package bytecode

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// FormatVersion is the version of the serialized module layout.
const FormatVersion = 1

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

type envelope struct {
	Magic   string  `cbor:"1,keyasint"`
	Version int     `cbor:"2,keyasint"`
	Module  *Module `cbor:"3,keyasint"`
}

const magic = "AGSC"

// Marshal serializes a module to CBOR bytes.
func Marshal(m *Module) ([]byte, error) {
	return encMode.Marshal(envelope{Magic: magic, Version: FormatVersion, Module: m})
}

// Unmarshal deserializes a module from CBOR bytes.
func Unmarshal(data []byte) (*Module, error) {
	var env envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal module: %w", err)
	}
	if env.Magic != magic {
		return nil, fmt.Errorf("bytecode: unmarshal module: not a compiled module")
	}
	if env.Version != FormatVersion {
		return nil, fmt.Errorf("bytecode: unmarshal module: unsupported version %d", env.Version)
	}
	if env.Module == nil {
		return nil, fmt.Errorf("bytecode: unmarshal module: missing module")
	}
	return env.Module, nil
}
