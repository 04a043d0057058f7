package fhe

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Kind identifies a named security configuration.
type Kind int

const (
	KindDefault Kind = iota
	KindFast
	KindCustom
)

var kindNames = map[Kind]string{
	KindDefault: "Default",
	KindFast:    "Fast",
	KindCustom:  "Custom",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalJSON encodes the kind by name.
func (k Kind) MarshalJSON() ([]byte, error) {
	name, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("cannot MarshalJSON: invalid kind %d", int(k))
	}
	return json.Marshal(name)
}

// UnmarshalJSON decodes a kind from its name.
func (k *Kind) UnmarshalJSON(data []byte) (err error) {
	var name string
	if err = json.Unmarshal(data, &name); err != nil {
		return err
	}
	for kind, n := range kindNames {
		if n == name {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("cannot UnmarshalJSON: unknown kind %q", name)
}

// ParametersLiteral is the user-specified description of a parameter set.
// The ring degree is 2^LogN and the ciphertext modulus is either given
// as explicit NTT-friendly primes (Q) or as a list of prime sizes (LogQ),
// in which case the primes are generated.
type ParametersLiteral struct {
	LogN int
	Q    []uint64 `json:",omitempty"`
	LogQ []int    `json:",omitempty"`
}

// CopyNew returns a deep copy of the literal.
func (p ParametersLiteral) CopyNew() ParametersLiteral {
	return ParametersLiteral{
		LogN: p.LogN,
		Q:    slices.Clone(p.Q),
		LogQ: slices.Clone(p.LogQ),
	}
}

var (
	// DefaultParametersLiteral is a 128-bit secure parameter set.
	// LogN:14, LogQ:420, about 500 chained additions.
	DefaultParametersLiteral = ParametersLiteral{
		LogN: 14,
		LogQ: []int{60, 60, 60, 60, 60, 60, 60},
	}

	// FastParametersLiteral is a 128-bit secure parameter set on a smaller ring.
	// LogN:13, LogQ:180, about 160 chained additions.
	FastParametersLiteral = ParametersLiteral{
		LogN: 13,
		LogQ: []int{60, 60, 60},
	}
)

// SecurityConfiguration selects the parameters of a key context.
// It is immutable once created.
type SecurityConfiguration struct {
	kind        Kind
	description string
	literal     ParametersLiteral
}

// Default returns the default configuration.
func Default() SecurityConfiguration {
	return SecurityConfiguration{
		kind:        KindDefault,
		description: "Default security parameters",
		literal:     DefaultParametersLiteral.CopyNew(),
	}
}

// Fast returns the configuration trading noise capacity for speed.
func Fast() SecurityConfiguration {
	return SecurityConfiguration{
		kind:        KindFast,
		description: "Faster parameters with a smaller ring and noise capacity",
		literal:     FastParametersLiteral.CopyNew(),
	}
}

// Custom returns a configuration built from user-specified parameters.
// The parameters are only checked when a key context is created.
func Custom(lit ParametersLiteral) SecurityConfiguration {
	return SecurityConfiguration{
		kind:        KindCustom,
		description: "Custom parameters",
		literal:     lit.CopyNew(),
	}
}

// Kind returns the configuration tag.
func (c SecurityConfiguration) Kind() Kind {
	return c.kind
}

// Description returns a human-readable description of the configuration.
func (c SecurityConfiguration) Description() string {
	return c.description
}

// ParametersLiteral returns a copy of the parameters of the configuration.
func (c SecurityConfiguration) ParametersLiteral() ParametersLiteral {
	return c.literal.CopyNew()
}

type securityConfigurationJSON struct {
	Kind        Kind
	Description string             `json:",omitempty"`
	Parameters  *ParametersLiteral `json:",omitempty"`
}

// MarshalJSON encodes the configuration. Parameters are only written for [KindCustom].
func (c SecurityConfiguration) MarshalJSON() ([]byte, error) {
	aux := securityConfigurationJSON{Kind: c.kind}
	if c.kind == KindCustom {
		lit := c.ParametersLiteral()
		aux.Parameters = &lit
		aux.Description = c.description
	}
	return json.Marshal(aux)
}

// UnmarshalJSON decodes a configuration. A custom configuration must carry its parameters.
func (c *SecurityConfiguration) UnmarshalJSON(data []byte) (err error) {
	var aux securityConfigurationJSON
	if err = json.Unmarshal(data, &aux); err != nil {
		return err
	}

	switch aux.Kind {
	case KindDefault:
		*c = Default()
	case KindFast:
		*c = Fast()
	case KindCustom:
		if aux.Parameters == nil {
			return fmt.Errorf("cannot UnmarshalJSON: %w: custom configuration without parameters", ErrConfiguration)
		}
		*c = Custom(*aux.Parameters)
		if aux.Description != "" {
			c.description = aux.Description
		}
	}

	return nil
}
