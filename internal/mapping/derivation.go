package mapping

import (
	"errors"
	"fmt"
)

// DerivationKind selects how a synthetic field is composed.
type DerivationKind string

const (
	// DerivationLocation composes a location value from address parts and/or
	// coordinates.
	DerivationLocation DerivationKind = "location"
	// DerivationPoint composes a point from coordinates, or from an address
	// that is geocoded downstream.
	DerivationPoint DerivationKind = "point"
)

// Derivation names the source CSV columns a synthetic field is built from.
// Each component holds a column name as written in the control file; empty
// components are unused.
type Derivation struct {
	Kind      DerivationKind `json:"kind"`
	Address   string         `json:"address,omitempty"`
	City      string         `json:"city,omitempty"`
	State     string         `json:"state,omitempty"`
	Zip       string         `json:"zip,omitempty"`
	Latitude  string         `json:"latitude,omitempty"`
	Longitude string         `json:"longitude,omitempty"`
}

// Components returns the non-empty source columns in a fixed order.
func (d Derivation) Components() []string {
	var out []string
	for _, c := range []string{d.Address, d.City, d.State, d.Zip, d.Latitude, d.Longitude} {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Validate checks that the derivation can produce a value.
func (d Derivation) Validate() error {
	switch d.Kind {
	case DerivationLocation, DerivationPoint:
	default:
		return fmt.Errorf("mapping: unknown derivation kind %q", d.Kind)
	}
	if len(d.Components()) == 0 {
		return errors.New("mapping: derivation names no source columns")
	}
	if (d.Latitude == "") != (d.Longitude == "") {
		return errors.New("mapping: derivation needs both latitude and longitude, or neither")
	}
	return nil
}
