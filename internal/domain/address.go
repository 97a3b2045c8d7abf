package domain

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// PubkeyLength is the byte length of a Solana public key.
const PubkeyLength = 32

// ErrInvalidAddress is returned when an address is not a base58 public key.
var ErrInvalidAddress = errors.New("invalid token address")

// ValidateAddress checks that address decodes to a 32-byte public key.
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	raw, err := base58.Decode(address)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != PubkeyLength {
		return fmt.Errorf("%w: decoded %d bytes, want %d", ErrInvalidAddress, len(raw), PubkeyLength)
	}
	return nil
}
