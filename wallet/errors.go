package wallet

import (
	"errors"
	"fmt"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrMeltNotFound        = errors.New("melt not found")
	ErrUnsupportedToken    = errors.New("unsupported token prefix")
	ErrMintMismatch        = errors.New("token mint url does not match wallet mint")
	ErrEmptyToken          = errors.New("token carries no proofs")
)

// TransactionNotFoundError names the transaction identifier that could not
// be found in the log.
type TransactionNotFoundError struct{ Id string }

func (e *TransactionNotFoundError) Error() string {
	return fmt.Sprintf("transaction not found: %s", e.Id)
}
func (e *TransactionNotFoundError) Unwrap() error { return ErrTransactionNotFound }

// UnsupportedTokenError names the prefix a received token carried that this
// wallet does not recognize.
type UnsupportedTokenError struct{ Prefix string }

func (e *UnsupportedTokenError) Error() string {
	return fmt.Sprintf("unsupported token prefix: %s", e.Prefix)
}
func (e *UnsupportedTokenError) Unwrap() error { return ErrUnsupportedToken }

// MintMismatchError names the token's mint and the wallet's configured mint
// when receive_token rejects a token from elsewhere.
type MintMismatchError struct{ TokenMint, WalletMint string }

func (e *MintMismatchError) Error() string {
	return fmt.Sprintf("token mint %q does not match wallet mint %q", e.TokenMint, e.WalletMint)
}
func (e *MintMismatchError) Unwrap() error { return ErrMintMismatch }
