// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package reverts

import (
	"errors"
	"fmt"
)

// Code classifies a revert for callers that need to distinguish
// validation, authorization, precondition, arithmetic and transfer failures.
type Code string

const (
	CodeValidation    Code = "validation"
	CodeAuthorization Code = "authorization"
	CodePrecondition  Code = "precondition"
	CodeArithmetic    Code = "arithmetic"
	CodeTransfer      Code = "transfer"
)

// ErrRevert is an error that rejects an operation without any state change.
type ErrRevert struct {
	code    Code
	message string
}

func New(code Code, message string) *ErrRevert {
	return &ErrRevert{
		code:    code,
		message: message,
	}
}

func (e *ErrRevert) Error() string {
	return e.message
}

// Code returns the taxonomy class of the revert.
func (e *ErrRevert) Code() Code {
	return e.code
}

// IsRevert reports whether err carries an ErrRevert.
func IsRevert(err any) bool {
	if err == nil {
		return false
	}
	e, ok := err.(error)
	if !ok {
		return false
	}
	var ve *ErrRevert
	return errors.As(e, &ve)
}

// CodeOf extracts the revert code of err, if any.
func CodeOf(err error) (Code, bool) {
	var ve *ErrRevert
	if errors.As(err, &ve) {
		return ve.code, true
	}
	return "", false
}

// Validation errors - rejected before any state change.
func ZeroAmount() *ErrRevert     { return New(CodeValidation, "amount must be positive") }
func InvalidRate() *ErrRevert    { return New(CodeValidation, "rate must be positive") }
func PoolNotFound() *ErrRevert   { return New(CodeValidation, "pool not found") }
func DuplicatePool() *ErrRevert  { return New(CodeValidation, "pool already registered") }
func InvalidAddress() *ErrRevert { return New(CodeValidation, "invalid address") }
func NegativeAmount() *ErrRevert { return New(CodeValidation, "amount must not be negative") }

// Authorization errors.
func Unauthorized() *ErrRevert { return New(CodeAuthorization, "caller is not admin") }

// Precondition errors.
func PoolNotEmpty() *ErrRevert { return New(CodePrecondition, "pool has staked principal") }
func LockNotMatured() *ErrRevert {
	return New(CodePrecondition, "staking duration has not elapsed")
}

func InsufficientStake() *ErrRevert {
	return New(CodePrecondition, "insufficient staked balance")
}

func MigrationInProgress() *ErrRevert {
	return New(CodePrecondition, "pool migration in progress")
}

func NoMigration() *ErrRevert { return New(CodePrecondition, "no migration in progress") }

func ReentrantCall() *ErrRevert {
	return New(CodePrecondition, "reentrant call while a ledger transfer is in flight")
}

// Arithmetic errors - checked explicitly, never wrapped silently.
func ArithmeticOverflow() *ErrRevert {
	return New(CodeArithmetic, "value exceeds 256 bits")
}

func Underflow() *ErrRevert {
	return New(CodeArithmetic, "decrement below zero")
}

// Transfer errors - the ledger call failed, the whole operation aborts.
func TransferFailed(cause error) *ErrRevert {
	return New(CodeTransfer, fmt.Sprintf("ledger transfer failed: %v", cause))
}

func InsufficientBalance() *ErrRevert {
	return New(CodeTransfer, "insufficient ledger balance")
}
