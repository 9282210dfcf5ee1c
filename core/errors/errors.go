package errors

import stderrors "errors"

// Code is the stable, caller-facing identifier of a failure class.
type Code string

const (
	CodeUnauthorized              Code = "Unauthorized"
	CodeNotFound                  Code = "NotFound"
	CodeAlreadyExists             Code = "AlreadyExists"
	CodeInsufficientStock         Code = "InsufficientStock"
	CodeProductInactive           Code = "ProductInactive"
	CodeInsufficientPayment       Code = "InsufficientPayment"
	CodeInsufficientFunds         Code = "InsufficientFunds"
	CodeInsufficientEscrowBalance Code = "InsufficientEscrowBalance"
	CodeInsufficientPoints        Code = "InsufficientPoints"
	CodeMaxAdminsReached          Code = "MaxAdminsReached"
	CodeCannotRemoveOwner         Code = "CannotRemoveOwner"
	CodeInvalidInput              Code = "InvalidInput"
	CodeStoreInactive             Code = "StoreInactive"
	CodeModulePaused              Code = "ModulePaused"
	CodeArithmeticOverflow        Code = "ArithmeticOverflow"
	CodeInternal                  Code = "Internal"
)

var (
	ErrUnauthorized              = stderrors.New("unauthorized")
	ErrNotFound                  = stderrors.New("not found")
	ErrAlreadyExists             = stderrors.New("already exists")
	ErrInsufficientStock         = stderrors.New("insufficient stock")
	ErrProductInactive           = stderrors.New("product inactive")
	ErrInsufficientPayment       = stderrors.New("insufficient payment")
	ErrInsufficientFunds         = stderrors.New("insufficient funds")
	ErrInsufficientEscrowBalance = stderrors.New("insufficient escrow balance")
	ErrInsufficientPoints        = stderrors.New("insufficient points")
	ErrMaxAdminsReached          = stderrors.New("max admins reached")
	ErrCannotRemoveOwner         = stderrors.New("cannot remove owner")
	ErrInvalidInput              = stderrors.New("invalid input")
	ErrStoreInactive             = stderrors.New("store inactive")
	ErrModulePaused              = stderrors.New("module paused")
	ErrArithmeticOverflow        = stderrors.New("arithmetic overflow")
)

var classified = []struct {
	err  error
	code Code
}{
	{ErrUnauthorized, CodeUnauthorized},
	{ErrNotFound, CodeNotFound},
	{ErrAlreadyExists, CodeAlreadyExists},
	{ErrInsufficientStock, CodeInsufficientStock},
	{ErrProductInactive, CodeProductInactive},
	{ErrInsufficientPayment, CodeInsufficientPayment},
	{ErrInsufficientFunds, CodeInsufficientFunds},
	{ErrInsufficientEscrowBalance, CodeInsufficientEscrowBalance},
	{ErrInsufficientPoints, CodeInsufficientPoints},
	{ErrMaxAdminsReached, CodeMaxAdminsReached},
	{ErrCannotRemoveOwner, CodeCannotRemoveOwner},
	{ErrInvalidInput, CodeInvalidInput},
	{ErrStoreInactive, CodeStoreInactive},
	{ErrModulePaused, CodeModulePaused},
	{ErrArithmeticOverflow, CodeArithmeticOverflow},
}

// CodeOf classifies err against the taxonomy. Nil yields the empty code and
// anything unrecognised is reported as Internal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	for _, entry := range classified {
		if stderrors.Is(err, entry.err) {
			return entry.code
		}
	}
	return CodeInternal
}

// Is reports whether err belongs to the class identified by code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
