package psbt_sdk

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrMissingPrevoutData indicates an input was added without either
	// form of previous output data.
	ErrMissingPrevoutData ErrorCode = iota

	// ErrInvalidPrevoutData indicates the previous output data given for an
	// input is inconsistent: both forms present, a non-witness transaction
	// whose hash differs from the outpoint, or an output index past the
	// end of that transaction.
	ErrInvalidPrevoutData

	// ErrDuplicateInput indicates an outpoint is already spent by another
	// input of the document.
	ErrDuplicateInput

	// ErrSignaturesExist indicates a structural change was attempted after
	// a signature was recorded.
	ErrSignaturesExist

	// ErrInvalidAddress indicates an output address that does not decode
	// for the document's network.
	ErrInvalidAddress

	// ErrInvalidAmount indicates a negative output amount, or one above the
	// maximum money supply.
	ErrInvalidAmount

	// ErrInputIndex indicates an input index outside the document.
	ErrInputIndex

	// ErrInputAlreadyFinalized indicates a signing attempt on a finalized
	// input.
	ErrInputAlreadyFinalized

	// ErrInvalidScript indicates a redeem or witness script that is missing
	// or does not hash to the value committed in the previous output.
	ErrInvalidScript

	// ErrNoMatchingScript indicates the signing key is not part of the
	// input's spending template.
	ErrNoMatchingScript

	// ErrDerivationMismatch indicates an HD signer derived a key that is not
	// declared by the input's derivation hints.
	ErrDerivationMismatch

	// ErrNoSignatureForKey indicates validation was asked for a key that
	// holds no signature on the input.
	ErrNoSignatureForKey

	// ErrInsufficientSignatures indicates finalization lacks enough valid
	// signatures.
	ErrInsufficientSignatures

	// ErrAlreadyFinalized indicates finalization of a finalized input.
	ErrAlreadyFinalized

	// ErrIncompleteTransaction indicates extraction while some input is not
	// finalized.
	ErrIncompleteTransaction

	// ErrSkeletonMismatch indicates two documents that describe different
	// unsigned transactions were merged.
	ErrSkeletonMismatch

	// ErrConflictingMetadata indicates two documents carry different values
	// for the same input or output field.
	ErrConflictingMetadata

	// ErrConflictingFinalState indicates one document finalized an input
	// that the other still holds partial signatures for.
	ErrConflictingFinalState

	// ErrMalformedDocument indicates a serialized document failed to decode
	// or violates a document invariant.
	ErrMalformedDocument

	// ErrUnsupportedScript indicates a previous output script that the
	// engine cannot sign or finalize.
	ErrUnsupportedScript
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrMissingPrevoutData:     "ErrMissingPrevoutData",
	ErrInvalidPrevoutData:     "ErrInvalidPrevoutData",
	ErrDuplicateInput:         "ErrDuplicateInput",
	ErrSignaturesExist:        "ErrSignaturesExist",
	ErrInvalidAddress:         "ErrInvalidAddress",
	ErrInvalidAmount:          "ErrInvalidAmount",
	ErrInputIndex:             "ErrInputIndex",
	ErrInputAlreadyFinalized:  "ErrInputAlreadyFinalized",
	ErrInvalidScript:          "ErrInvalidScript",
	ErrNoMatchingScript:       "ErrNoMatchingScript",
	ErrDerivationMismatch:     "ErrDerivationMismatch",
	ErrNoSignatureForKey:      "ErrNoSignatureForKey",
	ErrInsufficientSignatures: "ErrInsufficientSignatures",
	ErrAlreadyFinalized:       "ErrAlreadyFinalized",
	ErrIncompleteTransaction:  "ErrIncompleteTransaction",
	ErrSkeletonMismatch:       "ErrSkeletonMismatch",
	ErrConflictingMetadata:    "ErrConflictingMetadata",
	ErrConflictingFinalState:  "ErrConflictingFinalState",
	ErrMalformedDocument:      "ErrMalformedDocument",
	ErrUnsupportedScript:      "ErrUnsupportedScript",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// noIndex marks errors that do not concern a single input or output.
const noIndex = -1

// Error provides a single type for errors that can happen while building,
// signing, merging or finalizing a document.
type Error struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Index       int       // Input index concerned, -1 if none
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	desc := e.Description
	if e.Index >= 0 {
		desc = fmt.Sprintf("input %d: %s", e.Index, desc)
	}
	if e.Err != nil {
		return desc + ": " + e.Err.Error()
	}
	return desc
}

// Unwrap returns the underlying error.
func (e Error) Unwrap() error {
	return e.Err
}

// psbtError creates an Error concerning input index.
func psbtError(c ErrorCode, index int, desc string, err error) Error {
	return Error{ErrorCode: c, Index: index, Description: desc, Err: err}
}

// psbtErrorf creates an Error not tied to an input.
func psbtErrorf(c ErrorCode, format string, args ...interface{}) Error {
	return Error{
		ErrorCode:   c,
		Index:       noIndex,
		Description: fmt.Sprintf(format, args...),
	}
}

// IsError returns whether err is an Error with a matching error code.
func IsError(err error, code ErrorCode) bool {
	var e Error
	return errors.As(err, &e) && e.ErrorCode == code
}
