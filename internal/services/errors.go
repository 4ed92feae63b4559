package services

import (
	"errors"

	"churchbook/internal/core"
	"churchbook/internal/storage"
	"churchbook/internal/transfer"
)

var (
	ErrPINRequired            = errors.New("PIN required")
	ErrPINMismatch            = errors.New("PIN does not match")
	ErrInvalidPIN             = errors.New("PIN must be 4 to 8 digits")
	ErrUnknownExpenseCategory = errors.New("unknown expense category")
	ErrUnknownMember          = errors.New("unknown member")
)

var validationErrors = []error{
	core.ErrInvalidAmount,
	core.ErrInvalidDate,
	core.ErrInvalidType,
	core.ErrInvalidPosition,
	core.ErrEmptyName,
	core.ErrEmptyCategory,
	core.ErrUnknownCategory,
	core.ErrMemberRequired,
	core.ErrDuplicateEntry,
	core.ErrMemoTooLong,
	core.ErrNameTooLong,
	core.ErrCategoryTooLong,
	ErrInvalidPIN,
	ErrUnknownExpenseCategory,
	ErrUnknownMember,
}

// IsValidation reports whether err was caused by rejected input.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err refers to a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound) || errors.Is(err, storage.ErrSnapshotNotFound)
}

// IsPIN reports whether err is a PIN check failure.
func IsPIN(err error) bool {
	return errors.Is(err, ErrPINRequired) || errors.Is(err, ErrPINMismatch)
}

// IsMalformed reports whether err came from an unreadable import document.
func IsMalformed(err error) bool {
	return errors.Is(err, transfer.ErrInvalidDocument)
}
