package domain

import (
	"errors"
	"strings"
)

// Status is the canonical delivery status.
type Status string

const (
	// StatusPending means the delivery has not been attempted yet.
	StatusPending Status = "pending"
	// StatusArrived means the driver has arrived at the customer.
	StatusArrived Status = "arrived"
	// StatusDelivered means the cylinders were handed over. Terminal.
	StatusDelivered Status = "delivered"
	// StatusFailed means the attempt failed. Terminal.
	StatusFailed Status = "failed"
)

var ErrInvalidStatus = errors.New("invalid delivery status")

// ParseStatus normalizes (lowercases+trims) and validates a status string.
func ParseStatus(in string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether status is one of the allowed status constants.
func (status Status) Valid() bool {
	switch status {
	case StatusPending, StatusArrived, StatusDelivered, StatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Status.
func (status Status) String() string {
	return string(status)
}

// CanTransitionTo specifies if the status can transition to the next status.
// Transitions are forward-only; a direct pending->delivered or
// pending->failed is allowed since drivers may record a terminal outcome
// without a separate arrival event.
func (status Status) CanTransitionTo(next Status) bool {
	switch status {
	case StatusPending:
		return next == StatusArrived || next == StatusDelivered || next == StatusFailed

	case StatusArrived:
		return next == StatusDelivered || next == StatusFailed

	case StatusDelivered, StatusFailed:
		return false

	default:
		return false
	}
}

// Terminal indicates if the status accepts no further transitions via sync.
func (status Status) Terminal() bool {
	return status == StatusDelivered || status == StatusFailed
}

// IssueType classifies why a delivery attempt failed.
type IssueType string

const (
	IssueAbsent       IssueType = "absent"
	IssueRejected     IssueType = "rejected"
	IssueWrongAddress IssueType = "wrong_address"
	IssueAccessDenied IssueType = "access_denied"
	IssueOther        IssueType = "other"
)

var ErrInvalidIssueType = errors.New("invalid issue type")

// ParseIssueType normalizes and validates an issue type string.
func ParseIssueType(in string) (IssueType, error) {
	issue := IssueType(strings.ToLower(strings.TrimSpace(in)))
	if issue.Valid() {
		return issue, nil
	}
	return "", ErrInvalidIssueType
}

// Valid reports whether the issue type is one of the allowed constants.
func (issue IssueType) Valid() bool {
	switch issue {
	case IssueAbsent, IssueRejected, IssueWrongAddress, IssueAccessDenied, IssueOther:
		return true
	default:
		return false
	}
}
