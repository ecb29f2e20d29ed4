// Package services defines the business operations exposed over the HTTP
// surface: staff chat registration and order placement. This file
// centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer;
// translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

var (
	// ErrEmptyOrder is returned when an order contains no items.
	ErrEmptyOrder = errors.New("order has no items")

	// ErrUnknownVenue is returned when an operation references a venue id
	// that no staff chat is registered for.
	ErrUnknownVenue = errors.New("venue has no registered staff chats")

	// ErrDuplicateStaffChat is returned when a (venue, chat) pair is
	// registered twice.
	ErrDuplicateStaffChat = errors.New("staff chat already registered")
)
