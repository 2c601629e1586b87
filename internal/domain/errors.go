package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrNotInitialized = errors.New("orderbook not initialized")
	ErrUnknownVenue   = errors.New("unknown venue id")
	ErrNoVenues       = errors.New("no usable venues configured")
	ErrWSDisconnect   = errors.New("websocket disconnected")
	ErrSequenceGap    = errors.New("sequence gap detected")
)
