package services

import (
	"errors"
	"fmt"
)

var (
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRole        = errors.New("invalid role")
	ErrCardRequired       = errors.New("card required")
	ErrInvalidCode        = errors.New("invalid confirmation code")
	ErrEventHasAttendees  = errors.New("event has attendees")
	ErrInvalidComplaint   = errors.New("invalid complaint")
	ErrInvalidStatus      = errors.New("invalid complaint status")
)

// AttendeesError reports how many attendees block an event deletion.
type AttendeesError struct {
	Count int
}

func (e *AttendeesError) Error() string {
	return fmt.Sprintf("event has %d registered attendees", e.Count)
}

func (e *AttendeesError) Unwrap() error {
	return ErrEventHasAttendees
}
