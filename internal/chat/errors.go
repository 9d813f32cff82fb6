package chat

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated      = errors.New("authentication required")
	ErrAlreadyAuthenticated = errors.New("session already authenticated")
	ErrMalformedID          = errors.New("malformed project id")
	ErrAccessDenied         = errors.New("access denied")
	ErrValidation           = errors.New("validation failed")
	ErrStore                = errors.New("message store failure")
	ErrEmptyMessage         = fmt.Errorf("%w: message content is required", ErrValidation)
	ErrMessageTooLong       = fmt.Errorf("%w: message is too long", ErrValidation)
	ErrInvalidContent       = fmt.Errorf("%w: message contains invalid characters", ErrValidation)
)

// Reasons sent to the client in channelError / messageError events. A
// missing project and a denied user get the same text.
const (
	reasonAuthRequired   = "Authentication required"
	reasonInvalidID      = "Invalid Project ID format"
	reasonChannelAccess  = "You do not have access to this project channel"
	reasonJoinFailed     = "Failed to join channel"
	reasonContentMissing = "Message content is required"
	reasonContentTooLong = "Message is too long"
	reasonContentInvalid = "Message contains invalid characters"
	reasonSendAccess     = "You do not have access to send messages in this project channel"
	reasonSendFailed     = "Failed to send message"
)
