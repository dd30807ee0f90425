package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrMaskType is returned by From for inputs it cannot turn into a Mask.
	ErrMaskType = errors.New("unsupported capability mask type")

	// ErrUnknownCapability is returned for capability names or values
	// outside the known set.
	ErrUnknownCapability = errors.New("unknown capability")

	// ErrDuplicateParser is returned when a tag already has a parser.
	ErrDuplicateParser = errors.New("parser already registered")

	// ErrIncompleteVariants is returned when a parser is missing one of its
	// four variants.
	ErrIncompleteVariants = errors.New("parser variants incomplete")

	// ErrHandlerType is returned when a typed handler's payload type does
	// not match the event type the tag's parser produces.
	ErrHandlerType = errors.New("handler payload type mismatch")

	// ErrNilHandler is returned when registering a nil handler.
	ErrNilHandler = errors.New("nil handler")

	// ErrHandlerNotFound is returned by Unregister for unknown handler ids.
	ErrHandlerNotFound = errors.New("handler not registered")

	// ErrUnknownSession is returned for operations on sessions the router
	// has never seen.
	ErrUnknownSession = errors.New("unknown session")

	// ErrSessionExists is returned when connecting a different session
	// under an id already in use.
	ErrSessionExists = errors.New("session id already connected")

	// ErrRouterClosed is returned after Shutdown.
	ErrRouterClosed = errors.New("router closed")

	// ErrNoFetcher is returned when a guild must be fetched but no Fetcher
	// was configured.
	ErrNoFetcher = errors.New("no guild fetcher configured")

	// ErrNotFound and ErrForbidden are the conditions a Fetcher reports for
	// guilds that do not exist or cannot be read.
	ErrNotFound  = errors.New("guild not found")
	ErrForbidden = errors.New("guild forbidden")
)

// DecodeError reports a payload that does not match its tag's schema.
type DecodeError struct {
	Tag string
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode %s: %v", e.Tag, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// HandlerError reports a user handler that returned an error or panicked.
type HandlerError struct {
	Tag       string
	SessionID string
	Err       error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s (session %s): %v", e.Tag, e.SessionID, e.Err)
}
func (e *HandlerError) Unwrap() error { return e.Err }

// FetchError reports a failed attempt to fetch a missing guild.
type FetchError struct {
	GuildID string
	Err     error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch guild %s: %v", e.GuildID, e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

// decodeErr wraps err as a DecodeError unless it already is one.
func decodeErr(tag string, err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}
	return &DecodeError{Tag: tag, Err: err}
}
