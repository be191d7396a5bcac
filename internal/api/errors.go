package api

import "errors"

// Sentinel errors for the request taxonomy. Callers match with errors.Is.
var (
	// ErrAuth means no credential could be resolved; the request never left
	// the client.
	ErrAuth = errors.New("authentication failed")

	// ErrNetwork is a transport failure. GET requests fall back to the
	// direct transport before surfacing it; mutating methods surface it
	// immediately to avoid duplicate side effects.
	ErrNetwork = errors.New("network failure")

	// ErrParse marks a response body that could not be decoded. It is
	// normally swallowed inside the client (bodies degrade to an empty
	// object) and only surfaces from the direct transport when the server
	// returns a non-success status with no usable body.
	ErrParse = errors.New("unparseable response")

	// ErrScope means the operation requires a project context that is
	// absent, e.g. deleting an event with no selected project.
	ErrScope = errors.New("project scope required")

	// ErrValidation means a required field was empty; the request was
	// rejected before any network call.
	ErrValidation = errors.New("validation failed")
)
