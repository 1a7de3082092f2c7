package aemet

import (
	"errors"
	"fmt"
)

// ErrMissingAPIKey signals that no AEMET OpenData API key was configured.
// It is raised before any network call is attempted.
var ErrMissingAPIKey = errors.New("aemet: api key is not configured")

// RemoteError describes an upstream failure: a non-success HTTP status, a
// provider-reported error status, or a payload that did not have the
// expected shape. It carries enough context to diagnose the failure without
// a retry.
type RemoteError struct {
	// HTTPStatus is the HTTP status code of the failing response, when the
	// failure happened at the transport level.
	HTTPStatus int

	// Estado and Descripcion are the provider-reported status fields from
	// the metadata envelope, when present.
	Estado      int
	Descripcion string

	// Reason is a short description of what went wrong.
	Reason string
}

func (e *RemoteError) Error() string {
	switch {
	case e.Estado != 0:
		return fmt.Sprintf("aemet: %s (estado=%d, descripcion=%q)", e.Reason, e.Estado, e.Descripcion)
	case e.HTTPStatus != 0:
		return fmt.Sprintf("aemet: %s (http status %d)", e.Reason, e.HTTPStatus)
	default:
		return fmt.Sprintf("aemet: %s", e.Reason)
	}
}
