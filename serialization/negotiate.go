// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package serialization

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"
)

// DefaultFormat is the format used when nothing else is requested.
const DefaultFormat = "json"

// ErrBadAccept is returned from Negotiate if the Accept: header is
// malformed (and no more specific error applies).
var ErrBadAccept = errors.New("Invalid Accept: header")

// ErrNotAcceptable is returned from Negotiate if the Accept: header
// does not mention any media type an emitter can produce.
type ErrNotAcceptable struct{}

func (e ErrNotAcceptable) Error() string {
	return "No acceptable representation for response"
}

// HTTPStatus returns a fixed 406 Not Acceptable HTTP status code.
func (e ErrNotAcceptable) HTTPStatus() int {
	return http.StatusNotAcceptable
}

// Negotiate picks a registered format for an Accept: header value,
// following the path laid out in RFC 7231 section 5.3.  Wildcards
// resolve to DefaultFormat.
func (e *Emitter) Negotiate(accept string) (string, error) {
	if accept == "" {
		accept = "*/*"
	}
	bestFormat := ""
	bestType := ""
	bestQ := 0.0
	for _, mediaRange := range strings.Split(accept, ",") {
		mediaRange = strings.TrimSpace(mediaRange)
		mediaType, params, err := mime.ParseMediaType(mediaRange)
		if err != nil {
			return "", err
		}

		// What is the "q" ("quality") parameter for this type?
		// If it is less than the best known so far, skip it
		q := 1.0
		if qStr, haveQ := params["q"]; haveQ {
			q, err = strconv.ParseFloat(qStr, 64)
			if err != nil {
				return "", err
			}
			if q < 0.0 || q > 1.0 {
				return "", ErrBadAccept
			}
		}
		if q < bestQ {
			continue
		}

		isWildcard := bestType == "*/*" || bestType == "text/*" || bestType == "application/*"
		if mediaType == "*/*" {
			// Doesn't override anything.
			if q > bestQ {
				bestType, bestFormat, bestQ = mediaType, DefaultFormat, q
			}
		} else if mediaType == "text/*" || mediaType == "application/*" {
			// Only overrides "*/*".
			if q > bestQ || bestType == "*/*" {
				bestType, bestFormat, bestQ = mediaType, DefaultFormat, q
			}
		} else if format, known := e.FormatFor(mediaType); known {
			// Overrides any wildcard.  We want the first one
			// at a given q to win.
			if q > bestQ || isWildcard {
				bestType, bestFormat, bestQ = mediaType, format, q
			}
		}
		// Otherwise we don't recognize this type at all, so
		// just drop it.
	}
	if bestQ == 0.0 {
		return "", ErrNotAcceptable{}
	}
	return bestFormat, nil
}

// RequestFormat returns the output format for a request: the "format"
// query parameter if present, otherwise the result of Accept:
// negotiation, falling back to DefaultFormat.  An explicit format is
// returned even if no emitter knows it, so the caller can report it.
func (e *Emitter) RequestFormat(req *http.Request) string {
	if format := req.URL.Query().Get("format"); format != "" {
		return format
	}
	format, err := e.Negotiate(req.Header.Get("Accept"))
	if err != nil {
		return DefaultFormat
	}
	return format
}
