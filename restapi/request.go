// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restapi

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/diffeo/go-modelrest/auth"
)

// Request holds everything a handler function gets to see about one
// HTTP request.
type Request struct {
	*http.Request

	// Site is the site the resource is registered with.
	Site *Site

	// Resource is the resource handling the request.
	Resource *BaseResource

	// Operation is the name of the operation being run.
	Operation string

	// User is the authenticated user, never nil.
	User auth.User

	// Query holds the URL query parameters.
	Query url.Values

	// ContentType is the body's content type, or "" for form data.
	ContentType string

	// Data is the decoded body of a PUT or POST request.
	Data interface{}

	// Format is the response format name.
	Format string
}

// BoolParam looks at the query parameters for a parameter named name.
// If it has a normally-truthy value (1, on, false, no, ...) then return
// that value.  Otherwise (empty string, foo, ...) return def.
func (r *Request) BoolParam(name string, def bool) bool {
	switch strings.ToLower(r.Query.Get(name)) {
	case "0", "f", "n", "false", "off", "no":
		return false
	case "1", "t", "y", "true", "on", "yes":
		return true
	default:
		return def
	}
}

// IntParam returns the integer value of a query parameter, or def if
// it is absent.  Values that are not integers are a bad request.
func (r *Request) IntParam(name string, def int) (int, error) {
	s := r.Query.Get(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, BadRequest("The %s parameter must be an integer, not %q", name, s)
	}
	return n, nil
}

// PKs returns every "pk" query parameter.
func (r *Request) PKs() []string {
	return r.Query["pk"]
}

// DataMap returns the request body as a mapping, or ErrMalformed if it
// is anything else.
func (r *Request) DataMap() (map[string]interface{}, error) {
	switch data := r.Data.(type) {
	case map[string]interface{}:
		return data, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(data))
		for k, v := range data {
			key, ok := k.(string)
			if !ok {
				return nil, ErrMalformed
			}
			out[key] = v
		}
		return out, nil
	}
	return nil, ErrMalformed
}
