// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient

// This file provides generic REST client code.

import (
	"bytes"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	"github.com/diffeo/go-modelrest/serialization"
	"github.com/jtacoma/uritemplates"
	"github.com/ugorji/go/codec"
)

// resource is any object that has a URL.
type resource struct {
	URL *url.URL

	// Client performs the requests.
	Client *http.Client

	// Token, if set, is sent as the "token" parameter of every
	// request.
	Token string
}

// Template expands a URI template with vars and returns the result
// relative to the resource's URL.
func (r *resource) Template(template string, vars map[string]interface{}) (*url.URL, error) {
	tmpl, err := uritemplates.Parse(template)
	if err != nil {
		return nil, err
	}

	// The template library only understands generic lists
	for k, v := range vars {
		if ss, isStringSlice := v.([]string); isStringSlice {
			tt := make([]interface{}, len(ss))
			for i, s := range ss {
				tt[i] = s
			}
			vars[k] = tt
		}
	}

	expanded, err := tmpl.Expand(vars)
	if err != nil {
		return nil, err
	}
	return r.URL.Parse(expanded)
}

// withQuery adds query parameters, and the token if there is one, to
// a URL.
func (r *resource) withQuery(u *url.URL, query url.Values) *url.URL {
	if len(query) == 0 && r.Token == "" {
		return u
	}
	merged := u.Query()
	for k, vs := range query {
		for _, v := range vs {
			merged.Add(k, v)
		}
	}
	if r.Token != "" {
		merged.Set("token", r.Token)
	}
	out := *u
	out.RawQuery = merged.Encode()
	return &out
}

// Do performs some HTTP action.  If in is non-nil, the request data is
// serialized and sent as the body of, for instance, a POST request.
// If out is non-nil, the response data (if any) is deserialized into
// this object, which must be of pointer type.
func (r *resource) Do(method string, u *url.URL, in, out interface{}) (err error) {
	json := serialization.JSONHandle()

	// Set up the body as serialized JSON, if there is one
	var body io.Reader
	if in != nil {
		reader, writer := io.Pipe()
		encoder := codec.NewEncoder(writer, json)
		finished := make(chan error)
		go func() {
			err := encoder.Encode(in)
			err = firstError(err, writer.Close())
			finished <- err
		}()
		defer func() {
			err = firstError(err, <-finished)
		}()
		body = reader
	}

	req, err := http.NewRequest(method, r.withQuery(u, nil).String(), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", serialization.JSONContentType)
	}
	req.Header.Set("Accept", "application/json")

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}

	// If the response included a body, clean up afterwards
	if resp.Body != nil {
		defer func() {
			err = firstError(err, resp.Body.Close())
		}()
	}

	if err = checkHTTPStatus(resp); err != nil {
		return err
	}

	if resp.Body != nil && out != nil && resp.StatusCode != http.StatusNoContent {
		err = codec.NewDecoder(resp.Body, json).Decode(out)
	}
	return err
}

// ErrorHTTP is a catch-all error for non-successes returned from the
// REST endpoint.
type ErrorHTTP struct {
	// Response holds a pointer to the failing HTTP response.
	Response *http.Response

	// Body holds the contents of the message body, presumed to
	// be text.
	Body string

	// Content is the decoded body, if it was JSON.  Client errors
	// carry a message string; validation errors a map with
	// "message" and "errors".
	Content interface{}
}

func (e ErrorHTTP) Error() string {
	if msg, ok := e.Content.(string); ok {
		return e.Response.Status + ": " + msg
	}
	return e.Response.Status
}

// StatusCode returns the HTTP status of the failed response.
func (e ErrorHTTP) StatusCode() int {
	return e.Response.StatusCode
}

// FieldErrors returns the per-field messages of a validation failure,
// or nil if the response was not one.
func (e ErrorHTTP) FieldErrors() map[string][]string {
	content, ok := e.Content.(map[string]interface{})
	if !ok {
		return nil
	}
	errs, ok := content["errors"].(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string][]string, len(errs))
	for field, messages := range errs {
		list, _ := messages.([]interface{})
		for _, m := range list {
			if s, ok := m.(string); ok {
				out[field] = append(out[field], s)
			}
		}
	}
	return out
}

// checkHTTPStatus examines an HTTP response and returns an error if
// it is not successful.
func checkHTTPStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Always collect the entire body; we will need it as a fallback
	// and can only parse it once.
	var body []byte
	var err error
	if resp.Body != nil {
		body, err = ioutil.ReadAll(resp.Body)
		if err != nil {
			return err
		}
	}

	result := ErrorHTTP{Response: resp, Body: string(body)}
	if len(body) > 0 && strings.Contains(resp.Header.Get("Content-Type"), "json") {
		var content interface{}
		if codec.NewDecoder(bytes.NewReader(body), serialization.JSONHandle()).Decode(&content) == nil {
			result.Content = content
		}
	}
	return result
}

func firstError(e1, e2 error) error {
	if e1 != nil {
		return e1
	}
	return e2
}
