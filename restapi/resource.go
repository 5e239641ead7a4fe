// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restapi

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/diffeo/go-modelrest/auth"
	"github.com/diffeo/go-modelrest/model"
	"github.com/diffeo/go-modelrest/serialization"
	"github.com/sirupsen/logrus"
)

// A HandlerFunc runs one resource operation.  Its value is encoded in
// the requested format with status 200, unless it is an Emittable.  A
// nil value produces an empty 204 response.  Errors are reported with
// the status from their HTTPStatus method, or 500.
type HandlerFunc func(r *Request) (interface{}, error)

// Emittable is a handler result with an explicit status.
type Emittable struct {
	Content interface{}
	Status  int
}

// Route maps HTTP methods on one URL path to operation names.  Path is
// relative to the resource's prefix.
type Route struct {
	Path string
	Ops  map[string]string
}

// BaseResource is the reusable core of every resource: a name, a URL
// prefix, routes mapping methods to operations, and handler functions
// for the operations.
type BaseResource struct {
	// Name names the resource in logs and metrics.
	Name string

	// Prefix is the URL path of the resource, relative to the
	// site, ending with "/".
	Prefix string

	// Routes are the URL paths the resource serves.
	Routes []Route

	// Handlers are the operations, by name.
	Handlers map[string]HandlerFunc

	// AllowedOperations, if non-empty, lists the only operations
	// the resource serves.
	AllowedOperations []string

	// Anonymous skips authentication entirely.
	Anonymous bool

	// Model is the model the resource serves, if any.
	Model *model.Model

	// Authenticator checks every request, unless Anonymous is set.
	// The site fills it in at registration time if it is nil.
	Authenticator auth.Authenticator

	// Site is the site the resource is registered with.
	Site *Site
}

// Base returns the resource itself.
func (b *BaseResource) Base() *BaseResource {
	return b
}

// Handle sets the handler function for an operation.
func (b *BaseResource) Handle(op string, fn HandlerFunc) {
	if b.Handlers == nil {
		b.Handlers = make(map[string]HandlerFunc)
	}
	b.Handlers[op] = fn
}

// Allows reports whether the allow-list admits an operation.
func (b *BaseResource) Allows(op string) bool {
	if len(b.AllowedOperations) == 0 {
		return true
	}
	for _, allowed := range b.AllowedOperations {
		if allowed == op {
			return true
		}
	}
	return false
}

// Ops filters a method-to-operation map down to the operations that
// are allowed and have a handler.  Method names are upper-cased.
func (b *BaseResource) Ops(ops map[string]string) map[string]string {
	out := make(map[string]string, len(ops))
	for method, op := range ops {
		if _, bound := b.Handlers[op]; bound && b.Allows(op) {
			out[strings.ToUpper(method)] = op
		}
	}
	return out
}

// Mapper returns the HTTP handler for one route of the resource.
func (b *BaseResource) Mapper(route Route) http.Handler {
	return &mapper{resource: b, ops: b.Ops(route.Ops)}
}

// mapper dispatches requests on one URL path to the resource's
// handler functions.
type mapper struct {
	resource *BaseResource
	ops      map[string]string
}

func (m *mapper) allowed() string {
	methods := make([]string, 0, len(m.ops))
	for method := range m.ops {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}

func (m *mapper) ServeHTTP(resp http.ResponseWriter, req *http.Request) {
	var (
		b       = m.resource
		site    = b.Site
		op      string
		status  int
		out     interface{}
		err     error
		started = site.Clock.Now()
	)

	defer func() {
		observeRequest(b.Name, op, status, site.Clock.Now().Sub(started))
	}()

	// Recover from panics by sending an HTTP error.
	defer func() {
		if recovered := recover(); recovered != nil {
			response := ErrorResponse{}
			response.FromPanic(recovered)
			logrus.WithFields(logrus.Fields{
				"resource":  b.Name,
				"operation": op,
				"error":     response.Message,
			}).Error("panic in resource handler")
			status = http.StatusInternalServerError
			m.emit(resp, req, serialization.DefaultFormat, response, status)
		}
	}()

	if len(m.ops) == 0 {
		// There are no allowed operations for this URL.
		status = http.StatusNotFound
		resp.WriteHeader(status)
		return
	}

	method := req.Method
	if method == http.MethodHead {
		method = http.MethodGet
	}
	op, found := m.ops[method]
	if !found {
		status = http.StatusMethodNotAllowed
		resp.Header().Set("Allow", m.allowed())
		resp.WriteHeader(status)
		return
	}

	r := &Request{
		Request:   req,
		Site:      site,
		Resource:  b,
		Operation: op,
		Query:     req.URL.Query(),
		Format:    site.Emitter.RequestFormat(req),
	}

	// An unknown format is refused before the handler can change
	// anything.
	if encode, _ := site.Emitter.EmitterFor(r.Format); encode == nil {
		status = m.emit(resp, req, r.Format, nil, http.StatusBadRequest)
		return
	}

	if !b.Anonymous && b.Authenticator != nil {
		user, ok := b.Authenticator.IsAuthenticated(req, op)
		if !ok {
			status = http.StatusForbidden
			resp.WriteHeader(status)
			return
		}
		r.User = user
	}
	if r.User == nil {
		r.User = auth.AnonymousUser{}
	}

	if method == http.MethodPut || method == http.MethodPost {
		r.ContentType, r.Data, err = site.Mimer.Translate(req)
		if err != nil {
			var malformed serialization.MalformedData
			if !errors.As(err, &malformed) {
				err = ErrBadRequest{Err: err}
			}
		}
	}

	if err == nil {
		out, err = b.Handlers[op](r)
	}

	if err != nil {
		status = errorStatus(err)
		out = errorContent(err, status)
		if status >= http.StatusInternalServerError {
			logrus.WithFields(logrus.Fields{
				"resource":  b.Name,
				"operation": op,
			}).WithError(err).Error("resource handler failed")
		}
	} else if out == nil {
		status = http.StatusNoContent
	} else if e, isEmittable := out.(Emittable); isEmittable {
		status = e.Status
		if status == 0 {
			status = http.StatusOK
		}
		out = e.Content
	} else {
		status = http.StatusOK
	}

	if status == http.StatusNoContent {
		resp.WriteHeader(status)
		return
	}
	status = m.emit(resp, req, r.Format, out, status)
}

// emit encodes content and writes the response, returning the status
// actually sent.
func (m *mapper) emit(resp http.ResponseWriter, req *http.Request, format string, content interface{}, status int) int {
	site := m.resource.Site
	response, err := site.Emitter.Translate(format, content, status, site.Settings.Debug)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"resource": m.resource.Name,
			"format":   format,
		}).WithError(err).Error("could not encode response")
		response = &serialization.Response{
			Status:      http.StatusInternalServerError,
			ContentType: serialization.DebugContentType,
			Body:        []byte(err.Error()),
		}
	}
	if req.Method == http.MethodHead {
		response.Body = nil
	}
	response.Write(resp)
	return response.Status
}
