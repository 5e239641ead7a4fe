// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package serialization holds the request body decoders ("mimers"),
// keyed by content type, and the response encoders ("emitters"),
// keyed by format name.  Default registries with JSON, YAML, XML and
// CBOR support are populated at package initialization.
package serialization

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"mime"
	"net/http"
	"sort"
	"strings"
	"sync"
)

// ErrAlreadyRegistered is returned when registering a content type or
// format that already has an entry.
type ErrAlreadyRegistered struct {
	What string
}

func (e ErrAlreadyRegistered) Error() string {
	return fmt.Sprintf("%s is already registered", e.What)
}

// ErrNotRegistered is returned when unregistering a content type or
// format that has no entry.
type ErrNotRegistered struct {
	What string
}

func (e ErrNotRegistered) Error() string {
	return fmt.Sprintf("%s is not registered", e.What)
}

// MalformedData is returned from Mimer.Translate if a request body
// could not be decoded.
type MalformedData struct {
	ContentType string
}

func (e MalformedData) Error() string {
	return fmt.Sprintf("The '%s' data sent in the request was malformed", e.ContentType)
}

// HTTPStatus returns a fixed 400 Bad Request HTTP status code.
func (e MalformedData) HTTPStatus() int {
	return http.StatusBadRequest
}

// DecodeFunc turns a request body into a generic payload of maps,
// slices and scalars.
type DecodeFunc func(body []byte) (interface{}, error)

// EncodeFunc writes a deconstructed payload to w.
type EncodeFunc func(w io.Writer, v interface{}) error

const formEncoded = "application/x-www-form-urlencoded"

// maxMultipartMemory bounds the in-memory part of multipart bodies.
const maxMultipartMemory = 32 << 20

// Mimer is a registry of request body decoders.
type Mimer struct {
	lock     sync.RWMutex
	registry map[string]DecodeFunc
}

// NewMimer creates an empty decoder registry.
func NewMimer() *Mimer {
	return &Mimer{registry: make(map[string]DecodeFunc)}
}

// Register adds a decoder for one or more content types.  No types
// are registered if any of them is already present.
func (m *Mimer) Register(fn DecodeFunc, ctypes ...string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	for _, ctype := range ctypes {
		if _, present := m.registry[ctype]; present {
			return ErrAlreadyRegistered{What: "The content type " + ctype}
		}
	}
	for _, ctype := range ctypes {
		m.registry[ctype] = fn
	}
	return nil
}

// Unregister removes the decoders for one or more content types.
func (m *Mimer) Unregister(ctypes ...string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	for _, ctype := range ctypes {
		if _, present := m.registry[ctype]; !present {
			return ErrNotRegistered{What: "The content type " + ctype}
		}
	}
	for _, ctype := range ctypes {
		delete(m.registry, ctype)
	}
	return nil
}

// MimerFor returns the decoder for a content type, or nil.  Any
// parameters on ctype, such as a charset, are ignored.
func (m *Mimer) MimerFor(ctype string) DecodeFunc {
	if mediaType, _, err := mime.ParseMediaType(ctype); err == nil {
		ctype = mediaType
	}
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.registry[strings.ToLower(ctype)]
}

// ContentType returns the request's content type, or "" if the body
// is form-encoded or multipart form data.  A missing header counts as
// form-encoded.
func (m *Mimer) ContentType(req *http.Request) string {
	ctype := strings.TrimSpace(req.Header.Get("Content-Type"))
	if ctype == "" {
		ctype = formEncoded
	}
	if strings.HasPrefix(ctype, formEncoded) || strings.HasPrefix(ctype, "multipart") {
		return ""
	}
	return ctype
}

// Translate decodes the body of req.  It returns the request's
// content type as reported by ContentType, and the decoded payload.
// Form data is parsed natively and flattened into a map; other
// registered types go through their decoder; unregistered types
// produce a nil payload.  Decoder failures produce MalformedData.
func (m *Mimer) Translate(req *http.Request) (string, interface{}, error) {
	ctype := m.ContentType(req)
	if ctype == "" {
		var err error
		if strings.HasPrefix(req.Header.Get("Content-Type"), "multipart") {
			err = req.ParseMultipartForm(maxMultipartMemory)
		} else {
			err = req.ParseForm()
		}
		if err != nil {
			return "", nil, MalformedData{ContentType: formEncoded}
		}
		return "", FlattenForm(req.PostForm), nil
	}

	decode := m.MimerFor(ctype)
	if decode == nil {
		return ctype, nil, nil
	}
	var body []byte
	if req.Body != nil {
		var err error
		body, err = ioutil.ReadAll(req.Body)
		if err != nil {
			return ctype, nil, err
		}
		// Leave the body readable for anything downstream
		req.Body = ioutil.NopCloser(bytes.NewReader(body))
	}
	data, err := decode(body)
	if err != nil {
		return ctype, nil, MalformedData{ContentType: ctype}
	}
	return ctype, data, nil
}

// FlattenForm converts form values into a payload map: keys with one
// value map to a string, keys with several map to a list of strings.
func FlattenForm(values map[string][]string) map[string]interface{} {
	data := make(map[string]interface{}, len(values))
	for k, vs := range values {
		switch len(vs) {
		case 0:
		case 1:
			data[k] = vs[0]
		default:
			list := make([]interface{}, len(vs))
			for i, v := range vs {
				list[i] = v
			}
			data[k] = list
		}
	}
	return data
}

// Response is a fully encoded response body.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Write sends the response.  A zero-length body sends no
// Content-Type header.
func (r *Response) Write(w http.ResponseWriter) {
	if len(r.Body) > 0 {
		w.Header().Set("Content-Type", r.ContentType)
	}
	w.WriteHeader(r.Status)
	if len(r.Body) > 0 {
		_, _ = w.Write(r.Body)
	}
}

// DebugContentType replaces the emitter's content type in debug mode
// so browsers display responses inline.
const DebugContentType = "text/plain; charset=utf-8"

type emitterEntry struct {
	encode      EncodeFunc
	contentType string
	mediaTypes  []string
}

// Emitter is a registry of response encoders.
type Emitter struct {
	lock     sync.RWMutex
	registry map[string]emitterEntry
}

// NewEmitter creates an empty encoder registry.
func NewEmitter() *Emitter {
	return &Emitter{registry: make(map[string]emitterEntry)}
}

// Register adds an encoder for a format name with its canonical
// content type.  aliases lists further media types that Accept
// negotiation should map to this format.
func (e *Emitter) Register(format string, fn EncodeFunc, ctype string, aliases ...string) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if _, present := e.registry[format]; present {
		return ErrAlreadyRegistered{What: "The emitter for " + format}
	}
	entry := emitterEntry{encode: fn, contentType: ctype}
	if mediaType, _, err := mime.ParseMediaType(ctype); err == nil {
		entry.mediaTypes = append(entry.mediaTypes, mediaType)
	}
	entry.mediaTypes = append(entry.mediaTypes, aliases...)
	e.registry[format] = entry
	return nil
}

// Unregister removes the encoder for a format.
func (e *Emitter) Unregister(format string) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if _, present := e.registry[format]; !present {
		return ErrNotRegistered{What: "The emitter for " + format}
	}
	delete(e.registry, format)
	return nil
}

// EmitterFor returns the encoder and content type for a format, or
// nil and "" if the format is unknown.
func (e *Emitter) EmitterFor(format string) (EncodeFunc, string) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	entry, present := e.registry[format]
	if !present {
		return nil, ""
	}
	return entry.encode, entry.contentType
}

// Formats returns the registered format names, sorted.
func (e *Emitter) Formats() []string {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return e.sortedFormats()
}

// FormatFor returns the format whose canonical content type or
// aliases include mediaType.
func (e *Emitter) FormatFor(mediaType string) (string, bool) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	for _, format := range e.sortedFormats() {
		for _, mt := range e.registry[format].mediaTypes {
			if mt == mediaType {
				return format, true
			}
		}
	}
	return "", false
}

func (e *Emitter) sortedFormats() []string {
	formats := make([]string, 0, len(e.registry))
	for format := range e.registry {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return formats
}

// Translate deconstructs content and encodes it in the given format.
// An unknown format produces a plain-text 400 response rather than an
// error; errors are reserved for encoder failures.  In debug mode
// the content type is replaced by DebugContentType.
func (e *Emitter) Translate(format string, content interface{}, status int, debug bool) (*Response, error) {
	encode, ctype := e.EmitterFor(format)
	if encode == nil {
		return &Response{
			Status:      http.StatusBadRequest,
			ContentType: DebugContentType,
			Body:        []byte(fmt.Sprintf("Cannot serialize response to '%s' format specified in request", format)),
		}, nil
	}
	if debug {
		ctype = DebugContentType
	}
	var buf bytes.Buffer
	if err := encode(&buf, Deconstruct(content)); err != nil {
		return nil, err
	}
	return &Response{Status: status, ContentType: ctype, Body: buf.Bytes()}, nil
}
