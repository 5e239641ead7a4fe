// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package serialization

import (
	"bytes"
	"errors"
	"io"
	"reflect"

	"github.com/ugorji/go/codec"
	"gopkg.in/yaml.v2"
)

// Canonical content types of the built-in emitters.
const (
	JSONContentType = "application/json; charset=utf-8"
	YAMLContentType = "text/x-yaml; charset=utf-8"
	XMLContentType  = "text/xml; charset=utf-8"
	CBORContentType = "application/cbor"
)

// YAMLMediaTypes lists the content types accepted for YAML bodies;
// YAML has no official media type.
var YAMLMediaTypes = []string{"text/yaml", "text/x-yaml", "application/yaml", "application/x-yaml"}

var errNotMapping = errors.New("YAML document is not a mapping")

// DefaultMimer and DefaultEmitter are the process-wide registries.
var (
	DefaultMimer   = NewMimer()
	DefaultEmitter = NewEmitter()
)

func init() {
	if err := RegisterDefaults(DefaultMimer, DefaultEmitter); err != nil {
		panic(err)
	}
}

var mapType = reflect.TypeOf(map[string]interface{}(nil))

// JSONHandle returns the codec configuration used for JSON bodies:
// objects decode to map[string]interface{}, integers decode signed,
// and output is indented by four spaces with sorted keys.
func JSONHandle() *codec.JsonHandle {
	h := &codec.JsonHandle{}
	h.MapType = mapType
	h.SignedInteger = true
	h.Canonical = true
	h.Indent = 4
	return h
}

// CBORHandle returns the codec configuration used for CBOR bodies.
func CBORHandle() *codec.CborHandle {
	h := &codec.CborHandle{}
	h.MapType = mapType
	h.SignedInteger = true
	h.Canonical = true
	return h
}

// DecodeJSON decodes a JSON body.
func DecodeJSON(body []byte) (interface{}, error) {
	var v interface{}
	err := codec.NewDecoderBytes(body, JSONHandle()).Decode(&v)
	return v, err
}

// EncodeJSON writes v as indented JSON.
func EncodeJSON(w io.Writer, v interface{}) error {
	return codec.NewEncoder(w, JSONHandle()).Encode(v)
}

// DecodeCBOR decodes a CBOR body.
func DecodeCBOR(body []byte) (interface{}, error) {
	var v interface{}
	err := codec.NewDecoderBytes(body, CBORHandle()).Decode(&v)
	return v, err
}

// EncodeCBOR writes v as CBOR.
func EncodeCBOR(w io.Writer, v interface{}) error {
	return codec.NewEncoder(w, CBORHandle()).Encode(v)
}

// DecodeYAML decodes a YAML body, which must be a mapping.
func DecodeYAML(body []byte) (interface{}, error) {
	var v interface{}
	if err := yaml.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	m, ok := Deconstruct(v).(map[string]interface{})
	if !ok {
		return nil, errNotMapping
	}
	return m, nil
}

// EncodeYAML writes v as a YAML document.
func EncodeYAML(w io.Writer, v interface{}) error {
	b, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// RegisterDefaults adds the JSON, YAML, XML and CBOR handlers to a
// pair of registries.
func RegisterDefaults(m *Mimer, e *Emitter) error {
	if err := m.Register(DecodeJSON, "application/json"); err != nil {
		return err
	}
	if err := m.Register(DecodeYAML, YAMLMediaTypes...); err != nil {
		return err
	}
	if err := m.Register(DecodeCBOR, "application/cbor"); err != nil {
		return err
	}
	if err := e.Register("json", EncodeJSON, JSONContentType, "text/json"); err != nil {
		return err
	}
	if err := e.Register("yaml", EncodeYAML, YAMLContentType, YAMLMediaTypes...); err != nil {
		return err
	}
	if err := e.Register("xml", EncodeXML, XMLContentType, "application/xml"); err != nil {
		return err
	}
	return e.Register("cbor", EncodeCBOR, CBORContentType)
}

// CompactJSON deconstructs v and encodes it as single-line JSON with
// sorted keys, for embedding in generated source.
func CompactJSON(v interface{}) (string, error) {
	h := JSONHandle()
	h.Indent = 0
	var out []byte
	err := codec.NewEncoderBytes(&out, h).Encode(Deconstruct(v))
	return string(bytes.TrimSpace(out)), err
}
