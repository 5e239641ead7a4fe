// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package serialization

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/diffeo/go-modelrest/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistries(t *testing.T) (*Mimer, *Emitter) {
	m, e := NewMimer(), NewEmitter()
	require.NoError(t, RegisterDefaults(m, e))
	return m, e
}

func TestRegistryConflicts(t *testing.T) {
	m, e := newRegistries(t)

	err := m.Register(DecodeJSON, "application/json")
	assert.IsType(t, ErrAlreadyRegistered{}, err)
	err = m.Unregister("application/x-nothing")
	assert.IsType(t, ErrNotRegistered{}, err)
	assert.NoError(t, m.Unregister("application/json"))
	assert.Nil(t, m.MimerFor("application/json"))

	err = e.Register("json", EncodeJSON, JSONContentType)
	assert.IsType(t, ErrAlreadyRegistered{}, err)
	assert.IsType(t, ErrNotRegistered{}, e.Unregister("toml"))
	assert.Equal(t, []string{"cbor", "json", "xml", "yaml"}, e.Formats())
}

func TestTranslateJSON(t *testing.T) {
	m, _ := newRegistries(t)
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"question": "Why?", "votes": 3}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctype, data, err := m.Translate(req)
	require.NoError(t, err)
	assert.Equal(t, "application/json; charset=utf-8", ctype)
	assert.Equal(t, map[string]interface{}{"question": "Why?", "votes": int64(3)}, data)
}

func TestTranslateMalformed(t *testing.T) {
	m, _ := newRegistries(t)
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"question": `))
	req.Header.Set("Content-Type", "application/json")
	_, _, err := m.Translate(req)
	assert.Equal(t, MalformedData{ContentType: "application/json"}, err)
	assert.EqualError(t, err, "The 'application/json' data sent in the request was malformed")

	req = httptest.NewRequest("POST", "/", strings.NewReader("- a\n- b\n"))
	req.Header.Set("Content-Type", "text/yaml")
	_, _, err = m.Translate(req)
	assert.IsType(t, MalformedData{}, err)
}

func TestTranslateYAML(t *testing.T) {
	m, _ := newRegistries(t)
	req := httptest.NewRequest("PUT", "/", strings.NewReader("question: Why?\nslug: why\n"))
	req.Header.Set("Content-Type", "application/x-yaml")
	_, data, err := m.Translate(req)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"question": "Why?", "slug": "why"}, data)
}

func TestTranslateForm(t *testing.T) {
	m, _ := newRegistries(t)
	form := url.Values{"question": {"Why?"}, "tags": {"a", "b"}}
	req := httptest.NewRequest("PUT", "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	ctype, data, err := m.Translate(req)
	require.NoError(t, err)
	assert.Equal(t, "", ctype)
	assert.Equal(t, map[string]interface{}{
		"question": "Why?",
		"tags":     []interface{}{"a", "b"},
	}, data)
}

func TestTranslateUnknownType(t *testing.T) {
	m, _ := newRegistries(t)
	req := httptest.NewRequest("POST", "/", strings.NewReader("opaque"))
	req.Header.Set("Content-Type", "application/octet-stream")
	ctype, data, err := m.Translate(req)
	assert.NoError(t, err)
	assert.Equal(t, "application/octet-stream", ctype)
	assert.Nil(t, data)
}

func TestEmitJSON(t *testing.T) {
	_, e := newRegistries(t)
	resp, err := e.Translate("json", map[string]interface{}{"b": 1, "a": "x"}, http.StatusOK, false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, JSONContentType, resp.ContentType)
	assert.Contains(t, string(resp.Body), "\n    \"a\":")
	decoded, err := DecodeJSON(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"a": "x", "b": int64(1)}, decoded)

	resp, err = e.Translate("json", []int{1}, http.StatusOK, true)
	require.NoError(t, err)
	assert.Equal(t, DebugContentType, resp.ContentType)
}

func TestEmitUnknownFormat(t *testing.T) {
	_, e := newRegistries(t)
	resp, err := e.Translate("toml", "x", http.StatusOK, false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, "Cannot serialize response to 'toml' format specified in request", string(resp.Body))
}

func TestEmitXML(t *testing.T) {
	_, e := newRegistries(t)
	payload := []interface{}{
		map[string]interface{}{"pk": int64(1), "model": "polls.poll"},
	}
	resp, err := e.Translate("xml", payload, http.StatusOK, false)
	require.NoError(t, err)
	assert.Equal(t, XMLContentType, resp.ContentType)
	assert.Equal(t,
		`<?xml version="1.0" encoding="UTF-8"?>`+"\n"+
			`<response><resource><model>polls.poll</model><pk>1</pk></resource></response>`,
		string(resp.Body))
}

func TestEmitYAMLAndCBOR(t *testing.T) {
	_, e := newRegistries(t)
	resp, err := e.Translate("yaml", map[string]interface{}{"count": 2}, http.StatusOK, false)
	require.NoError(t, err)
	assert.Equal(t, "count: 2\n", string(resp.Body))

	resp, err = e.Translate("cbor", map[string]interface{}{"count": 2}, http.StatusOK, false)
	require.NoError(t, err)
	decoded, err := DecodeCBOR(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"count": int64(2)}, decoded)
}

func TestNegotiate(t *testing.T) {
	_, e := newRegistries(t)
	for accept, format := range map[string]string{
		"":                                   "json",
		"*/*":                                "json",
		"text/xml":                           "xml",
		"text/html, application/yaml;q=0.9":  "yaml",
		"text/html,application/xhtml+xml,*/*;q=0.8": "json",
		"application/cbor, application/json": "cbor",
		"application/json;q=0.5, text/xml":   "xml",
	} {
		got, err := e.Negotiate(accept)
		if assert.NoError(t, err, accept) {
			assert.Equal(t, format, got, accept)
		}
	}

	_, err := e.Negotiate("text/html")
	assert.Equal(t, ErrNotAcceptable{}, err)
	_, err = e.Negotiate("text/xml;q=2")
	assert.Equal(t, ErrBadAccept, err)

	req := httptest.NewRequest("GET", "/?format=yaml", nil)
	req.Header.Set("Accept", "text/xml")
	assert.Equal(t, "yaml", e.RequestFormat(req))
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept", "image/png")
	assert.Equal(t, "json", e.RequestFormat(req))
}

func TestSerializeObject(t *testing.T) {
	poll := &model.Model{App: "polls", Name: "Poll", Fields: []*model.Field{
		{Name: "id", Class: "AutoField", PrimaryKey: true},
		{Name: "question", Class: "CharField"},
		{Name: "pub_date", Class: "DateField"},
	}}
	obj := &model.Object{Model: poll, PK: int64(1), Values: map[string]interface{}{
		"question": "What color are your socks?",
		"pub_date": time.Date(2009, 6, 1, 0, 0, 0, 0, time.UTC),
	}}
	assert.Equal(t, map[string]interface{}{
		"pk":    int64(1),
		"model": "polls.poll",
		"fields": map[string]interface{}{
			"question": "What color are your socks?",
			"pub_date": "2009-06-01",
		},
	}, SerializeObject(obj, nil))

	assert.Equal(t, map[string]interface{}{
		"question": "What color are your socks?",
	}, SerializeObject(obj, []string{"question"})["fields"])

	assert.Equal(t, []interface{}{}, SerializeObjects(nil, nil))
}

func TestDeconstruct(t *testing.T) {
	type doc struct {
		Message string `mapstructure:"message"`
		Count   int    `mapstructure:"count"`
	}
	assert.Equal(t, map[string]interface{}{"message": "hi", "count": 3},
		Deconstruct(doc{Message: "hi", Count: 3}))
	assert.Equal(t, "2009-06-01 12:00:00",
		Deconstruct(time.Date(2009, 6, 1, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, []interface{}{"a", "b"}, Deconstruct([]string{"a", "b"}))
	assert.Equal(t, map[string]interface{}{"1": "x"},
		Deconstruct(map[interface{}]interface{}{1: []byte("x")}))
}
