// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restclient is a client for the model resources a restapi
// site serves.
//
//     client, err := restclient.New("http://localhost:8000/api/")
//     polls := client.Model("models/polls/poll/")
//     count, err := polls.Length(url.Values{"question__icontains": {"socks"}})
//
// Responses are always requested as JSON.
package restclient

import (
	"net/http"
	"net/url"
	"strings"
)

// Client is the root of a site.
type Client struct {
	resource
}

// New creates a client for the site rooted at baseURL.
func New(baseURL string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return &Client{resource: resource{URL: u}}, nil
}

// WithToken returns a copy of the client that authenticates with an
// API token.
func (c *Client) WithToken(token string) *Client {
	out := *c
	out.Token = token
	return &out
}

// WithHTTPClient returns a copy of the client that sends requests
// through hc.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	out := *c
	out.Client = hc
	return &out
}

// Model returns the model resource at a URL prefix such as
// "models/polls/poll/".
func (c *Client) Model(prefix string) *Model {
	u, _ := c.Template("{+prefix}", map[string]interface{}{"prefix": prefix})
	if u == nil {
		u = c.URL
	}
	r := c.resource
	r.URL = u
	return &Model{resource: r}
}

// Object is the serialized form of one stored object.
type Object struct {
	PK     interface{}            `codec:"pk"`
	Model  string                 `codec:"model"`
	Fields map[string]interface{} `codec:"fields"`
}

// Model is a client for one model resource.
type Model struct {
	resource
}

func (m *Model) call(method, template string, vars map[string]interface{}, query url.Values, in, out interface{}) error {
	u, err := m.Template(template, vars)
	if err != nil {
		return err
	}
	return m.Do(method, m.withQuery(u, query), in, out)
}

func pkVars(pks []string) map[string]interface{} {
	return map[string]interface{}{"pk": pks}
}

// Length counts the objects matching the lookups in query.
func (m *Model) Length(query url.Values) (int, error) {
	var n int
	err := m.call("GET", "length/", nil, query, nil, &n)
	return n, err
}

// List returns one page of the objects matching query, which may
// also carry ordering, offset and limit parameters.
func (m *Model) List(query url.Values) ([]Object, error) {
	var objs []Object
	err := m.call("GET", "list/", nil, query, nil, &objs)
	return objs, err
}

// Show returns the objects with the given primary keys.
func (m *Model) Show(pks ...string) ([]Object, error) {
	var objs []Object
	err := m.call("GET", "{?pk*}", pkVars(pks), nil, nil, &objs)
	return objs, err
}

// Create stores a new object.
func (m *Model) Create(data map[string]interface{}) (Object, error) {
	var obj Object
	err := m.call("POST", "", nil, nil, data, &obj)
	return obj, err
}

// Update changes the fields named in data of one object.
func (m *Model) Update(pk string, data map[string]interface{}) (Object, error) {
	var obj Object
	err := m.call("PUT", "{?pk*}", pkVars([]string{pk}), nil, data, &obj)
	return obj, err
}

// Destroy deletes the objects with the given primary keys.
func (m *Model) Destroy(pks ...string) error {
	return m.call("DELETE", "{?pk*}", pkVars(pks), nil, nil, nil)
}

// Meta returns the description of the resource's form.
func (m *Model) Meta() (map[string]interface{}, error) {
	var meta map[string]interface{}
	err := m.call("GET", "meta/", nil, nil, nil, &meta)
	return meta, err
}
