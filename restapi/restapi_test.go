// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restapi

import (
	"errors"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/diffeo/go-modelrest/auth"
	"github.com/diffeo/go-modelrest/config"
	"github.com/diffeo/go-modelrest/forms"
	"github.com/diffeo/go-modelrest/model"
	"github.com/diffeo/go-modelrest/serialization"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// denyAuthenticator refuses every request and counts how often it
// was asked.
type denyAuthenticator struct {
	calls int
}

func (a *denyAuthenticator) IsAuthenticated(*http.Request, string) (auth.User, bool) {
	a.calls++
	return nil, false
}

func echoOptions() Options {
	return Options{
		Name: "EchoThing",
		Routes: []Route{
			{Path: "", Ops: map[string]string{"GET": "show", "POST": "create", "DELETE": "destroy"}},
			{Path: "hidden/", Ops: map[string]string{"GET": "secret"}},
			{Path: "boom/", Ops: map[string]string{"GET": "boom"}},
			{Path: "teapot/", Ops: map[string]string{"GET": "teapot"}},
		},
		Handlers: map[string]HandlerFunc{
			"show": func(r *Request) (interface{}, error) {
				return map[string]interface{}{"q": r.Query.Get("q"), "user": r.User.Username()}, nil
			},
			"create": func(r *Request) (interface{}, error) {
				data, err := r.DataMap()
				if err != nil {
					return nil, err
				}
				return Emittable{Content: data, Status: http.StatusCreated}, nil
			},
			"destroy": func(r *Request) (interface{}, error) {
				return nil, nil
			},
			"secret": func(r *Request) (interface{}, error) {
				return "secret", nil
			},
			"boom": func(r *Request) (interface{}, error) {
				panic("kaboom")
			},
			"teapot": func(r *Request) (interface{}, error) {
				return nil, ErrNotFound{Err: errors.New("no teapot here")}
			},
		},
		AllowedOperations: []string{"show", "create", "destroy", "boom", "teapot"},
	}
}

func newEchoSite(t *testing.T) (*Site, *httptest.Server) {
	site := NewSite("test", config.Defaults())
	_, err := site.Register(NewResource, echoOptions())
	require.NoError(t, err)
	server := httptest.NewServer(site.Router())
	t.Cleanup(server.Close)
	return site, server
}

func do(t *testing.T, method, u string, ctype string, body string) (*http.Response, []byte) {
	var req *http.Request
	var err error
	if body == "" {
		req, err = http.NewRequest(method, u, nil)
	} else {
		req, err = http.NewRequest(method, u, strings.NewReader(body))
	}
	require.NoError(t, err)
	if ctype != "" {
		req.Header.Set("Content-Type", ctype)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	content, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, content
}

func decode(t *testing.T, body []byte) interface{} {
	v, err := serialization.DecodeJSON(body)
	require.NoError(t, err)
	return v
}

func TestRegistration(t *testing.T) {
	site := NewSite("test", config.Defaults())
	res, err := site.Register(NewResource, echoOptions())
	require.NoError(t, err)
	assert.Equal(t, "resource/echo_thing/", res.Base().Prefix)
	assert.Equal(t, site, res.Base().Site)

	_, err = site.Register(NewResource, echoOptions())
	assert.Equal(t, ErrAlreadyRegistered{Prefix: "resource/echo_thing/"}, err)

	found, ok := site.Lookup("resource/echo_thing/")
	assert.True(t, ok)
	assert.Equal(t, res, found)

	opts := echoOptions()
	opts.Prefix = "other/"
	_, err = site.Register(NewResource, opts)
	require.NoError(t, err)
	if resources := site.Resources(); assert.Len(t, resources, 2) {
		assert.Equal(t, "other/", resources[0].Base().Prefix)
		assert.Equal(t, "resource/echo_thing/", resources[1].Base().Prefix)
	}

	assert.NoError(t, site.Unregister("other/"))
	assert.Equal(t, ErrNotRegistered{Prefix: "other/"}, site.Unregister("other/"))
	assert.NoError(t, site.UnregisterResource(NewResource, echoOptions()))
	assert.Empty(t, site.Resources())

	_, err = site.Register(NewResource, Options{})
	assert.Error(t, err)
}

func TestSetAuthenticatorNotRetroactive(t *testing.T) {
	site := NewSite("test", config.Defaults())
	before, err := site.Register(NewResource, echoOptions())
	require.NoError(t, err)

	deny := &denyAuthenticator{}
	site.SetAuthenticator(func(auth.Spec) auth.Authenticator { return deny })
	opts := echoOptions()
	opts.Prefix = "after/"
	after, err := site.Register(NewResource, opts)
	require.NoError(t, err)

	assert.IsType(t, auth.AnonymousAuthenticator{}, before.Base().Authenticator)
	assert.Equal(t, deny, after.Base().Authenticator)

	server := httptest.NewServer(site.Router())
	defer server.Close()

	resp, body := do(t, "GET", server.URL+"/api/resource/echo_thing/", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body = do(t, "GET", server.URL+"/api/after/", "", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, body)
	assert.Equal(t, 1, deny.calls)
}

func TestAnonymousSkipsAuthentication(t *testing.T) {
	site := NewSite("test", config.Defaults())
	deny := &denyAuthenticator{}
	site.SetAuthenticator(func(auth.Spec) auth.Authenticator { return deny })
	opts := echoOptions()
	opts.Anonymous = true
	_, err := site.Register(NewResource, opts)
	require.NoError(t, err)
	server := httptest.NewServer(site.Router())
	defer server.Close()

	resp, body := do(t, "GET", server.URL+"/api/resource/echo_thing/?q=hi", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]interface{}{"q": "hi", "user": ""}, decode(t, body))
	assert.Equal(t, 0, deny.calls)
}

func TestDispatchExits(t *testing.T) {
	_, server := newEchoSite(t)
	base := server.URL + "/api/resource/echo_thing/"

	// operation filtered out by the allow-list
	resp, body := do(t, "GET", base+"hidden/", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, body)

	resp, _ = do(t, "PUT", base, "application/json", "{}")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "DELETE, GET, POST", resp.Header.Get("Allow"))

	resp, body = do(t, "POST", base, "application/json", `{"a": `)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "The 'application/json' data sent in the request was malformed", decode(t, body))

	resp, body = do(t, "POST", base, "application/json", `[1, 2]`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "The data sent in the request was malformed", decode(t, body))

	resp, body = do(t, "POST", base, "application/json", `{"a": 1}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, map[string]interface{}{"a": int64(1)}, decode(t, body))

	resp, body = do(t, "POST", base, "application/x-www-form-urlencoded", "a=1&b=2&b=3")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, map[string]interface{}{"a": "1", "b": []interface{}{"2", "3"}}, decode(t, body))

	resp, body = do(t, "DELETE", base, "", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, body)

	resp, body = do(t, "GET", base+"teapot/", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "no teapot here", decode(t, body))
}

func TestDispatchPanic(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	_, server := newEchoSite(t)

	resp, body := do(t, "GET", server.URL+"/api/resource/echo_thing/boom/", "", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	content, ok := decode(t, body).(map[string]interface{})
	if assert.True(t, ok) {
		assert.Equal(t, "panic", content["error"])
		assert.Equal(t, "kaboom", content["message"])
		assert.NotEmpty(t, content["stack"])
	}
	if entry := hook.LastEntry(); assert.NotNil(t, entry) {
		assert.Equal(t, logrus.ErrorLevel, entry.Level)
	}
}

func TestDispatchFormats(t *testing.T) {
	_, server := newEchoSite(t)
	base := server.URL + "/api/resource/echo_thing/"

	resp, body := do(t, "GET", base+"?q=x&format=yaml", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, serialization.YAMLContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), "q: x")

	resp, body = do(t, "GET", base+"?format=toml", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Cannot serialize response to 'toml' format specified in request", string(body))

	req, err := http.NewRequest("GET", base+"?q=x", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/xml")
	xresp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer xresp.Body.Close()
	assert.Equal(t, serialization.XMLContentType, xresp.Header.Get("Content-Type"))
}

func TestUnknownFormatSkipsHandler(t *testing.T) {
	site := NewSite("test", config.Defaults())
	deny := &denyAuthenticator{}
	site.SetAuthenticator(func(auth.Spec) auth.Authenticator { return deny })
	created := 0
	opts := echoOptions()
	opts.Handlers["create"] = func(r *Request) (interface{}, error) {
		created++
		return nil, nil
	}
	_, err := site.Register(NewResource, opts)
	require.NoError(t, err)
	server := httptest.NewServer(site.Router())
	defer server.Close()

	resp, body := do(t, "POST", server.URL+"/api/resource/echo_thing/?format=toml", "application/json", `{"a": 1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, serialization.DebugContentType, resp.Header.Get("Content-Type"))
	assert.Equal(t, "Cannot serialize response to 'toml' format specified in request", string(body))
	assert.Equal(t, 0, created)
	assert.Equal(t, 0, deny.calls)
}

func TestDebugContentType(t *testing.T) {
	settings := config.Defaults()
	settings.Debug = true
	site := NewSite("test", settings)
	_, err := site.Register(NewResource, echoOptions())
	require.NoError(t, err)
	server := httptest.NewServer(site.Router())
	defer server.Close()

	resp, _ := do(t, "GET", server.URL+"/api/resource/echo_thing/", "", "")
	assert.Equal(t, serialization.DebugContentType, resp.Header.Get("Content-Type"))
}

func TestHandlerLogsRequests(t *testing.T) {
	site := NewSite("test", config.Defaults())
	_, err := site.Register(NewResource, echoOptions())
	require.NoError(t, err)
	logger, hook := test.NewNullLogger()
	server := httptest.NewServer(site.Handler(logger))
	defer server.Close()

	resp, _ := do(t, "GET", server.URL+"/api/resource/echo_thing/", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	if entry := hook.LastEntry(); assert.NotNil(t, entry) {
		assert.Equal(t, "GET", entry.Data["method"])
		assert.Equal(t, "/api/resource/echo_thing/", entry.Data["path"])
		assert.Equal(t, http.StatusOK, entry.Data["status"])
	}
}

func pollModel(t *testing.T) *model.Model {
	poll := &model.Model{App: "polls", Name: "Poll", Fields: []*model.Field{
		{Name: "question", Class: "CharField", MaxLength: 30},
		{Name: "votes", Class: "IntegerField", Blank: true, Default: int64(0)},
	}}
	reg := model.NewRegistry()
	require.NoError(t, reg.Register(&model.App{Label: "polls", Models: []*model.Model{poll}}))
	require.NoError(t, reg.Resolve())
	return poll
}

func newModelBase(t *testing.T) (*Site, *ModelBase) {
	site := NewSite("test", config.Defaults())
	b, err := NewModelBase(site, Options{Model: pollModel(t), MaxOrderings: 2})
	require.NoError(t, err)
	return site, b
}

func TestModelBaseDefaults(t *testing.T) {
	_, b := newModelBase(t)
	assert.Equal(t, "models/polls/poll/", b.Prefix)
	assert.Equal(t, "polls.Poll", b.Name)
	assert.Equal(t, 100, b.MaxObjects)
	assert.Equal(t, 2, b.MaxOrderings)
	assert.Equal(t, "PollForm", b.Form.Name)

	b.Bind(ModelOperations{Length: func(*Request) (interface{}, error) { return 0, nil }})
	assert.Equal(t, map[string]string{"GET": "length"}, b.Ops(b.Routes[0].Ops))
	assert.Empty(t, b.Ops(b.Routes[4].Ops))

	_, err := NewModelBase(NewSite("test", config.Defaults()), Options{})
	assert.Error(t, err)
}

func TestModelBaseOrdering(t *testing.T) {
	_, b := newModelBase(t)
	ordering, err := b.Ordering(url.Values{"ordering": {"-votes, question"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"-votes", "question"}, ordering)

	_, err = b.Ordering(url.Values{"ordering": {"a,b,c"}})
	assert.EqualError(t, err, "This model cannot be ordered by more than 2 parameter(s). You tried to order by 3 parameters.")

	_, err = b.Ordering(url.Values{"ordering": {"poll__question"}})
	assert.IsType(t, ErrBadRequest{}, err)

	b.AllowRelatedOrdering = true
	ordering, err = b.Ordering(url.Values{"ordering": {"poll__question"}})
	assert.NoError(t, err)
	assert.Equal(t, []string{"poll__question"}, ordering)
}

func TestModelBasePage(t *testing.T) {
	site, b := newModelBase(t)
	b.MaxObjects = 10
	for _, c := range []struct {
		query         string
		offset, limit int
	}{
		{"", 0, 10},
		{"offset=5", 5, 10},
		{"start=5&length=3", 5, 3},
		{"start=2&end=6", 2, 4},
		{"limit=500", 0, 10},
		{"offset=3&end=1", 3, 0},
	} {
		q, err := url.ParseQuery(c.query)
		require.NoError(t, err)
		offset, limit, err := b.Page(&Request{Site: site, Query: q})
		if assert.NoError(t, err, c.query) {
			assert.Equal(t, c.offset, offset, c.query)
			assert.Equal(t, c.limit, limit, c.query)
		}
	}
	_, _, err := b.Page(&Request{Site: site, Query: url.Values{"limit": {"many"}}})
	assert.IsType(t, ErrBadRequest{}, err)
}

func TestModelBaseFilters(t *testing.T) {
	_, b := newModelBase(t)
	q := url.Values{
		"ordering":           {"votes"},
		"token":              {"abc"},
		"votes__gt":          {"3"},
		"question__contains": {"socks"},
		"format":             {"json"},
	}
	assert.Equal(t, []Filter{
		{Key: "question__contains", Value: "socks"},
		{Key: "votes__gt", Value: "3"},
	}, b.Filters(q))
}

func TestModelBaseConstruct(t *testing.T) {
	site, b := newModelBase(t)
	r := &Request{Site: site, Data: map[string]interface{}{"question": strings.Repeat("x", 40)}}
	_, err := b.Construct(r, nil)
	if verr, ok := err.(ErrValidation); assert.True(t, ok) {
		assert.Contains(t, verr.Errors, "question")
		body := verr.Body()
		assert.Equal(t, "The data sent in the request was invalid", body["message"])
	}

	r.Data = "nope"
	_, err = b.Construct(r, nil)
	assert.Equal(t, ErrMalformed, err)

	r.Data = map[string]interface{}{"question": "Socks?"}
	obj, err := b.Construct(r, nil)
	require.NoError(t, err)
	assert.Equal(t, "Socks?", obj.Get("question"))
	assert.Equal(t, int64(0), obj.Get("votes"))
}

func TestFormResource(t *testing.T) {
	site := NewSite("test", config.Defaults())
	var got map[string]interface{}
	form := &forms.Form{Name: "ContactForm", Fields: []*forms.Field{
		{Name: "email", Class: "EmailField", Required: true},
	}}
	_, err := site.Register(NewFormResource, Options{
		PlainForm: form,
		Submit: func(r *Request, cleaned map[string]interface{}) (interface{}, error) {
			got = cleaned
			return "thanks", nil
		},
	})
	require.NoError(t, err)
	server := httptest.NewServer(site.Router())
	defer server.Close()
	base := server.URL + "/api/forms/contact_form/"

	resp, body := do(t, "GET", base+"form/", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	meta, ok := decode(t, body).(map[string]interface{})
	if assert.True(t, ok) {
		assert.Equal(t, "ContactForm", meta["formName"])
	}

	resp, body = do(t, "POST", base, "application/json", `{"email": "nope"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	content, ok := decode(t, body).(map[string]interface{})
	if assert.True(t, ok) {
		assert.Contains(t, content["errors"], "email")
	}
	assert.Nil(t, got)

	resp, body = do(t, "POST", base, "application/json", `{"email": "a@example.com"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "thanks", decode(t, body))
	assert.Equal(t, map[string]interface{}{"email": "a@example.com"}, got)
}

func TestAutodiscover(t *testing.T) {
	site := NewSite("test", config.Defaults())
	calls := 0
	RegisterHook("echo", func(s *Site) error {
		calls++
		// a nested call while loading is ignored
		require.NoError(t, Autodiscover(s))
		_, err := s.Register(NewResource, echoOptions())
		return err
	})
	require.NoError(t, Autodiscover(site))
	require.NoError(t, Autodiscover(site))
	assert.Equal(t, 1, calls)
	_, ok := site.Lookup("resource/echo_thing/")
	assert.True(t, ok)
}
