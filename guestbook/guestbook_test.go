// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package guestbook

import (
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-modelrest/auth"
	"github.com/diffeo/go-modelrest/backend"
	"github.com/diffeo/go-modelrest/config"
	"github.com/diffeo/go-modelrest/model"
	"github.com/diffeo/go-modelrest/restapi"
	"github.com/diffeo/go-modelrest/restclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type Suite struct {
	suite.Suite
	Clock    *clock.Mock
	Store    *backend.Datastore
	Sessions *auth.MemorySessions
	Server   *httptest.Server
	Client   *restclient.Client
}

func (s *Suite) SetupSuite() {
	s.Require().NoError(model.Default.Resolve())
}

func (s *Suite) SetupTest() {
	e := backend.Entity{Backend: backend.Backend{Implementation: "memory"}}
	store, err := e.Entities(model.Default)
	s.Require().NoError(err)
	s.Store = store

	s.Clock = clock.NewMock()
	s.Clock.Add(40 * 365 * 24 * time.Hour)
	s.Sessions = auth.NewMemorySessions()

	site := restapi.NewSite("guestbook", config.Defaults())
	site.Clock = s.Clock
	site.SetAuthenticator(auth.NewBaseAuthenticator, &auth.CookieGateway{Sessions: s.Sessions})
	backend.Attach(site, backend.Stores{Entities: store.Store})
	s.Require().NoError(restapi.Autodiscover(site))
	s.Server = httptest.NewServer(site.Router())

	s.Client, err = restclient.New(s.Server.URL + site.Settings.APIPrefix)
	s.Require().NoError(err)
}

func (s *Suite) TearDownTest() {
	s.Server.Close()
	s.NoError(s.Store.Close())
}

// greetings returns the greeting resource as seen by user, or
// anonymously if user is nil.
func (s *Suite) greetings(user auth.User) *restclient.Model {
	client := s.Client
	if user != nil {
		jar, err := cookiejar.New(nil)
		s.Require().NoError(err)
		u, err := url.Parse(s.Server.URL)
		s.Require().NoError(err)
		jar.SetCookies(u, []*http.Cookie{{
			Name:  auth.DefaultCookieName,
			Value: s.Sessions.Login(user),
			Path:  "/",
		}})
		client = client.WithHTTPClient(&http.Client{Jar: jar})
	}
	return client.Model("models/guestbook/greeting/")
}

func (s *Suite) sign(user auth.User, content string) restclient.Object {
	obj, err := s.greetings(user).Create(map[string]interface{}{"content": content})
	s.Require().NoError(err)
	return obj
}

func (s *Suite) TestSign() {
	ann := &auth.SimpleUser{ID: 1, Name: "ann"}
	obj := s.sign(ann, "Hello from Ann")
	s.Equal("guestbook.greeting", obj.Model)
	s.Equal("1", obj.Fields["author"])
	s.Equal("Hello from Ann", obj.Fields["content"])
	s.NotEmpty(obj.Fields["date"])

	pk, ok := obj.PK.(string)
	if s.True(ok, "pk %#v", obj.PK) {
		objs, err := s.greetings(ann).Show(pk)
		if s.NoError(err) && s.Len(objs, 1) {
			s.Equal(obj, objs[0])
		}
	}
}

func (s *Suite) TestOwnGreetings() {
	ann := &auth.SimpleUser{ID: 1, Name: "ann"}
	bob := &auth.SimpleUser{ID: 2, Name: "bob"}
	s.sign(ann, "Hello from Ann")
	s.sign(ann, "Ann again")
	fromBob := s.sign(bob, "Hi from Bob")

	n, err := s.greetings(ann).Length(nil)
	if s.NoError(err) {
		s.Equal(2, n)
	}
	objs, err := s.greetings(bob).List(nil)
	if s.NoError(err) && s.Len(objs, 1) {
		s.Equal("Hi from Bob", objs[0].Fields["content"])
	}
	n, err = s.greetings(nil).Length(nil)
	if s.NoError(err) {
		s.Equal(3, n)
	}

	// Ann cannot delete Bob's greeting
	s.NoError(s.greetings(ann).Destroy(fromBob.PK.(string)))
	n, err = s.greetings(nil).Length(nil)
	if s.NoError(err) {
		s.Equal(3, n)
	}
	s.NoError(s.greetings(bob).Destroy(fromBob.PK.(string)))
	n, err = s.greetings(nil).Length(nil)
	if s.NoError(err) {
		s.Equal(2, n)
	}
}

func (s *Suite) TestContentRequired() {
	_, err := s.greetings(nil).Create(map[string]interface{}{})
	herr, ok := err.(restclient.ErrorHTTP)
	if s.True(ok, "expected an HTTP error, got %v", err) {
		s.Equal(http.StatusBadRequest, herr.StatusCode())
		s.Equal([]string{"This field is required."}, herr.FieldErrors()["content"])
	}
}

func (s *Suite) TestAuthorLookup() {
	s.sign(&auth.SimpleUser{ID: 1, Name: "ann"}, "Hello from Ann")
	s.sign(&auth.SimpleUser{ID: 2, Name: "bob"}, "Hi from Bob")
	n, err := s.greetings(nil).Length(url.Values{"author": {"2"}})
	if s.NoError(err) {
		s.Equal(1, n)
	}
}

func TestGuestbook(t *testing.T) {
	suite.Run(t, &Suite{})
}

func TestHookNeedsStore(t *testing.T) {
	site := restapi.NewSite("bare", config.Defaults())
	assert.Equal(t, backend.ErrNoStore, Hook(site))
}
