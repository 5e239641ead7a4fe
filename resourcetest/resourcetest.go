// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package resourcetest provides generic functional tests for model
// resources.  A typical store-backed resource test module needs to
// wrap Suite to create its store:
//
//     package myresource
//
//     import (
//             "testing"
//             "github.com/diffeo/go-modelrest/resourcetest"
//             "github.com/stretchr/testify/suite"
//     )
//
//     // Suite is the per-backend generic test suite.
//     type Suite struct{
//             resourcetest.Suite
//     }
//
//     // SetupSuite does global setup for the test suite.
//     func (s *Suite) SetupSuite() {
//             s.Suite.SetupSuite()
//             store := ... // a store holding resourcetest.App(false)
//             s.Model = ...
//             s.Constructor = Constructor(store)
//             s.Reset = store.Reset
//     }
//
//     // TestResource runs the model resource generic tests.
//     func TestResource(t *testing.T) {
//             suite.Run(t, &Suite{})
//     }
package resourcetest

import (
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-modelrest/config"
	"github.com/diffeo/go-modelrest/model"
	"github.com/diffeo/go-modelrest/restapi"
	"github.com/diffeo/go-modelrest/restclient"
	"github.com/stretchr/testify/suite"
)

// MaxObjects is the object limit of the resource under test.
const MaxObjects = 5

// App returns the application the suite tests against, with one model
// Thing that has a required string field "title" and an integer field
// "rank" defaulting to 0.  datastore selects datastore property
// classes instead of relational field classes.
func App(datastore bool) *model.App {
	thing := &model.Model{Name: "Thing", Datastore: datastore}
	if datastore {
		thing.Fields = []*model.Field{
			{Name: "title", Class: "StringProperty", Required: true},
			{Name: "rank", Class: "IntegerProperty", Default: int64(0)},
		}
	} else {
		thing.Fields = []*model.Field{
			{Name: "title", Class: "CharField", MaxLength: 100},
			{Name: "rank", Class: "IntegerField", Blank: true, Default: int64(0)},
		}
	}
	return &model.App{Label: "things", Models: []*model.Model{thing}}
}

// Suite is the generic model resource test suite.
type Suite struct {
	suite.Suite

	// Clock contains the alternate time source to be used in tests.
	// It is pre-initialized to a mock clock.
	Clock *clock.Mock

	// Model is the Thing model of App, resolved in the backend's
	// registry.  It is set by importing packages.
	Model *model.Model

	// Constructor builds resources for Model.  It is set by
	// importing packages.
	Constructor restapi.Constructor

	// Reset, if set, empties the store before each test.
	Reset func() error

	// MissingPK is a well-formed primary key that names no object.
	MissingPK string

	// Site, Server and Client are rebuilt for each test.
	Site   *restapi.Site
	Server *httptest.Server
	Client *restclient.Model
}

// SetupSuite does one-time initialization for the test suite.
func (s *Suite) SetupSuite() {
	s.Clock = clock.NewMock()
}

// SetupTest empties the store and serves a fresh site holding one
// anonymous resource for Model.
func (s *Suite) SetupTest() {
	s.Require().NotNil(s.Model, "backend must set Model")
	s.Require().NotNil(s.Constructor, "backend must set Constructor")
	if s.Reset != nil {
		s.Require().NoError(s.Reset())
	}

	s.Site = restapi.NewSite("test", config.Defaults())
	s.Site.Clock = s.Clock
	res, err := s.Site.Register(s.Constructor, restapi.Options{
		Model:      s.Model,
		MaxObjects: MaxObjects,
		Anonymous:  true,
	})
	s.Require().NoError(err)
	s.Server = httptest.NewServer(s.Site.Router())

	client, err := restclient.New(s.Server.URL + s.Site.Settings.APIPrefix)
	s.Require().NoError(err)
	s.Client = client.Model(res.Base().Prefix)
}

// TearDownTest stops the test server.
func (s *Suite) TearDownTest() {
	if s.Server != nil {
		s.Server.Close()
		s.Server = nil
	}
}

// PK returns the string form of an object's primary key.
func PK(obj restclient.Object) string {
	return fmt.Sprint(obj.PK)
}

// Create stores a thing, failing the test if it cannot.
func (s *Suite) Create(title string, rank int) restclient.Object {
	obj, err := s.Client.Create(map[string]interface{}{"title": title, "rank": rank})
	s.Require().NoError(err)
	return obj
}

// Raw sends a request to a path under the resource's URL and returns
// the response status, content type and body.
func (s *Suite) Raw(method, path, contentType, body string) (int, string, string) {
	u, err := s.Client.URL.Parse(path)
	s.Require().NoError(err)
	req, err := http.NewRequest(method, u.String(), strings.NewReader(body))
	s.Require().NoError(err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	data, err := ioutil.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp.StatusCode, resp.Header.Get("Content-Type"), string(data)
}

// HTTPError asserts that err is an HTTP failure with a status, and
// returns it.
func (s *Suite) HTTPError(status int, err error) restclient.ErrorHTTP {
	herr, ok := err.(restclient.ErrorHTTP)
	if s.True(ok, "expected an HTTP error, got %v", err) {
		s.Equal(status, herr.StatusCode(), herr.Body)
	}
	return herr
}

// Ranks returns the ranks of a list of things, in order.
func Ranks(objs []restclient.Object) []int64 {
	out := []int64{}
	for _, obj := range objs {
		rank, _ := obj.Fields["rank"].(int64)
		out = append(out, rank)
	}
	return out
}
