// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package dsresource

import (
	"io/ioutil"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/diffeo/go-modelrest/datastore"
	"github.com/diffeo/go-modelrest/model"
	"github.com/diffeo/go-modelrest/resourcetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

// Suite runs the generic resource tests over a bbolt datastore in a
// temporary directory.
type Suite struct {
	resourcetest.Suite
	dir   string
	store *datastore.Store
}

// SetupSuite does global setup for the test suite.
func (s *Suite) SetupSuite() {
	s.Suite.SetupSuite()
	reg := model.NewRegistry()
	s.Require().NoError(reg.Register(resourcetest.App(true)))
	s.Require().NoError(reg.Resolve())

	var err error
	s.dir, err = ioutil.TempDir("", "dsresource")
	s.Require().NoError(err)
	s.store, err = datastore.Open(filepath.Join(s.dir, "things.db"), reg)
	s.Require().NoError(err)

	s.Model, err = reg.Model("things", "Thing")
	s.Require().NoError(err)
	s.Constructor = Constructor(s.store)
	s.MissingPK = datastore.NewKey(s.Model.Label()).Encode()
	s.Reset = func() error {
		objs, err := s.store.Query(s.Model).Fetch(-1, 0)
		if err != nil {
			return err
		}
		keys := make([]string, len(objs))
		for i, obj := range objs {
			keys[i] = obj.PK.(string)
		}
		return s.store.Delete(keys...)
	}
}

// TearDownSuite closes and removes the store.
func (s *Suite) TearDownSuite() {
	s.store.Close()
	os.RemoveAll(s.dir)
}

// TestBadKey sends a primary key that does not decode.
func (s *Suite) TestBadKey() {
	_, err := s.Client.Show("not-a-key")
	s.HTTPError(400, err)
}

// TestKeyLookup filters on the entity key through "pk".
func (s *Suite) TestKeyLookup() {
	a := s.Create("alpha", 1)
	s.Create("beta", 2)
	n, err := s.Client.Length(url.Values{"pk__not": {resourcetest.PK(a)}})
	if s.NoError(err) {
		s.Equal(1, n)
	}
}

// TestLengthMax stops counting at the "max" parameter.
func (s *Suite) TestLengthMax() {
	for i := 0; i < 4; i++ {
		s.Create("thing", i)
	}
	n, err := s.Client.Length(url.Values{"max": {"3"}})
	if s.NoError(err) {
		s.Equal(3, n)
	}
	n, err = s.Client.Length(url.Values{"max": {"10"}})
	if s.NoError(err) {
		s.Equal(4, n)
	}
}

// seed stores n things directly, with ranks 0 through n-1, and
// returns their keys.
func (s *Suite) seed(n int) []string {
	keys := make([]string, n)
	for i := range keys {
		obj := model.NewObject(s.Model)
		obj.Set("title", "thing")
		obj.Set("rank", int64(i))
		s.Require().NoError(s.store.Put(obj))
		keys[i] = obj.PK.(string)
	}
	return keys
}

// TestLengthBatches counts past one batch of entities.
func (s *Suite) TestLengthBatches() {
	s.seed(2*batchSize + 300)
	for _, c := range []struct {
		Query  url.Values
		Expect int
	}{
		{nil, 2300},
		{url.Values{"max": {"1500"}}, 1500},
		{url.Values{"max": {"5000"}}, 2300},
		{url.Values{"rank__gte": {"100"}}, 2200},
		{url.Values{"rank__lt": {"1000"}}, 1000},
	} {
		n, err := s.Client.Length(c.Query)
		if s.NoError(err, c.Query.Encode()) {
			s.Equal(c.Expect, n, c.Query.Encode())
		}
	}
}

// TestDestroyBatches deletes more than one batch of entities in one
// request.
func (s *Suite) TestDestroyBatches() {
	keys := s.seed(batchSize + 200)
	s.NoError(s.Client.Destroy(keys...))
	n, err := s.store.Query(s.Model).Count(-1)
	if s.NoError(err) {
		s.Equal(0, n)
	}
}

// TestUnsupportedLookup asks for a lookup only relational stores
// have.
func (s *Suite) TestUnsupportedLookup() {
	_, err := s.Client.Length(url.Values{"title__icontains": {"a"}})
	herr := s.HTTPError(400, err)
	s.Contains(herr.Body, "Unsupported lookup")
}

// TestResource runs the model resource generic tests.
func TestResource(t *testing.T) {
	suite.Run(t, &Suite{})
}

func TestFilterSpec(t *testing.T) {
	for key, expect := range map[string]string{
		"title":        "title =",
		"title__exact": "title =",
		"rank__gte":    "rank >=",
		"rank__not":    "rank !=",
		"rank__in":     "rank IN",
		"pk":           "__key__ =",
		"pk__in":       "__key__ IN",
		"__key__":      "__key__ =",
	} {
		spec, err := FilterSpec(key)
		if assert.NoError(t, err, key) {
			assert.Equal(t, expect, spec, key)
		}
	}
	_, err := FilterSpec("title__contains")
	assert.IsType(t, datastore.BadFilterError{}, err)
}
