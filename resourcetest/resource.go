// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package resourcetest

import (
	"net/http"
	"net/url"
	"strings"
)

// TestCreateShow creates an object and reads it back.
func (s *Suite) TestCreateShow() {
	created := s.Create("alpha", 3)
	s.NotNil(created.PK)
	s.Equal(s.Model.ObjectLabel(), created.Model)
	s.Equal("alpha", created.Fields["title"])
	s.Equal(int64(3), created.Fields["rank"])

	objs, err := s.Client.Show(PK(created))
	if s.NoError(err) && s.Len(objs, 1) {
		s.Equal(created, objs[0])
	}
}

// TestCreateDefaults leaves out a field with a default.
func (s *Suite) TestCreateDefaults() {
	obj, err := s.Client.Create(map[string]interface{}{"title": "plain"})
	if s.NoError(err) {
		s.Equal(int64(0), obj.Fields["rank"])
	}
}

// TestCreateInvalid submits data the form rejects.
func (s *Suite) TestCreateInvalid() {
	_, err := s.Client.Create(map[string]interface{}{"rank": "lots"})
	herr := s.HTTPError(http.StatusBadRequest, err)
	errs := herr.FieldErrors()
	s.Equal([]string{"This field is required."}, errs["title"])
	s.NotEmpty(errs["rank"])

	n, err := s.Client.Length(nil)
	if s.NoError(err) {
		s.Equal(0, n)
	}
}

// TestCreateMalformed submits a body that is not a mapping.
func (s *Suite) TestCreateMalformed() {
	status, _, _ := s.Raw("POST", "", "application/json", `["title", "rank"]`)
	s.Equal(http.StatusBadRequest, status)

	status, _, _ = s.Raw("POST", "", "application/json", `{"title": `)
	s.Equal(http.StatusBadRequest, status)
}

// TestCreateNotScalar submits lists and mappings for a string field.
func (s *Suite) TestCreateNotScalar() {
	for _, title := range []interface{}{
		[]interface{}{"a", "b"},
		map[string]interface{}{"x": 1},
	} {
		_, err := s.Client.Create(map[string]interface{}{"title": title, "rank": 1})
		herr := s.HTTPError(http.StatusBadRequest, err)
		s.Equal([]string{"Enter a valid value."}, herr.FieldErrors()["title"])
	}

	created := s.Create("alpha", 1)
	_, err := s.Client.Update(PK(created), map[string]interface{}{"title": []interface{}{"a", "b"}})
	herr := s.HTTPError(http.StatusBadRequest, err)
	s.NotEmpty(herr.FieldErrors()["title"])

	n, err := s.Client.Length(nil)
	if s.NoError(err) {
		s.Equal(1, n)
	}
}

// TestShowClamp asks for more objects than one request may return.
func (s *Suite) TestShowClamp() {
	var pks []string
	for i := 0; i < MaxObjects+3; i++ {
		pks = append(pks, PK(s.Create(strings.Repeat("x", i+1), i)))
	}
	objs, err := s.Client.Show(pks...)
	if s.NoError(err) {
		s.Len(objs, MaxObjects)
	}
}

// TestShowRequiresPK asks for objects without naming any.
func (s *Suite) TestShowRequiresPK() {
	s.Create("alpha", 1)
	status, _, body := s.Raw("GET", "", "", "")
	s.Equal(http.StatusBadRequest, status)
	s.Contains(body, "The request must specify a pk argument")
}

// TestShowMissing asks for a key that names nothing.
func (s *Suite) TestShowMissing() {
	objs, err := s.Client.Show(s.MissingPK)
	if s.NoError(err) {
		s.Empty(objs)
	}
}

// TestUpdatePartial changes one field and keeps the others.
func (s *Suite) TestUpdatePartial() {
	created := s.Create("alpha", 2)
	updated, err := s.Client.Update(PK(created), map[string]interface{}{"rank": 7})
	if s.NoError(err) {
		s.Equal(created.PK, updated.PK)
		s.Equal("alpha", updated.Fields["title"])
		s.Equal(int64(7), updated.Fields["rank"])
	}

	objs, err := s.Client.Show(PK(created))
	if s.NoError(err) && s.Len(objs, 1) {
		s.Equal(int64(7), objs[0].Fields["rank"])
	}
}

// TestUpdateInvalid submits a bad value for an existing object.
func (s *Suite) TestUpdateInvalid() {
	created := s.Create("alpha", 2)
	_, err := s.Client.Update(PK(created), map[string]interface{}{"title": ""})
	herr := s.HTTPError(http.StatusBadRequest, err)
	s.Equal([]string{"This field is required."}, herr.FieldErrors()["title"])
}

// TestUpdateMissing updates an object that does not exist.
func (s *Suite) TestUpdateMissing() {
	_, err := s.Client.Update(s.MissingPK, map[string]interface{}{"rank": 1})
	s.HTTPError(http.StatusNotFound, err)
}

// TestUpdateSinglePK requires exactly one pk for an update.
func (s *Suite) TestUpdateSinglePK() {
	a := s.Create("alpha", 1)
	b := s.Create("beta", 2)
	q := url.Values{"pk": {PK(a), PK(b)}}
	status, _, body := s.Raw("PUT", "?"+q.Encode(), "application/json", `{"rank": 3}`)
	s.Equal(http.StatusBadRequest, status)
	s.Contains(body, "single pk")
}

// TestDestroy deletes objects, twice.
func (s *Suite) TestDestroy() {
	a := s.Create("alpha", 1)
	s.Create("beta", 2)

	s.NoError(s.Client.Destroy(PK(a)))
	n, err := s.Client.Length(nil)
	if s.NoError(err) {
		s.Equal(1, n)
	}

	// Deleting again is not an error
	s.NoError(s.Client.Destroy(PK(a)))
	n, err = s.Client.Length(nil)
	if s.NoError(err) {
		s.Equal(1, n)
	}

	err = s.Client.Destroy()
	s.HTTPError(http.StatusBadRequest, err)
}

// TestLength counts with and without lookups.
func (s *Suite) TestLength() {
	for i, title := range []string{"alpha", "beta", "gamma", "delta"} {
		s.Create(title, i)
	}
	for _, c := range []struct {
		Query  url.Values
		Expect int
	}{
		{nil, 4},
		{url.Values{"title": {"beta"}}, 1},
		{url.Values{"title__exact": {"beta"}}, 1},
		{url.Values{"rank__gte": {"2"}}, 2},
		{url.Values{"rank__lt": {"2"}}, 2},
		{url.Values{"rank__gt": {"0"}, "rank__lte": {"2"}}, 2},
		{url.Values{"rank__in": {"0,3"}}, 2},
		{url.Values{"title": {"nobody"}}, 0},
	} {
		n, err := s.Client.Length(c.Query)
		if s.NoError(err, c.Query.Encode()) {
			s.Equal(c.Expect, n, c.Query.Encode())
		}
	}
}

// TestBadLookups sends lookups the store cannot answer.
func (s *Suite) TestBadLookups() {
	s.Create("alpha", 1)
	for _, q := range []url.Values{
		{"nope": {"1"}},
		{"rank__frobnicate": {"1"}},
		{"rank": {"many"}},
	} {
		_, err := s.Client.Length(q)
		s.HTTPError(http.StatusBadRequest, err)
		_, err = s.Client.List(q)
		s.HTTPError(http.StatusBadRequest, err)
	}
}

// TestList orders and pages through objects.
func (s *Suite) TestList() {
	for i := 0; i < 7; i++ {
		s.Create(strings.Repeat("x", i+1), i)
	}

	objs, err := s.Client.List(url.Values{"ordering": {"-rank"}})
	if s.NoError(err) {
		s.Equal([]int64{6, 5, 4, 3, 2}, Ranks(objs))
	}

	objs, err = s.Client.List(url.Values{"ordering": {"rank"}, "offset": {"1"}, "limit": {"2"}})
	if s.NoError(err) {
		s.Equal([]int64{1, 2}, Ranks(objs))
	}

	objs, err = s.Client.List(url.Values{"ordering": {"rank"}, "start": {"2"}, "end": {"5"}})
	if s.NoError(err) {
		s.Equal([]int64{2, 3, 4}, Ranks(objs))
	}

	// The limit never exceeds the resource's maximum
	objs, err = s.Client.List(url.Values{"ordering": {"rank"}, "limit": {"100"}})
	if s.NoError(err) {
		s.Equal([]int64{0, 1, 2, 3, 4}, Ranks(objs))
	}

	objs, err = s.Client.List(url.Values{"ordering": {"rank"}, "rank__gte": {"5"}})
	if s.NoError(err) {
		s.Equal([]int64{5, 6}, Ranks(objs))
	}

	objs, err = s.Client.List(url.Values{"ordering": {"rank"}, "offset": {"10"}})
	if s.NoError(err) {
		s.Empty(objs)
	}
}

// TestListBadParameters sends orderings and pages the resource
// refuses.
func (s *Suite) TestListBadParameters() {
	for _, q := range []url.Values{
		{"ordering": {"rank,title"}},
		{"ordering": {"title__rank"}},
		{"limit": {"lots"}},
		{"offset": {"-1"}},
	} {
		_, err := s.Client.List(q)
		s.HTTPError(http.StatusBadRequest, err)
	}
}

// TestMeta describes the resource's form.
func (s *Suite) TestMeta() {
	meta, err := s.Client.Meta()
	if !s.NoError(err) {
		return
	}
	s.Equal(s.Model.Name+"Form", meta["formName"])
	fields, _ := meta["fields"].([]interface{})
	var keys []string
	for _, f := range fields {
		if field, ok := f.(map[string]interface{}); ok {
			keys = append(keys, field["key"].(string))
		}
	}
	s.Equal([]string{"title", "rank"}, keys)
}

// TestFormats asks for other response formats.
func (s *Suite) TestFormats() {
	s.Create("alpha", 1)
	s.Create("beta", 2)

	status, ctype, body := s.Raw("GET", "length/?format=yaml", "", "")
	s.Equal(http.StatusOK, status)
	s.True(strings.HasPrefix(ctype, "text/x-yaml"), ctype)
	s.Equal("2\n", body)

	status, ctype, body = s.Raw("GET", "list/?format=xml&ordering=rank", "", "")
	s.Equal(http.StatusOK, status)
	s.True(strings.HasPrefix(ctype, "text/xml"), ctype)
	s.Contains(body, "alpha")
}

// TestMethods sends requests no operation handles.
func (s *Suite) TestMethods() {
	status, _, _ := s.Raw("PATCH", "", "", "")
	s.Equal(http.StatusMethodNotAllowed, status)

	status, _, _ = s.Raw("POST", "length/", "application/json", `{}`)
	s.Equal(http.StatusMethodNotAllowed, status)

	status, _, _ = s.Raw("HEAD", "length/", "", "")
	s.Equal(http.StatusOK, status)
}
