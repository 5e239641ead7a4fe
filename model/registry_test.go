// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package model

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func testApps() (*App, *App) {
	user := &Model{Name: "User", Fields: []*Field{
		{Name: "username", Class: "CharField", MaxLength: 30, Unique: true},
	}}
	poll := &Model{Name: "Poll", Fields: []*Field{
		{Name: "question", Class: "CharField", MaxLength: 255},
		{Name: "author", Class: "ForeignKey", Related: "auth.User", Null: true, Blank: true},
		{Name: "pub_date", Class: "DateTimeField"},
	}}
	choice := &Model{Name: "Choice", Fields: []*Field{
		{Name: "poll", Class: "ForeignKey", Related: "Poll"},
		{Name: "votes", Class: "IntegerField", Default: int64(0)},
	}}
	return &App{Label: "auth", Models: []*Model{user}},
		&App{Label: "polls", Models: []*Model{poll, choice}}
}

func TestRegistryPrepare(t *testing.T) {
	auth, polls := testApps()
	r := NewRegistry()
	require.NoError(t, r.Register(auth, polls))
	require.NoError(t, r.Resolve())

	poll, err := r.Lookup("polls.Poll")
	require.NoError(t, err)
	assert.Equal(t, "polls_poll", poll.Table)
	assert.Equal(t, "poll", poll.VerboseName)
	assert.Equal(t, "polls", poll.VerboseNamePlural)
	assert.Equal(t, "polls.poll", poll.ObjectLabel())

	pk := poll.PK()
	if assert.NotNil(t, pk) {
		assert.Equal(t, "id", pk.Name)
		assert.Equal(t, "AutoField", pk.Class)
	}

	author, ok := poll.Field("author")
	require.True(t, ok)
	assert.Equal(t, "author_id", author.Column)
	assert.Equal(t, "User", author.RelatedModel().Name)

	pubDate, _ := poll.Field("pub_date")
	assert.Equal(t, "pub date", pubDate.VerboseName)
	assert.Equal(t, DateTimeKind, pubDate.Kind())

	related := poll.RelatedObjects()
	if assert.Len(t, related, 1) {
		assert.Equal(t, "choice_set", related[0].AccessorName())
		assert.Equal(t, "ForeignKey", related[0].Class())
	}
}

func TestRegistryErrors(t *testing.T) {
	auth, polls := testApps()
	r := NewRegistry()
	require.NoError(t, r.Register(polls))
	assert.Error(t, r.Register(polls))

	// auth is not registered, so the author field cannot resolve
	err := r.Resolve()
	assert.Equal(t, ErrUnknownApp{Label: "auth"}, err)

	require.NoError(t, r.Register(auth))
	assert.NoError(t, r.Resolve())

	_, err = r.Model("polls", "Answer")
	assert.EqualError(t, err, "Unknown model: polls.Answer")
	_, err = r.App("blog")
	assert.EqualError(t, err, "Unknown application: blog")
}

func TestDatastoreModel(t *testing.T) {
	greeting := &Model{Name: "Greeting", Datastore: true, Fields: []*Field{
		{Name: "content", Class: "StringProperty", Multiline: true},
		{Name: "notes", Class: "TextProperty"},
		{Name: "date", Class: "DateTimeProperty", AutoNowAdd: true},
	}}
	r := NewRegistry()
	require.NoError(t, r.Register(&App{Label: "guestbook", Models: []*Model{greeting}}))
	assert.Nil(t, greeting.PK())
	content, _ := greeting.Field("content")
	assert.Equal(t, "", content.VerboseName)
	assert.True(t, content.IsIndexed())
	assert.False(t, content.IsRequired())
	notes, _ := greeting.Field("notes")
	assert.False(t, notes.IsIndexed())
	date, _ := greeting.Field("date")
	assert.False(t, date.IsEditable())
}

func TestCoerce(t *testing.T) {
	intField := &Field{Name: "votes", Class: "IntegerField"}
	v, err := intField.Coerce("12")
	assert.NoError(t, err)
	assert.Equal(t, int64(12), v)
	v, err = intField.Coerce(float64(3))
	assert.NoError(t, err)
	assert.Equal(t, int64(3), v)
	_, err = intField.Coerce("twelve")
	assert.Error(t, err)

	boolField := &Field{Name: "b", Class: "BooleanField"}
	v, err = boolField.Coerce(int64(1))
	assert.NoError(t, err)
	assert.Equal(t, true, v)

	dateField := &Field{Name: "d", Class: "DateTimeField"}
	v, err = dateField.Coerce("2009-06-01 12:30:00")
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2009, 6, 1, 12, 30, 0, 0, time.UTC), v)

	v, err = dateField.Coerce(nil)
	assert.NoError(t, err)
	assert.Nil(t, v)
}
