// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package polls is a small relational application: polls, the
// choices voters pick from, and the people who wrote them.  Importing
// it adds the application to model.Default and registers a hook that
// serves its models from the site's relational store.
//
//     import _ "github.com/diffeo/go-modelrest/polls"
package polls

import (
	"github.com/diffeo/go-modelrest/backend"
	"github.com/diffeo/go-modelrest/model"
	"github.com/diffeo/go-modelrest/restapi"
	"github.com/diffeo/go-modelrest/sqlresource"
	"github.com/diffeo/go-modelrest/sqlstore"
)

// Author writes polls.
var Author = &model.Model{
	Name: "Author",
	Fields: []*model.Field{
		{Name: "name", Class: "CharField", MaxLength: 100},
	},
}

// Poll is one question.
var Poll = &model.Model{
	Name: "Poll",
	Fields: []*model.Field{
		{Name: "question", Class: "CharField", MaxLength: 255},
		{Name: "slug", Class: "SlugField", Unique: true},
		{Name: "author", Class: "ForeignKey", Related: "Author", Null: true, Blank: true},
		{Name: "pub_date", Class: "DateTimeField", AutoNowAdd: true, VerboseName: "date published"},
	},
}

// Choice is one possible answer to a poll.
var Choice = &model.Model{
	Name: "Choice",
	Fields: []*model.Field{
		{Name: "poll", Class: "ForeignKey", Related: "Poll"},
		{Name: "answer", Class: "CharField", MaxLength: 255},
		{Name: "votes", Class: "IntegerField", Blank: true, Default: int64(0)},
	},
}

// App is the polls application.
var App = &model.App{
	Label:  "polls",
	Models: []*model.Model{Author, Poll, Choice},
}

func init() {
	if err := model.Register(App); err != nil {
		panic(err)
	}
	restapi.RegisterHook(App.Label, Hook)
}

// Hook registers the application's resources with a site whose
// stores were attached with backend.Attach.
func Hook(site *restapi.Site) error {
	store := backend.For(site).SQL
	if store == nil {
		return backend.ErrNoStore
	}
	return Register(site, store)
}

// Register serves every polls model from store.
func Register(site *restapi.Site, store *sqlstore.Store) error {
	for _, m := range App.Models {
		_, err := site.Register(sqlresource.Constructor(store), restapi.Options{Model: m})
		if err != nil {
			return err
		}
	}
	return nil
}
