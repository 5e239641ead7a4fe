// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package guestbook is a one-model datastore application.  Importing
// it adds the application to model.Default and registers a hook that
// serves greetings from the site's entity store.  Users who are
// logged in only see, and sign, their own greetings.
package guestbook

import (
	"github.com/diffeo/go-modelrest/backend"
	"github.com/diffeo/go-modelrest/datastore"
	"github.com/diffeo/go-modelrest/dsresource"
	"github.com/diffeo/go-modelrest/model"
	"github.com/diffeo/go-modelrest/restapi"
)

// Greeting is one signed message.
var Greeting = &model.Model{
	Name:      "Greeting",
	Datastore: true,
	Fields: []*model.Field{
		{Name: "author", Class: "UserProperty"},
		{Name: "content", Class: "TextProperty", Required: true, Multiline: true},
		{Name: "date", Class: "DateTimeProperty", AutoNowAdd: true},
	},
}

// App is the guestbook application.
var App = &model.App{
	Label:  "guestbook",
	Models: []*model.Model{Greeting},
}

func init() {
	if err := model.Register(App); err != nil {
		panic(err)
	}
	restapi.RegisterHook(App.Label, Hook)
}

// Hook registers the greeting resource with a site whose stores were
// attached with backend.Attach.
func Hook(site *restapi.Site) error {
	store := backend.For(site).Entities
	if store == nil {
		return backend.ErrNoStore
	}
	return Register(site, store)
}

// Register serves greetings from store.
func Register(site *restapi.Site, store *datastore.Store) error {
	_, err := site.Register(dsresource.Constructor(store), restapi.Options{
		Model:         Greeting,
		UserFieldName: "author",
	})
	return err
}
