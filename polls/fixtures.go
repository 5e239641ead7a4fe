// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package polls

import (
	"time"

	"github.com/diffeo/go-modelrest/model"
	"github.com/diffeo/go-modelrest/sqlstore"
)

// LoadFixtures stores the sample data.  In an empty database the
// first poll, "What color are your socks?", gets primary key 1.
func LoadFixtures(store *sqlstore.Store) error {
	published := time.Date(2010, time.March, 1, 12, 0, 0, 0, time.UTC)

	author := model.NewObject(Author)
	author.Set("name", "Ann")
	if err := store.Insert(author); err != nil {
		return err
	}

	for _, p := range []struct {
		question, slug string
		answers        []string
	}{
		{"What color are your socks?", "sock-color", []string{"Black", "White", "Argyle"}},
		{"Is this thing on?", "thing-on", []string{"Yes", "No"}},
	} {
		poll := model.NewObject(Poll)
		poll.Set("question", p.question)
		poll.Set("slug", p.slug)
		poll.Set("author", author.PK)
		poll.Set("pub_date", published)
		if err := store.Insert(poll); err != nil {
			return err
		}
		for _, answer := range p.answers {
			choice := model.NewObject(Choice)
			choice.Set("poll", poll.PK)
			choice.Set("answer", answer)
			choice.Set("votes", int64(0))
			if err := store.Insert(choice); err != nil {
				return err
			}
		}
		published = published.Add(24 * time.Hour)
	}
	return nil
}
