// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package datastore keeps datastore models as entities in a bbolt
// database.
//
// Each kind, named by its model label, is one bucket.  Entities are
// CBOR records keyed by a random id; clients see the encoded Key as
// the object's primary key.  Queries filter on "property op" pairs
// with the operators = < <= > >= != and IN, and the special property
// __key__ compares keys, which is what paging by key needs.
package datastore

import (
	"time"

	"github.com/diffeo/go-modelrest/model"
	bolt "go.etcd.io/bbolt"
)

// Store is an entity datastore for the models of one registry.
type Store struct {
	db *bolt.DB

	// Models is the registry entity kinds are looked up in.
	Models *model.Registry
}

// Open opens or creates the database file at path.
func Open(path string, models *model.Registry) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	return &Store{db: db, Models: models}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func checkKind(m *model.Model, key Key) error {
	if key.Kind != m.Label() {
		return BadKeyError{Key: key.Encode(), Reason: "key is for kind " + key.Kind + ", not " + m.Label()}
	}
	return nil
}

// Put stores obj.  An object with no primary key gets a new one.
func (s *Store) Put(obj *model.Object) error {
	m := obj.Model
	if !m.Datastore {
		return PropertyError{Message: m.Label() + " is not a datastore model"}
	}
	var key Key
	if obj.PK == nil {
		key = NewKey(m.Label())
	} else {
		var err error
		if key, err = DecodeKey(model.ToString(obj.PK)); err != nil {
			return err
		}
		if err = checkKind(m, key); err != nil {
			return err
		}
	}
	data, err := encodeEntity(obj)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(key.Kind))
		if err != nil {
			return err
		}
		return bucket.Put(key.ID.Bytes(), data)
	})
	if err == nil {
		obj.PK = key.Encode()
	}
	return err
}

// Get fetches one entity of m by its encoded key.
func (s *Store) Get(m *model.Model, pk string) (*model.Object, error) {
	key, err := DecodeKey(pk)
	if err != nil {
		return nil, err
	}
	if err = checkKind(m, key); err != nil {
		return nil, err
	}
	var obj *model.Object
	err = s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(key.Kind))
		if bucket == nil {
			return nil
		}
		data := bucket.Get(key.ID.Bytes())
		if data == nil {
			return nil
		}
		var err error
		obj, err = decodeEntity(m, key, data)
		return err
	})
	if err == nil && obj == nil {
		err = ErrNoSuchEntity{Key: pk}
	}
	return obj, err
}

// Delete removes the entities with the given encoded keys.  Keys
// that name nothing are ignored.
func (s *Store) Delete(pks ...string) error {
	keys := make([]Key, len(pks))
	for i, pk := range pks {
		key, err := DecodeKey(pk)
		if err != nil {
			return err
		}
		keys[i] = key
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, key := range keys {
			bucket := tx.Bucket([]byte(key.Kind))
			if bucket == nil {
				continue
			}
			if err := bucket.Delete(key.ID.Bytes()); err != nil {
				return err
			}
		}
		return nil
	})
}

// Query returns a query over every entity of m, in key order.
func (s *Store) Query(m *model.Model) *Query {
	return &Query{store: s, model: m}
}

// Exists reports whether m has an entity with the encoded key pk.
func (s *Store) Exists(m *model.Model, pk interface{}) (bool, error) {
	_, err := s.Get(m, model.ToString(pk))
	switch err.(type) {
	case nil:
		return true, nil
	case ErrNoSuchEntity, BadKeyError:
		return false, nil
	}
	return false, err
}

// Count returns the number of entities of m whose properties equal
// the values in match, leaving out the entity with key exclude unless
// that is nil.
func (s *Store) Count(m *model.Model, match map[string]interface{}, exclude interface{}) (int, error) {
	q := s.Query(m)
	var err error
	for name, value := range match {
		if q, err = q.Filter(name+" =", value); err != nil {
			return 0, err
		}
	}
	if exclude != nil {
		if q, err = q.Filter("__key__ !=", exclude); err != nil {
			return 0, err
		}
	}
	return q.Count(0)
}

// Choices lists every entity of m, labeled by its string form.
func (s *Store) Choices(m *model.Model) ([]model.Choice, error) {
	objs, err := s.Query(m).Fetch(-1, 0)
	if err != nil {
		return nil, err
	}
	choices := make([]model.Choice, len(objs))
	for i, obj := range objs {
		choices[i] = model.Choice{Value: obj.PK, Label: obj.String()}
	}
	return choices, nil
}
