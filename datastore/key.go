// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package datastore

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/satori/go.uuid"
)

// Key identifies one entity: its kind, which is the model label, and
// a unique id.
type Key struct {
	Kind string
	ID   uuid.UUID
}

// NewKey allocates a fresh key of a kind.
func NewKey(kind string) Key {
	return Key{Kind: kind, ID: uuid.NewV4()}
}

// Encode returns the URL-safe string form of the key, which is what
// clients see as the primary key.
func (k Key) Encode() string {
	return base64.RawURLEncoding.EncodeToString([]byte(k.Kind + ":" + k.ID.String()))
}

func (k Key) String() string {
	return k.Encode()
}

// DecodeKey parses the string form of a key.
func DecodeKey(s string) (Key, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return Key{}, BadKeyError{Key: s, Reason: err.Error()}
	}
	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 || parts[0] == "" {
		return Key{}, BadKeyError{Key: s, Reason: "missing kind"}
	}
	id, err := uuid.FromString(parts[1])
	if err != nil {
		return Key{}, BadKeyError{Key: s, Reason: err.Error()}
	}
	return Key{Kind: parts[0], ID: id}, nil
}

// BadKeyError is returned for key strings that do not decode.
type BadKeyError struct {
	Key    string
	Reason string
}

func (e BadKeyError) Error() string {
	return fmt.Sprintf("Invalid string key %s. Details: %s", e.Key, e.Reason)
}

// PropertyError describes a query on a property the kind does not
// have or cannot filter on, or a value the property cannot hold.
type PropertyError struct {
	Message string
}

func (e PropertyError) Error() string {
	return e.Message
}

// BadFilterError describes a filter with an unknown operator.
type BadFilterError struct {
	Filter string
	Reason string
}

func (e BadFilterError) Error() string {
	return fmt.Sprintf("invalid filter: %s.", e.Reason)
}

// ErrNoSuchEntity is returned when a single entity was asked for and
// none matched.
type ErrNoSuchEntity struct {
	Key string
}

func (e ErrNoSuchEntity) Error() string {
	return fmt.Sprintf("No entity with key %s", e.Key)
}
