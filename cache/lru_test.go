// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func Make(key string) (interface{}, error) {
	return strings.ToUpper(key), nil
}

func DoNotMake(key string) (interface{}, error) {
	return nil, assert.AnError
}

type LRUAssertions struct {
	*assert.Assertions
	LRU *LRU
}

func NewLRUAssertions(t assert.TestingT, size int) *LRUAssertions {
	return &LRUAssertions{
		assert.New(t),
		NewLRU(size),
	}
}

// GetKey fetches an item from the cache; if not present, it is added.
func (a *LRUAssertions) GetKey(key string) {
	item, err := a.LRU.Get(key, Make)
	if a.NoError(err) {
		a.Equal(strings.ToUpper(key), item)
	}
}

// GetPresent fetches an item from the cache; if not present, it
// should produce an assertion error.
func (a *LRUAssertions) GetPresent(key string) {
	item, err := a.LRU.Get(key, DoNotMake)
	if a.NoError(err) {
		a.Equal(strings.ToUpper(key), item)
	}
}

// GetError tries to fetch an item from the cache, but it should not
// exist, and the resulting error will be caught.
func (a *LRUAssertions) GetError(key string) {
	_, err := a.LRU.Get(key, DoNotMake)
	a.Error(err)
}

// LRUHas asserts that an item is in the cache.
func (a *LRUAssertions) LRUHas(key string) {
	item, present := a.LRU.Peek(key)
	if a.True(present, key) {
		a.Equal(strings.ToUpper(key), item)
	}
}

// LRUDoesNotHave asserts that no item with key is in the cache.
func (a *LRUAssertions) LRUDoesNotHave(key string) {
	_, present := a.LRU.Peek(key)
	a.False(present, key)
}

// TestLRUSimple tests minimal object presence.
func TestLRUSimple(t *testing.T) {
	a := NewLRUAssertions(t, 2)
	a.LRU.Put("sam", "SAM")

	a.LRUHas("sam")
	a.LRUDoesNotHave("horton")
	a.Equal(1, a.LRU.Len())
}

// TestLRUAutoInsert tests Get() adding absent items.
func TestLRUAutoInsert(t *testing.T) {
	a := NewLRUAssertions(t, 2)

	a.GetKey("marvin")
	a.GetKey("horton")
	a.LRUHas("marvin")
	a.LRUHas("horton")

	// Since "sam" is a third item, the oldest (marvin) should be
	// evicted
	a.GetKey("sam")
	a.LRUDoesNotHave("marvin")
	a.LRUHas("horton")
	a.LRUHas("sam")
}

func TestLRUInsertError(t *testing.T) {
	a := NewLRUAssertions(t, 2)

	a.GetKey("marvin")
	a.GetKey("horton")

	// The add function will return an error, so nothing is added
	// and nothing is evicted
	a.GetError("sam")
	a.LRUHas("marvin")
	a.LRUHas("horton")
	a.LRUDoesNotHave("sam")

	// Present items never call the fetch function
	a.GetPresent("marvin")
	a.GetPresent("horton")
}

// TestLRUOrder tests that getting an item causes it to not get evicted.
func TestLRUOrder(t *testing.T) {
	a := NewLRUAssertions(t, 2)

	a.GetKey("marvin")
	a.GetKey("horton")

	// Do an *additional* get for marvin, so he is more-recently-used
	a.GetKey("marvin")

	// Now when we add sam, horton gets pushed out
	a.GetKey("sam")
	a.LRUHas("marvin")
	a.LRUDoesNotHave("horton")
	a.LRUHas("sam")
}

// TestLRURemoval does simple tests on the Remove call.
func TestLRURemoval(t *testing.T) {
	a := NewLRUAssertions(t, 2)

	a.GetKey("marvin")
	a.LRU.Remove("marvin")
	a.LRUDoesNotHave("marvin")

	a.LRU.Remove("sam")
	a.LRUDoesNotHave("sam")

	// If we remove a more-recent thing, the older-but-present thing
	// shouldn't get evicted
	a.GetKey("marvin")
	a.GetKey("horton")
	a.LRU.Remove("horton")
	a.GetKey("sam")
	a.LRUHas("marvin")
	a.LRUDoesNotHave("horton")
	a.LRUHas("sam")
}

// TestLRUExpiry checks that items disappear after their TTL.
func TestLRUExpiry(t *testing.T) {
	clk := clock.NewMock()
	a := &LRUAssertions{assert.New(t), NewLRUWithTTL(2, time.Minute, clk)}

	a.GetKey("marvin")
	clk.Add(30 * time.Second)
	a.LRUHas("marvin")
	a.GetPresent("marvin")

	clk.Add(30 * time.Second)
	a.LRUDoesNotHave("marvin")
	a.GetError("marvin")

	// Refetching gives it a fresh lifetime
	a.GetKey("marvin")
	clk.Add(59 * time.Second)
	a.LRUHas("marvin")
}
