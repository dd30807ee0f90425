package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObservers(t *testing.T) {
	a := NewSession(WithSessionID("a"))
	b := NewSession(WithSessionID("b"))
	c := NewSession(WithSessionID("c"))
	connected := []*Session{a, b, c}

	o := newObservers()
	o.add("g1", "c")
	o.add("g1", "a")
	o.add("g2", "a")

	assert.Equal(t, []*Session{a, c}, o.filter("g1", connected), "connect order is kept")
	assert.Empty(t, o.filter("g3", connected))
	assert.True(t, o.observes("g2", "a"))

	assert.Equal(t, 1, o.remove("g1", "c"))
	assert.Equal(t, 1, o.remove("g1", "b"), "removing a stranger leaves a")
}

func TestObserversRemoveLast(t *testing.T) {
	o := newObservers()
	o.add("g1", "a")

	assert.Equal(t, 0, o.remove("g1", "a"))
	assert.NotContains(t, o.guilds, "g1")
	assert.Equal(t, 0, o.remove("g404", "a"))
}

func TestObserversDrop(t *testing.T) {
	o := newObservers()
	o.add("g1", "a")
	o.add("g1", "b")
	o.add("g2", "a")

	o.drop("a")

	assert.False(t, o.observes("g1", "a"))
	assert.True(t, o.observes("g1", "b"))
	assert.NotContains(t, o.guilds, "g2")
}
