package rpc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOIDGeneratorMonotonicAndUnique(t *testing.T) {
	g := newOIDGenerator()

	seen := make(map[OID]bool)
	var prev OID
	for i := 0; i < 100; i++ {
		oid := g.next()
		assert.False(t, seen[oid], "oid %q reused", oid)
		seen[oid] = true
		assert.NotEqual(t, prev, oid)
		prev = oid
	}
}

func TestOIDGeneratorsDoNotShareSocketSeq(t *testing.T) {
	a := newOIDGenerator().next()
	b := newOIDGenerator().next()

	// <host>-<pid>:<socketSeq>:<counter>: two fresh generators get
	// distinct socketSeq components even though both counters start at 1.
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, strings.Count(string(a), ":"))
}
