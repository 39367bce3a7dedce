package rpc

import (
	"fmt"
	"os"
	"sync/atomic"
)

// OID is an opaque object identifier, unique within the endpoint that
// minted it for the lifetime of that endpoint. OIDs are never reused.
type OID string

var (
	processHost = hostname()
	processPid  = os.Getpid()
	socketSeq   int64
)

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown-host"
	}
	return h
}

// oidGenerator mints OIDs of the form <host>-<pid>:<socketSeq>:<counter>
// for a single endpoint. socketSeq is fixed at construction time and
// counter increases monotonically for the life of the endpoint.
type oidGenerator struct {
	socketSeq int64
	counter   atomic.Int64
}

func newOIDGenerator() *oidGenerator {
	return &oidGenerator{socketSeq: atomic.AddInt64(&socketSeq, 1)}
}

func (g *oidGenerator) next() OID {
	n := g.counter.Add(1)
	return OID(fmt.Sprintf("%s-%d:%d:%d", processHost, processPid, g.socketSeq, n))
}
