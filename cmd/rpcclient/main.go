// Command rpcclient dials rpcserver, waits for its root stub's
// new-object announcement, and drives the resulting proxy: a getter call
// and a method call that itself returns a proxy (spec §8 scenarios a/b).
package main

import (
	"context"
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	rpc "github.com/stanford-oval/transparent-rpc"
	"github.com/stanford-oval/transparent-rpc/config"
	"github.com/stanford-oval/transparent-rpc/wire"
)

func main() {
	cfg := config.Get()
	wire.UseSnappy = cfg.UseSnappy

	logger, err := rpc.NewLogger(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Fatal("invalid log level")
	}

	conn, err := net.Dial("tcp", cfg.Addr)
	if err != nil {
		logger.WithError(err).Fatal("dial failed")
	}

	ep := rpc.NewEndpoint(rpc.NewConnTransport(conn))
	ep.SetLogger(logger.WithField("component", "rpcclient"))

	rootCh := make(chan *rpc.Proxy, 1)
	ep.OnNewObject = func(oid rpc.OID, p *rpc.Proxy) {
		select {
		case rootCh <- p:
		default:
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var root *rpc.Proxy
	select {
	case root = <-rootCh:
	case <-ctx.Done():
		logger.Fatal("timed out waiting for server's root stub")
	}

	name, err := root.Get(ctx, "name")
	if err != nil {
		logger.WithError(err).Fatal("get name failed")
	}
	logger.WithField("name", name).Info("server introduced itself")

	reply, err := root.Call(ctx, "greet", "World")
	if err != nil {
		logger.WithError(err).Fatal("greet failed")
	}

	friend, ok := reply.(*rpc.Proxy)
	if !ok {
		logger.Fatalf("expected greet to return a proxy, got %T", reply)
	}

	greeting, err := friend.Get(ctx, "greeting")
	if err != nil {
		logger.WithError(err).Fatal("get greeting failed")
	}
	logger.WithField("greeting", greeting).Info("received greeting")

	if _, err := root.Call(ctx, "leave"); err != nil {
		logger.WithError(err).Warn("leave failed")
	}

	if err := ep.End(); err != nil {
		logger.WithError(err).Warn("error closing endpoint")
	}
}
