// Command rpcserver accepts connections and, for each one, exports a
// fresh Greeter stub as that endpoint's root object, a minimal,
// out-of-band bootstrap in the style the spec leaves to the application
// (see examples.Greeter and package rpc's bootstrap note).
package main

import (
	"net"

	log "github.com/sirupsen/logrus"

	rpc "github.com/stanford-oval/transparent-rpc"
	"github.com/stanford-oval/transparent-rpc/config"
	"github.com/stanford-oval/transparent-rpc/examples"
	"github.com/stanford-oval/transparent-rpc/wire"
)

func main() {
	cfg := config.Get()
	wire.UseSnappy = cfg.UseSnappy

	logger, err := rpc.NewLogger(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Fatal("invalid log level")
	}

	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		logger.WithError(err).Fatal("listen failed")
	}
	logger.WithField("addr", cfg.Addr).Info("rpcserver listening")

	for {
		conn, err := lis.Accept()
		if err != nil {
			logger.WithError(err).Error("accept failed")
			continue
		}
		go serve(conn, logger)
	}
}

func serve(conn net.Conn, logger *log.Logger) {
	entry := logger.WithField("remote", conn.RemoteAddr())

	ep := rpc.NewEndpoint(rpc.NewConnTransport(conn))
	ep.SetLogger(entry)
	ep.OnClose = func(hadError bool) {
		entry.WithField("had_error", hadError).Info("connection closed")
	}

	oid, _, err := ep.AddStub(examples.NewGreeter("rpcserver"))
	if err != nil {
		entry.WithError(err).Error("failed to export root stub")
		ep.Destroy()
		return
	}
	entry.WithField("oid", oid).Info("exported root stub")

	ep.Wait()
}
