package osctrigger

import (
	"context"
	"errors"
	"net"

	"github.com/hypebeast/go-osc/osc"
	"golang.org/x/sync/errgroup"
)

// maxPacketSize is the largest UDP payload.
const maxPacketSize = 65535

// Server receives OSC over UDP and hands it to a Dispatcher.
type Server struct {
	addr       string
	dispatcher *Dispatcher
}

// NewServer creates a server that will listen on addr.
func NewServer(addr string, ctrl Controller) *Server {
	return &Server{
		addr:       addr,
		dispatcher: NewDispatcher(ctrl),
	}
}

// ListenAndServe listens on the configured UDP address until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	conn, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return err
	}
	s.dispatcher.log.Infof("Listening for OSC on %s", conn.LocalAddr())
	return s.Serve(ctx, conn)
}

// Serve reads packets from conn until ctx is cancelled or the connection fails. conn is closed on return.
// Packets are dispatched one at a time in arrival order; malformed packets are logged and skipped.
func (s *Server) Serve(ctx context.Context, conn net.PacketConn) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		buf := make([]byte, maxPacketSize)
		for {
			n, _, err := conn.ReadFrom(buf)
			if err != nil {
				return err
			}
			packet, err := osc.ParsePacket(string(buf[:n]))
			if err != nil {
				s.dispatcher.log.Warnf("Dropping malformed OSC packet: %v", err)
				continue
			}
			s.dispatcher.Dispatch(packet)
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		conn.Close()
		return nil
	})

	err := g.Wait()
	if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
