package feed

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"
)

// WriteTimeout bounds a single write to a TCP client.
const WriteTimeout = 2 * time.Second

// ServeTCP accepts clients on ln and streams newline-delimited JSON
// messages to each until ctx is cancelled. Clients never send anything.
func (h *Hub) ServeTCP(ctx context.Context, ln net.Listener) error {
	diagf("tcp feed listening on %s", ln.Addr())
	var wg sync.WaitGroup
	defer wg.Wait()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.serveConn(ctx, conn)
		}()
	}
}

var newline = []byte{'\n'}

func (h *Hub) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	id, ch := h.Subscribe()
	defer h.Unsubscribe(id)
	diagf("tcp client %s connected from %s", id, conn.RemoteAddr())

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(WriteTimeout)); err != nil {
				return
			}
			// msg is shared with every subscriber and must not be appended to.
			bufs := net.Buffers{msg, newline}
			if _, err := bufs.WriteTo(conn); err != nil {
				diagf("tcp client %s disconnected: %v", id, err)
				return
			}
		}
	}
}
