package node

import (
	"net/http"

	"github.com/lnxk/noisexk/internal/transport"
)

// startWSListener runs an HTTP server that upgrades every request on "/" to
// a WebSocket stream and treats it exactly like an inbound TCP connection:
// an alternate carrier for the same Noise-XK byte stream, for deployments
// where only HTTP egress is reachable.
func (n *Node) startWSListener(addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := transport.UpgradeWS(w, r)
		if err != nil {
			n.log.Debug("websocket upgrade failed", "err", err)
			return
		}
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.handleInbound(conn)
		}()
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			n.log.Error("websocket listener stopped", "err", err)
		}
	}()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		<-n.ctx.Done()
		srv.Close()
	}()
}
