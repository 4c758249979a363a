package node

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lnxk/noisexk/internal/protocol"
)

// directoryRefreshInterval is how often a running node re-announces itself
// to its configured directory service, refreshing the entry's LastSeen.
const directoryRefreshInterval = 60 * time.Second

// registerWithDirectory announces this node's static key and dial address
// to the directory service configured in n.config.Directory. It is
// best-effort: the directory is an external rendezvous collaborator
// (spec.md §6), not part of the transport core, so a failure here never
// fails Start.
func (n *Node) registerWithDirectory(publicAddr string) {
	if n.config.Directory == "" {
		return
	}

	announce := func() {
		body := protocol.RegisterNodeRequest{
			PublicKey: n.identity.PublicKeyHex(),
			Address:   publicAddr,
		}
		if err := postJSON(n.config.Directory+"/api/v1/nodes", body); err != nil {
			n.log.Debug("directory registration failed", "err", err)
			return
		}
		n.log.Debug("registered with directory", "directory", n.config.Directory)
	}

	announce()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ticker := time.NewTicker(directoryRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-n.ctx.Done():
				return
			case <-ticker.C:
				announce()
			}
		}
	}()
}

func postJSON(url string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("directory returned HTTP %d", resp.StatusCode)
	}
	return nil
}
