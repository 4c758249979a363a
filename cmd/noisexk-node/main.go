package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lnxk/noisexk/internal/config"
	"github.com/lnxk/noisexk/internal/node"
	"github.com/lnxk/noisexk/internal/peer"
)

var version = "dev"

func main() {
	var (
		configPath   = flag.String("config", "", "path to node config file")
		identityPath = flag.String("identity", "", "override identity key path")
		listenPort   = flag.Int("port", 0, "override listen port")
		directory    = flag.String("directory", "", "override directory service URL")
		peerFlag     = flag.String("peer", "", "static peer(s): pubkey@host:port,pubkey@host:port")
		logLevel     = flag.String("log-level", "", "log level: debug, info, warn, error")
		showVersion  = flag.Bool("version", false, "show version and exit")
		showIdentity = flag.Bool("show-identity", false, "show identity and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("noisexk-node %s\n", version)
		os.Exit(0)
	}

	var cfg *config.NodeConfig
	if *configPath != "" {
		var err error
		cfg, err = config.LoadNodeConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg = config.DefaultNodeConfig()
	}

	if *identityPath != "" {
		cfg.IdentityPath = *identityPath
	}
	if *listenPort != 0 {
		cfg.ListenPort = *listenPort
	}
	if *directory != "" {
		cfg.Directory = *directory
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *peerFlag != "" {
		for _, spec := range strings.Split(*peerFlag, ",") {
			parts := strings.SplitN(spec, "@", 2)
			if len(parts) != 2 {
				fmt.Fprintf(os.Stderr, "invalid peer format, expected pubkey@host:port: %s\n", spec)
				os.Exit(1)
			}
			cfg.Peers = append(cfg.Peers, config.PeerRef{StaticPubKey: parts[0], Address: parts[1]})
		}
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevelFromString(cfg.LogLevel)}))

	stdout := bufio.NewWriter(os.Stdout)
	defer stdout.Flush()

	n, err := node.New(cfg, func(p *peer.Peer, payload []byte) {
		if len(payload) == 0 {
			return // keepalive
		}
		fmt.Fprintf(stdout, "[%s] %s\n", p.PubKeyHex()[:16], payload)
		stdout.Flush()
	}, log)
	if err != nil {
		log.Error("create node failed", "err", err)
		os.Exit(1)
	}

	if *showIdentity {
		fmt.Printf("Public Key: %s\n", n.Identity().PublicKeyHex())
		os.Exit(0)
	}

	if err := n.Start(); err != nil {
		log.Error("start node failed", "err", err)
		os.Exit(1)
	}

	go pipeStdin(n, log)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("received signal, shutting down", "signal", sig)

	n.Stop()
}

// pipeStdin reads one line at a time from stdin and sends each as an
// application record to every connected peer, the other half of the
// record-layer pipe (inbound records are printed by the onMsg handler
// passed to node.New).
func pipeStdin(n *node.Node, log *slog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		msg := append([]byte(nil), line...)
		peers := n.Peers().ConnectedPeers()
		if len(peers) == 0 {
			log.Warn("no connected peers, dropping stdin message")
			continue
		}
		for _, p := range peers {
			if err := p.SendMessage(msg); err != nil {
				log.Error("send stdin message failed", "peer", p.PubKeyHex(), "err", err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		log.Error("stdin read failed", "err", err)
	}
}

func logLevelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
