// Command sshping connects to an SSH server, completes the transport
// handshake and reports the negotiated algorithms and host key
// fingerprint. Useful for checking reachability and trust state without
// authenticating.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/flux-johnm/net-ssh/config"
	"github.com/flux-johnm/net-ssh/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sshping: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	host := flag.String("host", "", "server to connect to (required)")
	port := flag.Int("port", 0, "server port (overrides config)")
	configPath := flag.String("config", "", "path to a TOML configuration file")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	if *host == "" {
		flag.Usage()
		return fmt.Errorf("-host is required")
	}

	logger := logrus.New()
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	opts.Logger = logger
	if *port != 0 {
		opts.Port = *port
	}

	session, err := transport.Open(*host, opts)
	if err != nil {
		return err
	}
	defer session.Close()

	set := session.Algorithms()
	fmt.Printf("server:      %s\n", session.ServerVersion())
	fmt.Printf("peer:        %s\n", session.PeerIdentity())
	fmt.Printf("fingerprint: %s\n", session.HostKeyFingerprint())
	fmt.Printf("kex:         %s\n", set.Kex)
	fmt.Printf("host key:    %s\n", set.HostKey)
	fmt.Printf("cipher:      %s / %s\n", set.CipherClientToServer, set.CipherServerToClient)
	fmt.Printf("mac:         %s / %s\n", set.MACClientToServer, set.MACServerToClient)
	fmt.Printf("compression: %s / %s\n", set.CompressionClientServer, set.CompressionServerClient)
	return nil
}
