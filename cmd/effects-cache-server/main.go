// Command effects-cache-server serves a shared effects-metadata cache over
// HTTP/3 so concurrent compilations can exchange finalized method
// aggregates. It can preload a snapshot at startup and persist one on
// shutdown.
package main

import (
	"crypto/tls"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/vela-lang/vela/internal/metacache"
	"github.com/vela-lang/vela/internal/remotecache"
)

func main() {
	var (
		addr     string
		certFile string
		keyFile  string
		snapshot string
	)

	flag.StringVar(&addr, "addr", ":4433", "UDP address to serve HTTP/3 on")
	flag.StringVar(&certFile, "cert", "", "TLS certificate file (required)")
	flag.StringVar(&keyFile, "key", "", "TLS key file (required)")
	flag.StringVar(&snapshot, "snapshot", "", "snapshot file to preload and persist on shutdown")
	flag.Parse()

	if certFile == "" || keyFile == "" {
		log.Fatal("effects-cache-server: -cert and -key are required")
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		log.Fatalf("effects-cache-server: load key pair: %v", err)
	}

	cache := metacache.New()

	if snapshot != "" {
		loaded, err := metacache.Load(snapshot)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				log.Fatalf("effects-cache-server: preload snapshot: %v", err)
			}

			log.Printf("effects-cache-server: no snapshot at %s, starting empty", snapshot)
		} else {
			cache = loaded
			log.Printf("effects-cache-server: preloaded %d entries from %s", cache.Len(), snapshot)
		}
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	srv := remotecache.NewServer(addr, tlsCfg, cache)

	bound, err := srv.Start()
	if err != nil {
		log.Fatalf("effects-cache-server: start: %v", err)
	}

	log.Printf("effects-cache-server: serving on %s", bound)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Print("effects-cache-server: shutting down")

	if err := srv.Stop(); err != nil {
		log.Printf("effects-cache-server: stop: %v", err)
	}

	if snapshot != "" {
		if err := cache.Save(snapshot); err != nil {
			log.Printf("effects-cache-server: persist snapshot: %v", err)
		} else {
			log.Printf("effects-cache-server: persisted %d entries to %s", cache.Len(), snapshot)
		}
	}
}
