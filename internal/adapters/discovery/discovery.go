// Package discovery finds relays on the local network over mDNS.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/okian/ensemble/pkg/logger"
)

// Service and domain the relay registers under.
const (
	Service = "_ensemble._tcp"
	Domain  = "local."
	wsPath  = "/ws"
)

var (
	// ErrNotFound is returned when no relay answered in time.
	ErrNotFound = errors.New("no relay found")
	// ErrRegister wraps mDNS registration failures.
	ErrRegister = errors.New("mdns register failed")
)

// Advertise registers the relay listening on port until ctx ends.
func Advertise(ctx context.Context, instance string, port int) error {
	server, err := zeroconf.Register(instance, Service, Domain, port, []string{"path=" + wsPath}, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRegister, err)
	}
	logger.Get().Named("discovery").Info(ctx, "relay advertised",
		logger.String("instance", instance),
		logger.Int("port", port),
	)
	<-ctx.Done()
	server.Shutdown()
	return nil
}

// Browse returns the websocket url of the first relay that answers
// within timeout.
func Browse(ctx context.Context, timeout time.Duration) (string, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return "", fmt.Errorf("mdns resolver: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, Service, Domain, entries); err != nil {
		return "", fmt.Errorf("mdns browse: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return "", ErrNotFound
		case entry, ok := <-entries:
			if !ok {
				return "", ErrNotFound
			}
			if url, ok := URLFor(entry); ok {
				return url, nil
			}
		}
	}
}

// URLFor builds the relay url for a resolved entry.
func URLFor(entry *zeroconf.ServiceEntry) (string, bool) {
	if entry == nil || entry.Port == 0 {
		return "", false
	}
	var ip net.IP
	switch {
	case len(entry.AddrIPv4) > 0:
		ip = entry.AddrIPv4[0]
	case len(entry.AddrIPv6) > 0:
		ip = entry.AddrIPv6[0]
	default:
		return "", false
	}
	host := net.JoinHostPort(ip.String(), strconv.Itoa(entry.Port))
	return "ws://" + host + pathOf(entry.Text), true
}

func pathOf(txt []string) string {
	for _, kv := range txt {
		if p, ok := strings.CutPrefix(kv, "path="); ok && p != "" {
			return p
		}
	}
	return wsPath
}
