package address

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

var ErrInvalidAddress = errors.New("invalid public address")

// Address is a resolved host and port advertised to peers.
type Address struct {
	Host string
	Port int
}

func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// Resolver looks up host names. *net.Resolver satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Resolve turns a configured public address into the address to advertise.
// An empty public address falls back to the bind host and port. A bare host
// takes the bind port. Hosts that are neither IP literals nor resolvable
// are rejected. Names resolving to a loopback address are advertised as
// that address.
func Resolve(ctx context.Context, publicAddress string, bindHost string, bindPort int, resolver Resolver) (Address, error) {
	publicAddress = strings.TrimSpace(publicAddress)
	if publicAddress == "" {
		return Address{Host: bindHost, Port: bindPort}, nil
	}

	host, port, err := splitHostPort(publicAddress, bindPort)
	if err != nil {
		return Address{}, err
	}

	if net.ParseIP(host) == nil {
		if resolver == nil {
			resolver = net.DefaultResolver
		}
		addrs, err := resolver.LookupHost(ctx, host)
		if err != nil {
			return Address{}, fmt.Errorf("%w: cannot resolve %q: %v", ErrInvalidAddress, host, err)
		}
		if ip := loopback(addrs); ip != "" {
			host = ip
		}
	}

	return Address{Host: host, Port: port}, nil
}

func splitHostPort(s string, defaultPort int) (string, int, error) {
	if bare := strings.Trim(s, "[]"); net.ParseIP(bare) != nil {
		return bare, defaultPort, nil
	}

	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		var addrErr *net.AddrError
		if errors.As(err, &addrErr) && addrErr.Err == "missing port in address" {
			return strings.Trim(s, "[]"), defaultPort, nil
		}
		return "", 0, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}

	if host == "" {
		return "", 0, fmt.Errorf("%w: %q has no host", ErrInvalidAddress, s)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("%w: %q has an invalid port", ErrInvalidAddress, s)
	}

	return host, port, nil
}

// loopback returns the first loopback address in addrs, preferring IPv4.
func loopback(addrs []string) string {
	var v6 string
	for _, a := range addrs {
		ip := net.ParseIP(a)
		if ip == nil || !ip.IsLoopback() {
			continue
		}
		if ip.To4() != nil {
			return a
		}
		if v6 == "" {
			v6 = a
		}
	}
	return v6
}
