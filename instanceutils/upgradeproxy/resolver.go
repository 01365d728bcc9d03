package upgradeproxy

import (
	"fmt"
	"strings"
	"sync"

	"github.com/miekg/dns"

	"github.com/pluggable-systems/plugin-registry-backend/interfaces"
)

// EndpointResolver maps an instance ID onto the admin endpoints upgrades are
// delivered to. Multiple endpoints mean fallback candidates, tried in order.
type EndpointResolver interface {
	Resolve(instance interfaces.Address) ([]string, error)
}

// StaticResolver serves endpoints from a fixed map. Suited to small fleets
// configured by hand.
type StaticResolver struct {
	mu        sync.RWMutex
	endpoints map[interfaces.Address][]string
}

// NewStaticResolver creates an empty static resolver.
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{endpoints: make(map[interfaces.Address][]string)}
}

// Set replaces the endpoints for an instance.
func (r *StaticResolver) Set(instance interfaces.Address, endpoints ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[instance] = append([]string(nil), endpoints...)
}

// Resolve implements EndpointResolver.
func (r *StaticResolver) Resolve(instance interfaces.Address) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	endpoints, ok := r.endpoints[instance]
	if !ok || len(endpoints) == 0 {
		return nil, fmt.Errorf("no endpoint configured for instance %s", instance)
	}
	return append([]string(nil), endpoints...), nil
}

// SRVResolver discovers instance endpoints through DNS SRV records. Each
// instance is expected to register under "<instance-hex>.<zone>".
type SRVResolver struct {
	// Zone is the DNS zone instances register under, e.g.
	// "instances.registry.example.com".
	Zone string

	// DNSServer is the resolver address. Defaults to the local stub
	// resolver.
	DNSServer string

	// Scheme prefixes resolved targets, defaults to "http".
	Scheme string
}

// Resolve implements EndpointResolver by querying SRV records for the
// instance's registration name.
func (r *SRVResolver) Resolve(instance interfaces.Address) ([]string, error) {
	domain := dns.Fqdn(instance.String() + "." + r.Zone)

	m := new(dns.Msg)
	m.Id = dns.Id()
	m.RecursionDesired = true
	m.Question = []dns.Question{{Name: domain, Qtype: dns.TypeSRV, Qclass: dns.ClassINET}}

	server := r.DNSServer
	if server == "" {
		server = "127.0.0.53:53"
	}

	c := new(dns.Client)
	in, _, err := c.Exchange(m, server)
	if err != nil {
		return nil, fmt.Errorf("SRV lookup for %s failed: %w", domain, err)
	}

	scheme := r.Scheme
	if scheme == "" {
		scheme = "http"
	}

	endpoints := make([]string, 0, len(in.Answer))
	for _, answer := range in.Answer {
		if srv, ok := answer.(*dns.SRV); ok {
			host := strings.TrimSuffix(srv.Target, ".")
			endpoints = append(endpoints, fmt.Sprintf("%s://%s:%d", scheme, host, srv.Port))
		}
	}

	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no SRV records for %s", domain)
	}
	return endpoints, nil
}
