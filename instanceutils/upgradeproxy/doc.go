// Package upgradeproxy delivers migration calls to running instances.
//
// The coordinator hands it the version entry an instance is stepping onto;
// the proxy resolves the instance's admin endpoint and POSTs the upgrade
// there. Endpoint resolution is pluggable: a static map for fixed fleets, or
// DNS SRV lookup for fleets that register themselves in service discovery.
package upgradeproxy
