// Copyright 2018 Tamás Demeter-Haludka
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package securitymw

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"

	"github.com/alien-bunny/backoffice/lib/middleware"
)

const MiddlewareDependencyRestrictAddress = "*securitymw.RestrictAddressMiddleware"

// PrivateNetworks are the loopback and the private address ranges.
var PrivateNetworks = []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "127.0.0.0/8", "::1/128", "fc00::/7"}

var _ middleware.Middleware = &RestrictAddressMiddleware{}

// RestrictAddressMiddleware only lets clients from the given networks through. Others get a 403.
//
// The back-office puts it in front of the metrics endpoint.
type RestrictAddressMiddleware struct {
	prefixes []netip.Prefix

	middleware.NoDependencies
}

// NewRestrictAddressMiddleware allows the networks in CIDR notation, e.g. 10.0.0.0/8.
func NewRestrictAddressMiddleware(networks ...string) (*RestrictAddressMiddleware, error) {
	prefixes := make([]netip.Prefix, 0, len(networks))
	for _, network := range networks {
		prefix, err := netip.ParsePrefix(network)
		if err != nil {
			return nil, fmt.Errorf("invalid network %q: %w", network, err)
		}
		prefixes = append(prefixes, prefix.Masked())
	}

	return &RestrictAddressMiddleware{prefixes: prefixes}, nil
}

// NewRestrictPrivateAddressMiddleware allows the PrivateNetworks.
func NewRestrictPrivateAddressMiddleware() *RestrictAddressMiddleware {
	m, err := NewRestrictAddressMiddleware(PrivateNetworks...)
	if err != nil {
		panic(err)
	}

	return m
}

// Allowed tells whether a remote address (host:port or host) is in one of the networks.
func (m *RestrictAddressMiddleware) Allowed(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	for _, prefix := range m.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}

	return false
}

func (m *RestrictAddressMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Allowed(r.RemoteAddr) {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
