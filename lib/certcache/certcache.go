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

// Package certcache serves TLS certificates loaded on demand, keyed by server name.
package certcache

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"sync"
	"time"

	"github.com/alien-bunny/backoffice/lib/log"
)

// Loader returns the PEM encoded certificate and private key for a server name.
type Loader func(serverName string) (cert, key []byte, err error)

// Files loads the same key pair from disk for every server name.
//
// The files are read again after the cache is cleared, so renewed certificates are picked up on reload.
func Files(certFile, keyFile string) Loader {
	return func(string) ([]byte, []byte, error) {
		cert, err := os.ReadFile(certFile)
		if err != nil {
			return nil, nil, err
		}

		key, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, nil, err
		}

		return cert, key, nil
	}
}

// CertCache is a tls.Config.GetCertificate implementation.
type CertCache struct {
	mtx    sync.RWMutex
	cache  map[string]*tls.Certificate
	logger log.Logger
	loader Loader
}

func New(logger log.Logger, loader Loader) *CertCache {
	c := &CertCache{
		logger: logger,
		loader: loader,
	}
	c.Clear()

	return c
}

// Clear drops the loaded certificates.
func (c *CertCache) Clear() {
	c.mtx.Lock()
	c.cache = make(map[string]*tls.Certificate)
	c.mtx.Unlock()

	log.Debug(c.logger).Log("msg", "certificate cache cleared")
}

// Len returns the number of cached certificates.
func (c *CertCache) Len() int {
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	return len(c.cache)
}

func (c *CertCache) Get(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	if cert := c.getCached(hello.ServerName); cert != nil {
		log.Debug(c.logger).Log("msg", "certificate found", "server_name", hello.ServerName, "cached", true)
		return cert, nil
	}

	cert, err := c.load(hello.ServerName)
	if err != nil {
		log.Warn(c.logger).Log("msg", "failed to load certificate", "server_name", hello.ServerName, "error", err)
		return nil, err
	}

	c.mtx.Lock()
	c.cache[hello.ServerName] = cert
	c.mtx.Unlock()

	log.Debug(c.logger).Log("msg", "certificate found", "server_name", hello.ServerName, "cached", false)

	return cert, nil
}

func (c *CertCache) getCached(serverName string) *tls.Certificate {
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	return c.cache[serverName]
}

func (c *CertCache) load(serverName string) (*tls.Certificate, error) {
	cert, key, err := c.loader(serverName)
	if err != nil {
		return nil, err
	}

	kp, err := tls.X509KeyPair(cert, key)
	if err != nil {
		return nil, fmt.Errorf("invalid key pair for %s: %w", serverName, err)
	}

	return &kp, nil
}

// Generate creates a self-signed certificate for local HTTPS setups.
func Generate(hosts []string, organization string, validFor time.Duration) (cert, key []byte, err error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, err
	}

	notBefore := time.Now()
	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{organization},
		},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(validFor),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              hosts,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return nil, nil, err
	}

	keyDER, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return nil, nil, err
	}

	certOut := bytes.NewBuffer(nil)
	if err := pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: der}); err != nil {
		return nil, nil, err
	}

	keyOut := bytes.NewBuffer(nil)
	if err := pem.Encode(keyOut, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}); err != nil {
		return nil, nil, err
	}

	return certOut.Bytes(), keyOut.Bytes(), nil
}
