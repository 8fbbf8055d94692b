// Package tlsutil builds client TLS configurations for secure transports.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/c360/querystream/errors"
)

// Config describes the client side of a TLS connection to the engine
type Config struct {
	// Enabled turns TLS on for the transport
	Enabled bool `yaml:"enabled"`

	// MinVersion is the minimum TLS version: "1.2" (default) or "1.3"
	MinVersion string `yaml:"min_version"`

	// CAFiles are PEM files trusted in addition to the system pool
	CAFiles []string `yaml:"ca_files"`

	// CertFile and KeyFile provide a client certificate for mutual TLS
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// InsecureSkipVerify disables server certificate verification. Test
	// environments only.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Load builds a tls.Config from the client configuration. Disabled TLS
// returns nil so callers can pass the result straight to a transport dialer.
func Load(cfg Config) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	tlsConf := &tls.Config{
		MinVersion:         parseTLSVersion(cfg.MinVersion),
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	rootCAs, err := x509.SystemCertPool()
	if err != nil {
		rootCAs = x509.NewCertPool()
	}
	for _, caFile := range cfg.CAFiles {
		caPEM, err := os.ReadFile(caFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "Load", fmt.Sprintf("read CA file %s", caFile))
		}
		if !rootCAs.AppendCertsFromPEM(caPEM) {
			return nil, errors.WrapFatal(
				fmt.Errorf("no valid PEM certificates in %s", caFile),
				"tlsutil", "Load", "parse CA file")
		}
	}
	tlsConf.RootCAs = rootCAs

	if cfg.CertFile != "" || cfg.KeyFile != "" {
		if cfg.CertFile == "" || cfg.KeyFile == "" {
			return nil, errors.WrapInvalid(
				fmt.Errorf("cert_file and key_file must both be set for mutual TLS"),
				"tlsutil", "Load", "check client certificate")
		}
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "Load", "load client certificate")
		}
		tlsConf.Certificates = []tls.Certificate{cert}
	}

	return tlsConf, nil
}

// parseTLSVersion maps a config string to a tls constant, defaulting to 1.2
func parseTLSVersion(version string) uint16 {
	switch version {
	case "1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}
