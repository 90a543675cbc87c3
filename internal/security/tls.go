package security

import (
	"crypto/tls"
	"fmt"
)

// LoadServerTLS loads the server certificate for TLS 1.3 serving. Client
// certificates are not requested; callers are not authenticated here.
func LoadServerTLS(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load server certificate: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
	}, nil
}
