package helper

import (
	"crypto/tls"
	"fmt"
)

func LoadCertificates(certPath string, keyPath string) ([]tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("cannot load key pair: %w", err)
	}
	return []tls.Certificate{cert}, nil
}
