package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"flag"
	"fmt"
	"math/big"
	"net"
	"os"
	"strings"
	"time"
)

// Generates a self signed certificate for local runs, saved as
// {name}-cert.pem and {name}-key.pem.
func main() {
	org := flag.String("org", "http2Server dev", "Organization name")
	commonName := flag.String("cn", "localhost", "Common name (domain)")
	hosts := flag.String("hosts", "127.0.0.1,localhost", "Comma separated IPs and DNS names")
	hostName := flag.String("name", "localhost", "Output file prefix")
	days := flag.Int("days", 365, "Validity in days")
	flag.Parse()

	notBefore := time.Now()
	notAfter := notBefore.Add(time.Duration(*days) * 24 * time.Hour)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		fmt.Printf("error generating key: %v\n", err)
		os.Exit(1)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		fmt.Printf("error generating serial number: %v\n", err)
		os.Exit(1)
	}

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{*org},
			CommonName:   *commonName,
		},
		NotBefore:   notBefore,
		NotAfter:    notAfter,
		KeyUsage:    x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	for _, host := range strings.Split(*hosts, ",") {
		host = strings.TrimSpace(host)
		if ip := net.ParseIP(host); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else if host != "" {
			template.DNSNames = append(template.DNSNames, host)
		}
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		fmt.Printf("error creating certificate: %v\n", err)
		os.Exit(1)
	}

	certOut, err := os.Create(*hostName + "-cert.pem")
	if err != nil {
		fmt.Printf("error creating cert file: %v\n", err)
		os.Exit(1)
	}
	if err = pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: derBytes}); err != nil {
		fmt.Printf("error writing certificate: %v\n", err)
	}
	if err = certOut.Close(); err != nil {
		fmt.Printf("error closing cert file: %v\n", err)
	}

	keyOut, err := os.OpenFile(*hostName+"-key.pem", os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		fmt.Printf("error creating key file: %v\n", err)
		os.Exit(1)
	}
	privBytes, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		fmt.Printf("error marshalling private key: %v\n", err)
		os.Exit(1)
	}
	if err = pem.Encode(keyOut, &pem.Block{Type: "PRIVATE KEY", Bytes: privBytes}); err != nil {
		fmt.Printf("error writing private key: %v\n", err)
	}
	if err = keyOut.Close(); err != nil {
		fmt.Printf("error closing private key file: %v\n", err)
	}
}
