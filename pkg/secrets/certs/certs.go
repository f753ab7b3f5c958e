package certs

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

// certRotationThreshold is the rotation window: a certificate with
// less than this much validity left is due for renewal.
const certRotationThreshold = 30 * 24 * time.Hour

// GetProxyCertDir returns the certificate directory for a given proxy.
func GetProxyCertDir(baseDir, proxyID string) string {
	return filepath.Join(baseDir, fmt.Sprintf("proxy-%s", proxyID))
}

// GetClientCertDir returns the certificate directory for a CLI/API client.
func GetClientCertDir(baseDir, clientID string) string {
	return filepath.Join(baseDir, fmt.Sprintf("client-%s", clientID))
}

// SaveCertToFile saves a TLS certificate to files (cert and key) under
// certDir.
func SaveCertToFile(cert *tls.Certificate, certDir string) error {
	if err := os.MkdirAll(certDir, 0700); err != nil {
		return fmt.Errorf("create cert directory: %w", err)
	}

	certPath := filepath.Join(certDir, "leaf.crt")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Certificate[0]})
	if err := os.WriteFile(certPath, certPEM, 0600); err != nil {
		return fmt.Errorf("write certificate: %w", err)
	}

	privateKey, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return fmt.Errorf("private key is not RSA")
	}
	keyPath := filepath.Join(certDir, "leaf.key")
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privateKey)})
	if err := os.WriteFile(keyPath, keyPEM, 0600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	return nil
}

// LoadCertFromFile loads a TLS certificate from certDir.
func LoadCertFromFile(certDir string) (*tls.Certificate, error) {
	certPath := filepath.Join(certDir, "leaf.crt")
	keyPath := filepath.Join(certDir, "leaf.key")

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("load certificate: %w", err)
	}
	if cert.Leaf == nil {
		leaf, err := x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return nil, fmt.Errorf("parse certificate: %w", err)
		}
		cert.Leaf = leaf
	}
	return &cert, nil
}

// SaveCACertToFile saves the CA certificate to certDir, world-readable
// since it contains no secret material.
func SaveCACertToFile(caCert []byte, certDir string) error {
	if err := os.MkdirAll(certDir, 0700); err != nil {
		return fmt.Errorf("create cert directory: %w", err)
	}
	caPath := filepath.Join(certDir, "ca.crt")
	caPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: caCert})
	return os.WriteFile(caPath, caPEM, 0644)
}

// LoadCACertFromFile loads the CA certificate from certDir.
func LoadCACertFromFile(certDir string) (*x509.Certificate, error) {
	caPath := filepath.Join(certDir, "ca.crt")
	caPEM, err := os.ReadFile(caPath)
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}
	block, _ := pem.Decode(caPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("decode CA certificate PEM")
	}
	return x509.ParseCertificate(block.Bytes)
}

// CertExists reports whether a leaf+CA pair is present in certDir.
func CertExists(certDir string) bool {
	for _, name := range []string{"leaf.crt", "leaf.key", "ca.crt"} {
		if _, err := os.Stat(filepath.Join(certDir, name)); err != nil {
			return false
		}
	}
	return true
}

// NeedsRotation returns true if cert should be rotated: nil, or less
// than 30 days remain until expiry.
func NeedsRotation(cert *x509.Certificate) bool {
	if cert == nil {
		return true
	}
	return time.Until(cert.NotAfter) < certRotationThreshold
}

// TimeRemaining returns the duration until cert's expiry.
func TimeRemaining(cert *x509.Certificate) time.Duration {
	if cert == nil {
		return 0
	}
	return time.Until(cert.NotAfter)
}

// RemoveCerts deletes certDir and everything under it.
func RemoveCerts(certDir string) error {
	return os.RemoveAll(certDir)
}

// Info returns a human-readable description of cert, used by the CLI's
// "proxy cert show" command.
func Info(cert *x509.Certificate) map[string]any {
	if cert == nil {
		return map[string]any{"error": "certificate is nil"}
	}
	return map[string]any{
		"subject":       cert.Subject.CommonName,
		"uris":          cert.URIs,
		"issuer":        cert.Issuer.CommonName,
		"serial_number": cert.SerialNumber.String(),
		"not_before":    cert.NotBefore.Format(time.RFC3339),
		"not_after":     cert.NotAfter.Format(time.RFC3339),
		"is_ca":         cert.IsCA,
	}
}

var bucketCA = []byte("ca")
var caKey = []byte("root")

// BoltStore persists the CA's encrypted key material under a dedicated
// top-level bucket of the bbolt database it is given (cmd/flowplaned
// opens a separate flowplane-ca.db for it), without entangling the CA
// with the tenant-scoped Tx/Transactor machinery.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the ca bucket in db.
func NewBoltStore(db *bbolt.DB) (*BoltStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCA)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create ca bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) SaveCA(data []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCA).Put(caKey, data)
	})
}

func (s *BoltStore) GetCA() ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketCA).Get(caKey)
		if v == nil {
			return fmt.Errorf("no CA material saved")
		}
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}
