package certs

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"fmt"
	"math/big"
	"net/url"
	"sync"
	"time"
)

// CertAuthority issues and verifies SPIFFE-identified certificates for
// proxies and CLI/API clients of one flowplane deployment.
type CertAuthority struct {
	rootCert  *x509.Certificate
	rootKey   *rsa.PrivateKey
	store     Store
	certCache map[string]*CachedCert
	mu        sync.RWMutex
}

// CachedCert is the most recently issued leaf certificate for an id,
// readable through GetCachedCert. Issuance never consults it: every
// IssueProxyCertificate and IssueClientCertificate call generates a new
// RSA key.
type CachedCert struct {
	Cert      *x509.Certificate
	Key       *rsa.PrivateKey
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// caData is the serialized CA shape persisted by Store.
type caData struct {
	RootCertDER []byte
	RootKeyDER  []byte // encrypted by the caller's EncryptionManager before reaching Store
}

// Store persists the CA's encrypted root key material. It is
// deliberately not pkg/storage.Transactor: the CA is a process-wide
// singleton, not a tenant-scoped resource with versioning and audit
// rows.
type Store interface {
	SaveCA(data []byte) error
	GetCA() ([]byte, error)
}

// Encryptor wraps and unwraps the root private key before it touches
// Store; callers pass in pkg/secrets.EncryptionManager.
type Encryptor interface {
	Encrypt([]byte) ([]byte, error)
	Decrypt([]byte) ([]byte, error)
}

const (
	rootCAValidity   = 10 * 365 * 24 * time.Hour
	proxyCertValidity = 90 * 24 * time.Hour
	rootKeySize      = 4096
	proxyKeySize     = 2048
)

// NewCertAuthority returns an uninitialized CA bound to store.
func NewCertAuthority(store Store) *CertAuthority {
	return &CertAuthority{store: store, certCache: make(map[string]*CachedCert)}
}

// Initialize generates a fresh self-signed root CA.
func (ca *CertAuthority) Initialize() error {
	ca.mu.Lock()
	defer ca.mu.Unlock()

	rootKey, err := rsa.GenerateKey(rand.Reader, rootKeySize)
	if err != nil {
		return fmt.Errorf("generate root key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("generate serial number: %w", err)
	}
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"flowplane"},
			CommonName:   "flowplane Root CA",
		},
		NotBefore:             time.Now(),
		NotAfter:               time.Now().Add(rootCAValidity),
		KeyUsage:               x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		IsCA:                   true,
		BasicConstraintsValid:  true,
		MaxPathLen:             1,
	}
	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &rootKey.PublicKey, rootKey)
	if err != nil {
		return fmt.Errorf("create root certificate: %w", err)
	}
	rootCert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return fmt.Errorf("parse root certificate: %w", err)
	}
	ca.rootCert, ca.rootKey = rootCert, rootKey
	return nil
}

// LoadFromStore loads a previously saved CA, decrypting the root key
// with enc.
func (ca *CertAuthority) LoadFromStore(enc Encryptor) error {
	ca.mu.Lock()
	defer ca.mu.Unlock()

	raw, err := ca.store.GetCA()
	if err != nil {
		return fmt.Errorf("get CA from store: %w", err)
	}
	var data caData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("unmarshal CA data: %w", err)
	}
	keyDER, err := enc.Decrypt(data.RootKeyDER)
	if err != nil {
		return fmt.Errorf("decrypt root key: %w", err)
	}
	rootCert, err := x509.ParseCertificate(data.RootCertDER)
	if err != nil {
		return fmt.Errorf("parse root certificate: %w", err)
	}
	rootKey, err := x509.ParsePKCS1PrivateKey(keyDER)
	if err != nil {
		return fmt.Errorf("parse root key: %w", err)
	}
	ca.rootCert, ca.rootKey = rootCert, rootKey
	return nil
}

// SaveToStore persists the CA, encrypting the root key with enc.
func (ca *CertAuthority) SaveToStore(enc Encryptor) error {
	ca.mu.RLock()
	defer ca.mu.RUnlock()

	if ca.rootCert == nil || ca.rootKey == nil {
		return fmt.Errorf("CA not initialized")
	}
	keyDER := x509.MarshalPKCS1PrivateKey(ca.rootKey)
	encrypted, err := enc.Encrypt(keyDER)
	if err != nil {
		return fmt.Errorf("encrypt root key: %w", err)
	}
	raw, err := json.Marshal(caData{RootCertDER: ca.rootCert.Raw, RootKeyDER: encrypted})
	if err != nil {
		return fmt.Errorf("marshal CA data: %w", err)
	}
	return ca.store.SaveCA(raw)
}

// SPIFFEID builds the URI a proxy certificate's subject carries:
// spiffe://<trustDomain>/team/<team>/proxy/<proxyID>. A team-less
// (global, shared-listener) proxy uses "_shared" as team.
func SPIFFEID(trustDomain, team, proxyID string) string {
	if team == "" {
		team = "_shared"
	}
	return fmt.Sprintf("spiffe://%s/team/%s/proxy/%s", trustDomain, team, proxyID)
}

// IssueProxyCertificate issues a leaf certificate identifying a
// connected data plane by its SPIFFE URI, usable as a server or client
// TLS certificate for the ADS stream.
func (ca *CertAuthority) IssueProxyCertificate(trustDomain, team, proxyID string) (*tls.Certificate, error) {
	ca.mu.RLock()
	defer ca.mu.RUnlock()
	if ca.rootCert == nil || ca.rootKey == nil {
		return nil, fmt.Errorf("CA not initialized")
	}

	spiffeID := SPIFFEID(trustDomain, team, proxyID)
	uri, err := url.Parse(spiffeID)
	if err != nil {
		return nil, fmt.Errorf("parse spiffe id: %w", err)
	}

	key, err := rsa.GenerateKey(rand.Reader, proxyKeySize)
	if err != nil {
		return nil, fmt.Errorf("generate proxy key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generate serial number: %w", err)
	}
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{Organization: []string{"flowplane"}, CommonName: proxyID},
		URIs:         []*url.URL{uri},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(proxyCertValidity),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
	}
	certDER, err := x509.CreateCertificate(rand.Reader, template, ca.rootCert, &key.PublicKey, ca.rootKey)
	if err != nil {
		return nil, fmt.Errorf("create proxy certificate: %w", err)
	}
	leaf, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("parse proxy certificate: %w", err)
	}
	tlsCert := &tls.Certificate{Certificate: [][]byte{certDER}, PrivateKey: key, Leaf: leaf}
	ca.cacheCertificate(proxyID, leaf, key)
	return tlsCert, nil
}

// IssueClientCertificate issues a certificate for a bootstrap CLI/API
// client, client-auth only.
func (ca *CertAuthority) IssueClientCertificate(clientID string) (*tls.Certificate, error) {
	ca.mu.RLock()
	defer ca.mu.RUnlock()
	if ca.rootCert == nil || ca.rootKey == nil {
		return nil, fmt.Errorf("CA not initialized")
	}

	key, err := rsa.GenerateKey(rand.Reader, proxyKeySize)
	if err != nil {
		return nil, fmt.Errorf("generate client key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generate serial number: %w", err)
	}
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{Organization: []string{"flowplane"}, CommonName: "cli-" + clientID},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(proxyCertValidity),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	certDER, err := x509.CreateCertificate(rand.Reader, template, ca.rootCert, &key.PublicKey, ca.rootKey)
	if err != nil {
		return nil, fmt.Errorf("create client certificate: %w", err)
	}
	leaf, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("parse client certificate: %w", err)
	}
	tlsCert := &tls.Certificate{Certificate: [][]byte{certDER}, PrivateKey: key, Leaf: leaf}
	ca.cacheCertificate(clientID, leaf, key)
	return tlsCert, nil
}

// VerifyCertificate checks cert chains to this CA's root.
func (ca *CertAuthority) VerifyCertificate(cert *x509.Certificate) error {
	ca.mu.RLock()
	defer ca.mu.RUnlock()
	if ca.rootCert == nil {
		return fmt.Errorf("CA not initialized")
	}
	roots := x509.NewCertPool()
	roots.AddCert(ca.rootCert)
	opts := x509.VerifyOptions{Roots: roots, KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth}}
	_, err := cert.Verify(opts)
	return err
}

func (ca *CertAuthority) GetRootCACert() []byte {
	ca.mu.RLock()
	defer ca.mu.RUnlock()
	if ca.rootCert == nil {
		return nil
	}
	return ca.rootCert.Raw
}

func (ca *CertAuthority) IsInitialized() bool {
	ca.mu.RLock()
	defer ca.mu.RUnlock()
	return ca.rootCert != nil && ca.rootKey != nil
}

func (ca *CertAuthority) cacheCertificate(id string, cert *x509.Certificate, key *rsa.PrivateKey) {
	ca.certCache[id] = &CachedCert{Cert: cert, Key: key, IssuedAt: cert.NotBefore, ExpiresAt: cert.NotAfter}
}

func (ca *CertAuthority) GetCachedCert(id string) (*CachedCert, bool) {
	ca.mu.RLock()
	defer ca.mu.RUnlock()
	c, ok := ca.certCache[id]
	return c, ok
}
