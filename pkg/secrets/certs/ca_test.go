package certs

import (
	"path/filepath"
	"testing"
	"time"

	"go.etcd.io/bbolt"

	"github.com/flowplane/flowplane/pkg/secrets"
)

func newTestCA(t *testing.T) (*CertAuthority, *secrets.EncryptionManager) {
	t.Helper()
	dir := t.TempDir()
	db, err := bbolt.Open(filepath.Join(dir, "ca.db"), 0600, nil)
	if err != nil {
		t.Fatalf("open bbolt: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := NewBoltStore(db)
	if err != nil {
		t.Fatalf("new bolt store: %v", err)
	}
	enc, err := secrets.NewEncryptionManager(secrets.DeriveKeyFromClusterSeed("test-deployment"))
	if err != nil {
		t.Fatalf("new encryption manager: %v", err)
	}
	return NewCertAuthority(store), enc
}

func TestInitialize(t *testing.T) {
	ca, _ := newTestCA(t)

	if err := ca.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !ca.IsInitialized() {
		t.Error("CA should be initialized")
	}
	if !ca.rootCert.IsCA {
		t.Error("root certificate should be a CA")
	}
	expectedExpiry := time.Now().Add(rootCAValidity)
	if ca.rootCert.NotAfter.Before(expectedExpiry.Add(-time.Hour)) {
		t.Errorf("root cert expiry too early: %v, expected around %v", ca.rootCert.NotAfter, expectedExpiry)
	}
}

func TestSaveAndLoadFromStore(t *testing.T) {
	ca, enc := newTestCA(t)
	if err := ca.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := ca.SaveToStore(enc); err != nil {
		t.Fatalf("SaveToStore: %v", err)
	}

	loaded := NewCertAuthority(ca.store)
	if err := loaded.LoadFromStore(enc); err != nil {
		t.Fatalf("LoadFromStore: %v", err)
	}
	if !loaded.IsInitialized() {
		t.Error("loaded CA should be initialized")
	}
	if loaded.rootCert.SerialNumber.Cmp(ca.rootCert.SerialNumber) != 0 {
		t.Error("loaded root cert serial should match saved root cert")
	}
}

func TestIssueProxyCertificate(t *testing.T) {
	ca, _ := newTestCA(t)
	if err := ca.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	cert, err := ca.IssueProxyCertificate("flowplane.internal", "payments", "edge-1")
	if err != nil {
		t.Fatalf("IssueProxyCertificate: %v", err)
	}
	if len(cert.Certificate) == 0 {
		t.Fatal("expected at least one DER certificate")
	}
	if cert.Leaf == nil {
		t.Fatal("expected populated leaf")
	}

	wantURI := "spiffe://flowplane.internal/team/payments/proxy/edge-1"
	if len(cert.Leaf.URIs) != 1 || cert.Leaf.URIs[0].String() != wantURI {
		t.Errorf("unexpected SPIFFE URI: %v, want %s", cert.Leaf.URIs, wantURI)
	}

	if err := ca.VerifyCertificate(cert.Leaf); err != nil {
		t.Errorf("VerifyCertificate: %v", err)
	}

	if _, ok := ca.GetCachedCert("edge-1"); !ok {
		t.Error("expected issued certificate to be cached")
	}
}

func TestIssueProxyCertificate_SharedListenerHasNoTeam(t *testing.T) {
	ca, _ := newTestCA(t)
	if err := ca.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	cert, err := ca.IssueProxyCertificate("flowplane.internal", "", "edge-shared")
	if err != nil {
		t.Fatalf("IssueProxyCertificate: %v", err)
	}
	want := "spiffe://flowplane.internal/team/_shared/proxy/edge-shared"
	if cert.Leaf.URIs[0].String() != want {
		t.Errorf("got %s, want %s", cert.Leaf.URIs[0].String(), want)
	}
}

func TestVerifyCertificate_RejectsForeignCA(t *testing.T) {
	ca, _ := newTestCA(t)
	other, _ := newTestCA(t)
	if err := ca.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := other.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	cert, err := other.IssueProxyCertificate("flowplane.internal", "payments", "edge-1")
	if err != nil {
		t.Fatalf("IssueProxyCertificate: %v", err)
	}
	if err := ca.VerifyCertificate(cert.Leaf); err == nil {
		t.Error("expected verification against the wrong CA to fail")
	}
}

func TestIssueClientCertificate(t *testing.T) {
	ca, _ := newTestCA(t)
	if err := ca.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	cert, err := ca.IssueClientCertificate("operator-1")
	if err != nil {
		t.Fatalf("IssueClientCertificate: %v", err)
	}
	if cert.Leaf.Subject.CommonName != "cli-operator-1" {
		t.Errorf("unexpected common name: %s", cert.Leaf.Subject.CommonName)
	}
}

func TestLoadFromStore_WrongKeyFailsClosed(t *testing.T) {
	ca, enc := newTestCA(t)
	if err := ca.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := ca.SaveToStore(enc); err != nil {
		t.Fatalf("SaveToStore: %v", err)
	}

	wrongEnc, err := secrets.NewEncryptionManager(secrets.DeriveKeyFromClusterSeed("different-deployment"))
	if err != nil {
		t.Fatalf("new encryption manager: %v", err)
	}
	loaded := NewCertAuthority(ca.store)
	if err := loaded.LoadFromStore(wrongEnc); err == nil {
		t.Error("expected LoadFromStore with the wrong key to fail")
	}
}
