package certs

import (
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoadCertFromFile(t *testing.T) {
	ca, _ := newTestCA(t)
	if err := ca.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	cert, err := ca.IssueProxyCertificate("flowplane.internal", "payments", "edge-1")
	if err != nil {
		t.Fatalf("IssueProxyCertificate: %v", err)
	}

	dir := t.TempDir()
	certDir := GetProxyCertDir(dir, "edge-1")
	if err := SaveCertToFile(cert, certDir); err != nil {
		t.Fatalf("SaveCertToFile: %v", err)
	}
	if err := SaveCACertToFile(ca.GetRootCACert(), certDir); err != nil {
		t.Fatalf("SaveCACertToFile: %v", err)
	}
	if !CertExists(certDir) {
		t.Error("expected CertExists to report true after saving")
	}

	loaded, err := LoadCertFromFile(certDir)
	if err != nil {
		t.Fatalf("LoadCertFromFile: %v", err)
	}
	if loaded.Leaf.SerialNumber.Cmp(cert.Leaf.SerialNumber) != 0 {
		t.Error("loaded certificate serial mismatch")
	}

	caCert, err := LoadCACertFromFile(certDir)
	if err != nil {
		t.Fatalf("LoadCACertFromFile: %v", err)
	}
	if caCert.SerialNumber.Cmp(ca.rootCert.SerialNumber) != 0 {
		t.Error("loaded CA serial mismatch")
	}
}

func TestCertExists_FalseWhenIncomplete(t *testing.T) {
	dir := t.TempDir()
	certDir := filepath.Join(dir, "proxy-edge-1")
	if CertExists(certDir) {
		t.Error("expected CertExists to report false for a missing directory")
	}
}

func TestNeedsRotation(t *testing.T) {
	ca, _ := newTestCA(t)
	if err := ca.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	cert, err := ca.IssueProxyCertificate("flowplane.internal", "payments", "edge-1")
	if err != nil {
		t.Fatalf("IssueProxyCertificate: %v", err)
	}
	if NeedsRotation(cert.Leaf) {
		t.Error("freshly issued certificate should not need rotation")
	}
	if !NeedsRotation(nil) {
		t.Error("nil certificate should need rotation")
	}

	cert.Leaf.NotAfter = time.Now().Add(10 * 24 * time.Hour)
	if !NeedsRotation(cert.Leaf) {
		t.Error("certificate expiring in 10 days should need rotation")
	}
}

func TestRemoveCerts(t *testing.T) {
	ca, _ := newTestCA(t)
	if err := ca.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	cert, err := ca.IssueProxyCertificate("flowplane.internal", "payments", "edge-1")
	if err != nil {
		t.Fatalf("IssueProxyCertificate: %v", err)
	}
	dir := t.TempDir()
	certDir := GetProxyCertDir(dir, "edge-1")
	if err := SaveCertToFile(cert, certDir); err != nil {
		t.Fatalf("SaveCertToFile: %v", err)
	}
	if err := RemoveCerts(certDir); err != nil {
		t.Fatalf("RemoveCerts: %v", err)
	}
	if CertExists(certDir) {
		t.Error("expected certificates to be removed")
	}
}
