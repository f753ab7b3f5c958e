package secrets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/flowplane/flowplane/pkg/apierr"
)

// VaultBackend reads a KV-v2 secret from a HashiCorp Vault server. No
// Vault client library appears anywhere in the retrieval pack, so this
// talks to Vault's HTTP API directly with net/http rather than
// introducing an unrelated dependency (see DESIGN.md).
type VaultBackend struct {
	Addr       string // e.g. "https://vault.internal:8200"
	Token      string
	MountPath  string // KV v2 mount, e.g. "secret"
	Namespace  string // Vault Enterprise namespace; empty for OSS Vault
	HTTPClient *http.Client
}

// NewVaultBackend builds a VaultBackend with a sane default HTTP client
// timeout; callers needing a custom transport (mTLS to Vault, say) can
// overwrite HTTPClient after construction.
func NewVaultBackend(addr, token, mountPath string) *VaultBackend {
	return &VaultBackend{
		Addr: addr, Token: token, MountPath: mountPath,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (v *VaultBackend) Name() string { return "vault" }

type vaultKVResponse struct {
	Data struct {
		Data map[string]any `json:"data"`
	} `json:"data"`
}

// Fetch requests secret/data/<path> and returns the "value" field as
// raw bytes; a KV entry with more than one field must put the payload
// under a "value" key, matching Vault's own `vault kv put secret/x
// value=...` convention.
func (v *VaultBackend) Fetch(ctx context.Context, path string) ([]byte, error) {
	url := fmt.Sprintf("%s/v1/%s/data/%s", v.Addr, v.MountPath, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apierr.Wrap(apierr.Backend, err)
	}
	req.Header.Set("X-Vault-Token", v.Token)
	if v.Namespace != "" {
		req.Header.Set("X-Vault-Namespace", v.Namespace)
	}

	resp, err := v.HTTPClient.Do(req)
	if err != nil {
		return nil, apierr.New(apierr.ServiceUnavailable, "vault", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apierr.NotFoundf("vault_secret", path)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apierr.New(apierr.Backend, "vault", path, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var parsed vaultKVResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apierr.Wrap(apierr.Internal, fmt.Errorf("decode vault response: %w", err))
	}
	value, ok := parsed.Data.Data["value"]
	if !ok {
		return nil, apierr.New(apierr.Config, "vault_secret", path, fmt.Errorf(`kv entry has no "value" field`))
	}
	s, ok := value.(string)
	if !ok {
		return nil, apierr.New(apierr.Config, "vault_secret", path, fmt.Errorf(`"value" field is not a string`))
	}
	return []byte(s), nil
}

// VaultPKIBackend issues a leaf certificate from Vault's PKI secrets
// engine instead of flowplane's own CA (pkg/secrets/certs). Fetch
// returns the PEM-encoded certificate chain; callers wanting the private
// key should use IssueCertificate directly.
type VaultPKIBackend struct {
	Addr       string
	Token      string
	MountPath  string // PKI mount, e.g. "pki"
	Role       string
	Namespace  string // Vault Enterprise namespace; empty for OSS Vault
	HTTPClient *http.Client
}

func NewVaultPKIBackend(addr, token, mountPath, role string) *VaultPKIBackend {
	return &VaultPKIBackend{
		Addr: addr, Token: token, MountPath: mountPath, Role: role,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (v *VaultPKIBackend) Name() string { return "vault-pki" }

// Fetch treats path as the SPIFFE common name to issue (e.g.
// "spiffe://flowplane.internal/team/payments/proxy/edge-1") and returns
// the PEM certificate.
func (v *VaultPKIBackend) Fetch(ctx context.Context, path string) ([]byte, error) {
	cert, _, err := v.IssueCertificate(ctx, path)
	return cert, err
}

type vaultIssueRequest struct {
	CommonName string `json:"common_name"`
	URISANs    string `json:"uri_sans"`
}

type vaultIssueResponse struct {
	Data struct {
		Certificate string `json:"certificate"`
		PrivateKey  string `json:"private_key"`
	} `json:"data"`
}

// IssueCertificate requests a new leaf certificate with spiffeURI set as
// both the common name and the URI SAN, returning (certPEM, keyPEM).
func (v *VaultPKIBackend) IssueCertificate(ctx context.Context, spiffeURI string) ([]byte, []byte, error) {
	url := fmt.Sprintf("%s/v1/%s/issue/%s", v.Addr, v.MountPath, v.Role)
	body, err := json.Marshal(vaultIssueRequest{CommonName: spiffeURI, URISANs: spiffeURI})
	if err != nil {
		return nil, nil, apierr.Wrap(apierr.Internal, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, nil, apierr.Wrap(apierr.Backend, err)
	}
	req.Header.Set("X-Vault-Token", v.Token)
	req.Header.Set("Content-Type", "application/json")
	if v.Namespace != "" {
		req.Header.Set("X-Vault-Namespace", v.Namespace)
	}

	resp, err := v.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, apierr.New(apierr.ServiceUnavailable, "vault-pki", spiffeURI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, apierr.New(apierr.Backend, "vault-pki", spiffeURI, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var parsed vaultIssueResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, nil, apierr.Wrap(apierr.Internal, fmt.Errorf("decode vault response: %w", err))
	}
	return []byte(parsed.Data.Certificate), []byte(parsed.Data.PrivateKey), nil
}
