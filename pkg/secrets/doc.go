// Package secrets resolves a Secret's BackendReference to plaintext
// bytes through a small set of named backends, and provides the AES-GCM
// EncryptionManager (used for the CA root key) and the SPIFFE certificate
// issuance the materializer and xDS server need to hand TLS material to
// proxies.
//
// A BackendReference has the shape "<backend>:<path>"; Resolver looks
// the backend name up in a registry built at startup. A secret backend
// is treated as an external collaborator behind the Backend interface,
// so EnvBackend and VaultBackend here are reference implementations,
// not the only ones a deployment must use.
package secrets
