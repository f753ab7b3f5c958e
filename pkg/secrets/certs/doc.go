// Package certs implements the SPIFFE-identified certificate authority
// flowplane uses to mutually authenticate with connected proxies over
// the ADS stream, issuing leaf certificates whose subject is a SPIFFE
// URI of the form spiffe://<trust_domain>/team/<team>/proxy/<proxy_id>.
package certs
