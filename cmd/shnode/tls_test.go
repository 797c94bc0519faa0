package main

import "testing"

func TestSelfSignedTLSConfigProducesUsableCertificate(t *testing.T) {
	cfg, err := selfSignedTLSConfig("provider-1")
	if err != nil {
		t.Fatalf("selfSignedTLSConfig: %v", err)
	}
	if len(cfg.Certificates) != 1 {
		t.Fatalf("Certificates = %d, want 1", len(cfg.Certificates))
	}
	leaf := cfg.Certificates[0]
	if leaf.PrivateKey == nil {
		t.Fatal("expected a private key to be attached to the certificate")
	}
	if len(leaf.Certificate) != 1 {
		t.Fatalf("Certificate chain length = %d, want 1", len(leaf.Certificate))
	}
}

func TestSelfSignedTLSConfigIsFreshEachCall(t *testing.T) {
	a, err := selfSignedTLSConfig("provider-1")
	if err != nil {
		t.Fatal(err)
	}
	b, err := selfSignedTLSConfig("provider-1")
	if err != nil {
		t.Fatal(err)
	}
	if string(a.Certificates[0].Certificate[0]) == string(b.Certificates[0].Certificate[0]) {
		t.Fatal("expected two independently generated certificates to differ")
	}
}
