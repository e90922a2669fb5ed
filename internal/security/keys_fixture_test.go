package security

import (
	"crypto/x509"
	"encoding/pem"
)

// PKCS8/PKIX PEM encodings of the shared test RSA key.
var testPrivateKeyPEM, testPublicKeyPEM = mustTestKeyPEM()

func mustTestKeyPEM() (string, string) {
	if _, err := NewTestTokenProvider(); err != nil {
		panic("test key: " + err.Error())
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(testKey)
	if err != nil {
		panic("marshal test private key: " + err.Error())
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&testKey.PublicKey)
	if err != nil {
		panic("marshal test public key: " + err.Error())
	}
	priv := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	pub := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return string(priv), string(pub)
}
