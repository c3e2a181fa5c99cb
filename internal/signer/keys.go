package signer

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/golang-jwt/jwt/v5"
)

// LoadKeyPair reads the RSA key pair from the given PEM files. When neither
// file exists a fresh pair is generated and written, so a dev instance comes
// up without provisioning; production deployments mount real keys.
func LoadKeyPair(privateKeyFile string, publicKeyFile string) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	_, privErr := os.Stat(privateKeyFile)
	_, pubErr := os.Stat(publicKeyFile)
	if os.IsNotExist(privErr) && os.IsNotExist(pubErr) {
		slog.Warn("signing keys not found, generating dev key pair", "private", privateKeyFile, "public", publicKeyFile)
		if err := generateKeyPair(privateKeyFile, publicKeyFile); err != nil {
			return nil, nil, fmt.Errorf("generate key pair: %w", err)
		}
	}

	privPEM, err := os.ReadFile(privateKeyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("read private key: %w", err)
	}
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("parse private key: %w", err)
	}

	pubPEM, err := os.ReadFile(publicKeyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("read public key: %w", err)
	}
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(pubPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("parse public key: %w", err)
	}

	return privateKey, publicKey, nil
}

func generateKeyPair(privateKeyFile string, publicKeyFile string) error {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(privateKeyFile), 0o755); err != nil {
		return err
	}

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	if err := os.WriteFile(privateKeyFile, privPEM, 0o600); err != nil {
		return err
	}

	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return err
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})

	return os.WriteFile(publicKeyFile, pubPEM, 0o644)
}
