// Package sshkey finds or creates the operator's SSH identity used to reach
// a remote peer.
package sshkey

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// GeneratedKeyFile is the name used when no identity exists yet.
const GeneratedKeyFile = "id_ed25519"

// identityFiles are checked in order; the first private key found wins.
var identityFiles = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

// KeyPair holds paths to an SSH key pair.
type KeyPair struct {
	PrivateKeyPath string
	PublicKeyPath  string
}

// EnsureKey returns an existing identity from keyDir, or generates an
// ed25519 pair there when none exists. generated is true in the latter
// case; the caller must get the public key trusted before it is useful.
func EnsureKey(keyDir, comment string) (kp *KeyPair, generated bool, err error) {
	for _, name := range identityFiles {
		priv := filepath.Join(keyDir, name)
		if !fileExists(priv) {
			continue
		}
		if err := validatePrivateKey(priv); err != nil {
			return nil, false, fmt.Errorf("existing key %s is invalid: %w", priv, err)
		}
		return &KeyPair{PrivateKeyPath: priv, PublicKeyPath: priv + ".pub"}, false, nil
	}

	if err := os.MkdirAll(keyDir, 0o700); err != nil {
		return nil, false, fmt.Errorf("create key directory: %w", err)
	}

	priv := filepath.Join(keyDir, GeneratedKeyFile)
	pub := priv + ".pub"
	if err := generateED25519KeyPair(priv, pub, comment); err != nil {
		return nil, false, fmt.Errorf("generate key pair: %w", err)
	}
	return &KeyPair{PrivateKeyPath: priv, PublicKeyPath: pub}, true, nil
}

// ReadPublicKey reads the public key from a file and returns it as a string.
func ReadPublicKey(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read public key: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func generateED25519KeyPair(privateKeyPath, publicKeyPath, comment string) error {
	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("generate ed25519 key: %w", err)
	}

	sshPubKey, err := ssh.NewPublicKey(pubKey)
	if err != nil {
		return fmt.Errorf("convert public key to ssh format: %w", err)
	}
	pubKeyStr := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPubKey)))
	if comment != "" {
		pubKeyStr += " " + comment
	}

	privKeyPEM, err := ssh.MarshalPrivateKey(privKey, comment)
	if err != nil {
		return fmt.Errorf("marshal private key: %w", err)
	}

	if err := os.WriteFile(privateKeyPath, pem.EncodeToMemory(privKeyPEM), 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	if err := os.WriteFile(publicKeyPath, []byte(pubKeyStr+"\n"), 0o644); err != nil {
		_ = os.Remove(privateKeyPath)
		return fmt.Errorf("write public key: %w", err)
	}
	return nil
}

// validatePrivateKey accepts passphrase-protected keys: ssh-agent or the
// ssh client will unlock them, we only need to know the file is a key.
func validatePrivateKey(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read private key: %w", err)
	}
	_, err = ssh.ParsePrivateKey(data)
	var missing *ssh.PassphraseMissingError
	if err != nil && !errors.As(err, &missing) {
		return fmt.Errorf("parse private key: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
