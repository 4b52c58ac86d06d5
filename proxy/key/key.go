// Package key generates and fingerprints the proxy's identity keys: the
// host key presented to inbound callers and the client key used for
// outbound logins. Keys can be generated from the system RNG or
// deterministically from a seed string, which keeps test fixtures and
// throwaway deployments stable across restarts.
package key

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"io"

	"golang.org/x/crypto/ssh"
)

// Generate returns a PEM-encoded private key. With an empty seed the system
// RNG is used; otherwise the key is derived deterministically from the
// seed. ec selects ed25519 over RSA-2048.
func Generate(seed string, ec bool) ([]byte, error) {
	var r io.Reader
	if seed == "" {
		r = rand.Reader
	} else {
		r = NewDetermRand([]byte(seed))
	}
	if ec {
		_, pri, err := ed25519.GenerateKey(r)
		if err != nil {
			return nil, err
		}
		pemBlock, err := ssh.MarshalPrivateKey(pri, "EC PRIVATE KEY")
		if err != nil {
			return nil, err
		}
		return pem.EncodeToMemory(pemBlock), nil
	}
	priv, err := rsa.GenerateKey(r, 2048)
	if err != nil {
		return nil, err
	}
	if err := priv.Validate(); err != nil {
		return nil, err
	}
	b := x509.MarshalPKCS1PrivateKey(priv)
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: b}), nil
}

// Fingerprint returns the SHA256 fingerprint of a public key in the
// OpenSSH display form.
func Fingerprint(k ssh.PublicKey) string {
	bytes := sha256.Sum256(k.Marshal())
	b64 := base64.StdEncoding.WithPadding(base64.NoPadding).EncodeToString(bytes[:])
	return "SHA256:" + b64
}

const determRandIter = 2048

// NewDetermRand returns a deterministic byte stream derived from seed,
// usable as a key-generation entropy source.
func NewDetermRand(seed []byte) io.Reader {
	var out []byte
	var next = seed
	for i := 0; i < determRandIter; i++ {
		next, out = hash(next)
	}
	return &DetermRand{
		next: next,
		out:  out,
	}
}

type DetermRand struct {
	next, out []byte
}

func (d *DetermRand) Read(b []byte) (int, error) {
	l := len(b)
	if l == 1 {
		return 1, nil
	}
	n := 0
	for n < l {
		next, out := hash(d.next)
		n += copy(b[n:], out)
		d.next = next
	}
	return n, nil
}

func hash(input []byte) (next []byte, output []byte) {
	nextout := sha512.Sum512(input)
	return nextout[:sha512.Size/2], nextout[sha512.Size/2:]
}
