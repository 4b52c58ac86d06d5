package proxy

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseTarget(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input string
		user  string
		host  string
		port  int
	}{
		{"example.com", "", "example.com", 22},
		{"example.com:2200", "", "example.com", 2200},
		{"alice@example.com", "alice", "example.com", 22},
		{"alice@example.com:2200", "alice", "example.com", 2200},
		{"127.0.0.1:22", "", "127.0.0.1", 22},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			spec, err := parseTarget(tc.input)
			if err != nil {
				t.Fatalf("parse %q: %v", tc.input, err)
			}
			if spec.User != tc.user || spec.Host != tc.host || spec.Port != tc.port {
				t.Fatalf("parse %q = %+v, want user=%q host=%q port=%d",
					tc.input, spec, tc.user, tc.host, tc.port)
			}
		})
	}
}

func TestParseTargetInvalid(t *testing.T) {
	t.Parallel()
	for _, input := range []string{"", "alice@", "example.com:notaport"} {
		if _, err := parseTarget(input); err == nil {
			t.Fatalf("parse %q: expected an error", input)
		}
	}
}

func TestLoadFileOverrides(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("port: \"2299\"\nmode: relay\ntarget: alice@example.com\nkeepalive: 30\n")
	if err := os.WriteFile(path, body, 0600); err != nil {
		t.Fatal(err)
	}
	c := Config{
		Host: "127.0.0.1", // not in the file, must survive
		Port: "2222",      // in the file, must be replaced
	}
	if err := LoadFile(path, &c); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if c.Host != "127.0.0.1" {
		t.Fatalf("host %q, want untouched %q", c.Host, "127.0.0.1")
	}
	if c.Port != "2299" {
		t.Fatalf("port %q, want %q", c.Port, "2299")
	}
	if c.Mode != ModeRelay {
		t.Fatalf("mode %q, want %q", c.Mode, ModeRelay)
	}
	if c.Target != "alice@example.com" {
		t.Fatalf("target %q, want %q", c.Target, "alice@example.com")
	}
	if c.KeepAlive != 30 {
		t.Fatalf("keepalive %d, want 30", c.KeepAlive)
	}
}

func TestLoadFileMissing(t *testing.T) {
	t.Parallel()
	c := Config{}
	if err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"), &c); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLoadFileMalformed(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("port: [not, a, string"), 0600); err != nil {
		t.Fatal(err)
	}
	c := Config{}
	if err := LoadFile(path, &c); err == nil {
		t.Fatal("expected an error for malformed yaml")
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	r := newRegistry()
	if r.Len() != 0 {
		t.Fatalf("new registry has %d sessions", r.Len())
	}
	a := r.add(&Session{})
	b := r.add(&Session{})
	if a == b {
		t.Fatal("expected distinct session ids")
	}
	if r.Len() != 2 {
		t.Fatalf("registry has %d sessions, want 2", r.Len())
	}
	r.remove(a)
	r.remove(a) // removing twice is harmless
	if r.Len() != 1 {
		t.Fatalf("registry has %d sessions, want 1", r.Len())
	}
	r.remove(b)
	if r.Len() != 0 {
		t.Fatalf("registry has %d sessions, want 0", r.Len())
	}
}
