package remote

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"codeberg.org/mutker/hwsnap/internal/telemetry"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const testUser = "probe"

type reply struct {
	stdout string
	stderr string
	status uint32
	hang   bool
}

// testServer is an in-process SSH server answering exec requests from a
// fixed command table.
type testServer struct {
	addr      string
	port      int
	hostKey   ssh.Signer
	clientKey ssh.Signer
	commands  map[string]reply

	mu      sync.Mutex
	ran     []string
	signals chan string
}

func newSigner(t *testing.T) ssh.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	return signer
}

func newTestServer(t *testing.T, commands map[string]reply) *testServer {
	t.Helper()

	s := &testServer{
		hostKey:   newSigner(t),
		clientKey: newSigner(t),
		commands:  commands,
		signals:   make(chan string, 4),
	}
	if _, ok := s.commands["uname -snr"]; !ok {
		s.commands["uname -snr"] = reply{stdout: "Linux testbox 6.1.0-18-amd64\n"}
	}

	cfg := &ssh.ServerConfig{
		PublicKeyCallback: func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if conn.User() == testUser && string(key.Marshal()) == string(s.clientKey.PublicKey().Marshal()) {
				return nil, nil
			}
			return nil, fmt.Errorf("unknown key for %s", conn.User())
		},
	}
	cfg.AddHostKey(s.hostKey)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	s.addr = ln.Addr().String()
	s.port = ln.Addr().(*net.TCPAddr).Port

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go s.serve(conn, cfg)
		}
	}()

	return s
}

func (s *testServer) serve(conn net.Conn, cfg *ssh.ServerConfig) {
	defer conn.Close()

	_, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		return
	}
	go ssh.DiscardRequests(reqs)

	for nc := range chans {
		if nc.ChannelType() != "session" {
			_ = nc.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		ch, requests, err := nc.Accept()
		if err != nil {
			continue
		}
		go s.session(ch, requests)
	}
}

func (s *testServer) session(ch ssh.Channel, requests <-chan *ssh.Request) {
	defer ch.Close()

	for req := range requests {
		if req.Type != "exec" {
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
			continue
		}

		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			_ = req.Reply(false, nil)
			return
		}
		_ = req.Reply(true, nil)

		s.mu.Lock()
		s.ran = append(s.ran, payload.Command)
		s.mu.Unlock()

		r, ok := s.commands[payload.Command]
		if !ok {
			r = reply{stderr: "sh: 1: not found\n", status: 127}
		}

		if r.hang {
			for req := range requests {
				if req.Type == "signal" {
					var sig struct{ Signal string }
					_ = ssh.Unmarshal(req.Payload, &sig)
					s.signals <- sig.Signal
					return
				}
			}
			return
		}

		_, _ = io.WriteString(ch, r.stdout)
		_, _ = io.WriteString(ch.Stderr(), r.stderr)
		_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{r.status}))

		return
	}
}

func (s *testServer) commandsRun() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.ran...)
}

func (s *testServer) target() telemetry.RemoteTarget {
	return telemetry.RemoteTarget{Host: "127.0.0.1", User: testUser, Port: s.port}
}

// knownHosts writes a known_hosts file trusting key for the server address.
func (s *testServer) knownHosts(t *testing.T, key ssh.PublicKey) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "known_hosts")
	line := knownhosts.Line([]string{knownhosts.Normalize(s.addr)}, key)
	require.NoError(t, os.WriteFile(path, []byte(line+"\n"), 0o600))

	return path
}

func (s *testServer) config(t *testing.T) Config {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SSH_AUTH_SOCK", "")

	return Config{
		Port:           s.port,
		KnownHostsFile: s.knownHosts(t, s.hostKey.PublicKey()),
		Signers:        []ssh.Signer{s.clientKey},
	}
}

