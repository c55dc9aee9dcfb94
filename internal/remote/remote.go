// Package remote implements host.Host over an SSH connection. Files are
// read with cat and every command runs in its own session.
package remote

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/hwsnap/internal/errors"
	"codeberg.org/mutker/hwsnap/internal/host"
	"codeberg.org/mutker/hwsnap/internal/telemetry"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	DefaultPort           = 22
	DefaultConnectTimeout = 5 * time.Second
)

var defaultIdentityFiles = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

type Config struct {
	Port           int
	ConnectTimeout time.Duration
	// IdentityFiles are private keys to offer. When empty the usual files
	// under ~/.ssh are tried and silently skipped if absent.
	IdentityFiles []string
	// KnownHostsFile defaults to ~/.ssh/known_hosts.
	KnownHostsFile        string
	InsecureIgnoreHostKey bool
	UseAgent              bool
	// AgentSocket defaults to $SSH_AUTH_SOCK.
	AgentSocket string
	// Signers are offered before keys from files and the agent.
	Signers []ssh.Signer
}

// Info is what uname reported about the remote machine.
type Info struct {
	OS       string
	Hostname string
	Kernel   string
}

type Host struct {
	client    *ssh.Client
	agentConn net.Conn
	info      Info
}

var (
	_ host.Host      = (*Host)(nil)
	_ host.DirReader = (*Host)(nil)
)

// Dial connects and authenticates to target. The connect timeout bounds
// both the TCP dial and the SSH handshake.
func Dial(ctx context.Context, target telemetry.RemoteTarget, cfg Config) (*Host, error) {
	errFactory := errors.New()

	if target.DialHost() == "" || target.User == "" {
		return nil, errFactory.WithMessage(errors.ErrInvalidArgument, "remote target needs a host and a user")
	}

	hostKeyCallback, err := hostKeyCallback(cfg)
	if err != nil {
		return nil, err
	}

	auth, agentConn, err := authMethods(cfg)
	if err != nil {
		return nil, err
	}

	port := target.Port
	if port == 0 {
		port = cfg.Port
	}
	if port == 0 {
		port = DefaultPort
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	addr := net.JoinHostPort(target.DialHost(), strconv.Itoa(port))

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		closeQuietly(agentConn)
		return nil, errFactory.Wrap(ErrDial, err).WithMessage(addr)
	}

	if deadline, ok := dialCtx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, &ssh.ClientConfig{
		User:            target.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	})
	if err != nil {
		conn.Close()
		closeQuietly(agentConn)
		return nil, errFactory.Wrap(ErrHandshake, err).WithMessage(addr)
	}
	_ = conn.SetDeadline(time.Time{})

	h := &Host{
		client:    ssh.NewClient(c, chans, reqs),
		agentConn: agentConn,
	}

	describeCtx, cancelDescribe := context.WithTimeout(ctx, timeout)
	defer cancelDescribe()
	h.info = h.describe(describeCtx)

	return h, nil
}

// describe falls back to linux when uname cannot be run or does not answer
// in time, linux being the only platform with remote probes.
func (h *Host) describe(ctx context.Context) Info {
	info := Info{OS: "linux"}

	out, err := h.Run(ctx, "uname", "-snr")
	if err != nil {
		return info
	}

	fields := strings.Fields(string(out))
	if len(fields) > 0 {
		info.OS = strings.ToLower(fields[0])
	}
	if len(fields) > 1 {
		info.Hostname = fields[1]
	}
	if len(fields) > 2 {
		info.Kernel = fields[2]
	}

	return info
}

func (h *Host) Info() Info {
	return h.info
}

func (h *Host) OS(context.Context) string {
	return h.info.OS
}

// Close releases the connection and the agent socket.
func (h *Host) Close() error {
	err := h.client.Close()
	closeQuietly(h.agentConn)

	return err
}

func (h *Host) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return h.run(ctx, "cat -- "+quote(path))
}

func (h *Host) Realpath(ctx context.Context, path string) (string, error) {
	out, err := h.run(ctx, "readlink -f -- "+quote(path))
	if err != nil {
		return "", err
	}

	resolved := strings.TrimSpace(string(out))
	if resolved == "" {
		return "", errors.New().WithMessage(host.ErrPathNotFound, path)
	}

	return resolved, nil
}

func (h *Host) Glob(ctx context.Context, pattern string) ([]string, error) {
	script, err := globScript(pattern)
	if err != nil {
		return nil, err
	}

	out, err := h.run(ctx, script)
	if err != nil {
		return nil, err
	}

	var matches []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			matches = append(matches, line)
		}
	}
	sort.Strings(matches)

	return matches, nil
}

// ReadDir fetches every regular file directly under dir with a single grep
// so a sensor directory costs one round trip instead of one per file.
func (h *Host) ReadDir(ctx context.Context, dir string) (map[string][]byte, error) {
	script, err := dirScript(dir)
	if err != nil {
		return nil, err
	}

	out, err := h.run(ctx, script)
	if err != nil {
		return nil, err
	}

	files := make(map[string][]byte)
	prefix := dir + "/"
	for _, line := range strings.Split(string(out), "\n") {
		rest, ok := strings.CutPrefix(line, prefix)
		if !ok {
			continue
		}
		name, value, ok := strings.Cut(rest, ":")
		if !ok || name == "" || strings.Contains(name, "/") {
			continue
		}
		files[name] = append(files[name], value+"\n"...)
	}

	return files, nil
}

func (h *Host) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, quote(name))
	for _, a := range args {
		parts = append(parts, quote(a))
	}

	return h.run(ctx, strings.Join(parts, " "))
}

// run executes cmdline in a fresh session. When ctx ends first the session
// is sent SIGKILL and closed.
func (h *Host) run(ctx context.Context, cmdline string) ([]byte, error) {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return nil, errFactory.Wrap(host.ErrTimeout, err).WithData(cmdline)
	}

	session, err := h.client.NewSession()
	if err != nil {
		return nil, errFactory.Wrap(ErrSession, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmdline)
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		return nil, errFactory.Wrap(host.ErrTimeout, ctx.Err()).WithData(cmdline)
	case err = <-done:
	}

	if err == nil {
		return stdout.Bytes(), nil
	}

	var exitErr *ssh.ExitError
	if !errors.As(err, &exitErr) {
		return nil, errFactory.Wrap(ErrSession, err)
	}

	msg := strings.TrimSpace(stderr.String())
	switch {
	case exitErr.ExitStatus() == 127:
		return nil, errFactory.WithData(host.ErrCommandNotFound, cmdline)
	case host.IsPermissionMessage(msg):
		return nil, errFactory.WithMessage(host.ErrPermissionDenied, firstLine(msg))
	case strings.Contains(msg, "No such file or directory"):
		return nil, errFactory.WithMessage(host.ErrPathNotFound, firstLine(msg))
	default:
		if msg == "" {
			msg = exitErr.Error()
		}
		return stdout.Bytes(), errFactory.WithMessage(host.ErrCommandFailed, firstLine(msg))
	}
}

var (
	safeWord    = regexp.MustCompile(`^[A-Za-z0-9_/.:=,+@%-]+$`)
	safePattern = regexp.MustCompile(`^[A-Za-z0-9_/.:*?\[\]+@,-]+$`)
)

func quote(s string) string {
	if safeWord.MatchString(s) {
		return s
	}

	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// globScript lets the remote shell expand pattern. Only path and wildcard
// characters are accepted since the pattern cannot be quoted.
func globScript(pattern string) (string, error) {
	if !safePattern.MatchString(pattern) {
		return "", errors.New().WithMessage(errors.ErrInvalidArgument, "unsupported glob pattern: "+pattern)
	}

	return `for f in ` + pattern + `; do [ -e "$f" ] && printf '%s\n' "$f"; done; true`, nil
}

// dirScript prints every line of every readable file under dir prefixed
// with the file name. grep exits 2 when some file is unreadable, which is
// expected for write-only sysfs attributes, so only a missing grep fails.
func dirScript(dir string) (string, error) {
	if !safePattern.MatchString(dir) || strings.ContainsAny(dir, "*?[]") {
		return "", errors.New().WithMessage(errors.ErrInvalidArgument, "unsupported directory: "+dir)
	}

	return `grep -s -H -I -d skip . ` + dir + `/*; test $? -ne 127`, nil
}

func authMethods(cfg Config) ([]ssh.AuthMethod, net.Conn, error) {
	errFactory := errors.New()
	signers := append([]ssh.Signer(nil), cfg.Signers...)

	files, explicit := cfg.IdentityFiles, true
	if len(files) == 0 {
		explicit = false
		if home, err := os.UserHomeDir(); err == nil {
			for _, name := range defaultIdentityFiles {
				files = append(files, filepath.Join(home, ".ssh", name))
			}
		}
	}

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			if !explicit {
				continue
			}
			return nil, nil, errFactory.Wrap(ErrIdentityFile, err).WithMessage(path)
		}

		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			if !explicit {
				continue
			}
			return nil, nil, errFactory.Wrap(ErrIdentityFile, err).WithMessage(path)
		}
		signers = append(signers, signer)
	}

	var methods []ssh.AuthMethod
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}

	var agentConn net.Conn
	if cfg.UseAgent {
		socket := cfg.AgentSocket
		if socket == "" {
			socket = os.Getenv("SSH_AUTH_SOCK")
		}
		if socket != "" {
			if conn, err := net.Dial("unix", socket); err == nil {
				agentConn = conn
				methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
			}
		}
	}

	if len(methods) == 0 {
		return nil, nil, errFactory.New(ErrNoAuth)
	}

	return methods, agentConn, nil
}

func hostKeyCallback(cfg Config) (ssh.HostKeyCallback, error) {
	if cfg.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	path := cfg.KnownHostsFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.New().Wrap(ErrKnownHosts, err)
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}

	callback, err := knownhosts.New(path)
	if err != nil {
		return nil, errors.New().Wrap(ErrKnownHosts, err).WithMessage(path)
	}

	return callback, nil
}

func closeQuietly(c net.Conn) {
	if c != nil {
		_ = c.Close()
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}

	return s
}
