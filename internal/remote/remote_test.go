package remote

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"codeberg.org/mutker/hwsnap/internal/errors"
	"codeberg.org/mutker/hwsnap/internal/host"
	"codeberg.org/mutker/hwsnap/internal/probe"
	"codeberg.org/mutker/hwsnap/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, s *testServer, cfg Config) *Host {
	t.Helper()
	h, err := Dial(context.Background(), s.target(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })

	return h
}

func TestDialDescribesTarget(t *testing.T) {
	s := newTestServer(t, map[string]reply{})
	h := dial(t, s, s.config(t))

	assert.Equal(t, "linux", h.OS(context.Background()))
	assert.Equal(t, Info{OS: "linux", Hostname: "testbox", Kernel: "6.1.0-18-amd64"}, h.Info())
}

func TestDialDoesNotWaitForStalledUname(t *testing.T) {
	s := newTestServer(t, map[string]reply{
		"uname -snr": {hang: true},
	})
	cfg := s.config(t)
	cfg.ConnectTimeout = 500 * time.Millisecond

	start := time.Now()
	h := dial(t, s, cfg)
	assert.Less(t, time.Since(start), 3*time.Second)

	assert.Equal(t, Info{OS: "linux"}, h.Info())
}

func TestReadFileAndRealpath(t *testing.T) {
	s := newTestServer(t, map[string]reply{
		"cat -- /sys/class/hwmon/hwmon0/name":        {stdout: "k10temp\n"},
		"cat -- /sys/missing":                        {stderr: "cat: /sys/missing: No such file or directory\n", status: 1},
		"cat -- /sys/firmware/dmi/tables/DMI":        {stderr: "cat: /sys/firmware/dmi/tables/DMI: Permission denied\n", status: 1},
		"readlink -f -- /sys/class/drm/card0/device": {stdout: "/sys/devices/pci0000:00/0000:00:01.0/0000:01:00.0\n"},
	})
	h := dial(t, s, s.config(t))
	ctx := context.Background()

	data, err := h.ReadFile(ctx, "/sys/class/hwmon/hwmon0/name")
	require.NoError(t, err)
	assert.Equal(t, "k10temp\n", string(data))

	_, err = h.ReadFile(ctx, "/sys/missing")
	assert.True(t, errors.HasCode(err, host.ErrPathNotFound), err)

	_, err = h.ReadFile(ctx, "/sys/firmware/dmi/tables/DMI")
	assert.True(t, errors.HasCode(err, host.ErrPermissionDenied), err)

	resolved, err := h.Realpath(ctx, "/sys/class/drm/card0/device")
	require.NoError(t, err)
	assert.Equal(t, "/sys/devices/pci0000:00/0000:00:01.0/0000:01:00.0", resolved)
}

func TestRunMapsFailures(t *testing.T) {
	s := newTestServer(t, map[string]reply{
		"sudo -n dmidecode -t 17": {stderr: "sudo: a password is required\n", status: 1},
		"sensors -A":              {stdout: "partial\n", stderr: "oops\n", status: 2},
		"echo 'a b'":              {stdout: "a b\n"},
	})
	h := dial(t, s, s.config(t))
	ctx := context.Background()

	_, err := h.Run(ctx, "sudo", "-n", "dmidecode", "-t", "17")
	assert.True(t, errors.HasCode(err, host.ErrPermissionDenied), err)

	_, err = h.Run(ctx, "nvidia-smi", "-L")
	assert.True(t, errors.HasCode(err, host.ErrCommandNotFound), err)

	out, err := h.Run(ctx, "sensors", "-A")
	assert.True(t, errors.HasCode(err, host.ErrCommandFailed), err)
	assert.Equal(t, "partial\n", string(out))

	out, err = h.Run(ctx, "echo", "a b")
	require.NoError(t, err)
	assert.Equal(t, "a b\n", string(out))
}

func TestGlob(t *testing.T) {
	script, err := globScript("/sys/class/hwmon/hwmon*")
	require.NoError(t, err)

	s := newTestServer(t, map[string]reply{
		script: {stdout: "/sys/class/hwmon/hwmon1\n/sys/class/hwmon/hwmon0\n"},
	})
	h := dial(t, s, s.config(t))

	matches, err := h.Glob(context.Background(), "/sys/class/hwmon/hwmon*")
	require.NoError(t, err)
	assert.Equal(t, []string{"/sys/class/hwmon/hwmon0", "/sys/class/hwmon/hwmon1"}, matches)

	_, err = h.Glob(context.Background(), "/sys/$(reboot)/*")
	assert.True(t, errors.HasCode(err, errors.ErrInvalidArgument))
	assert.NotContains(t, s.commandsRun(), "/sys/$(reboot)/*")
}

func TestReadDir(t *testing.T) {
	script, err := dirScript("/sys/class/hwmon/hwmon0")
	require.NoError(t, err)

	s := newTestServer(t, map[string]reply{
		script: {stdout: "/sys/class/hwmon/hwmon0/name:k10temp\n" +
			"/sys/class/hwmon/hwmon0/temp1_input:45250\n" +
			"/sys/class/hwmon/hwmon0/uevent:OF_NAME=k10temp\n" +
			"/sys/class/hwmon/hwmon0/uevent:OF_COMPATIBLE_N=0\n" +
			"/sys/class/hwmon/hwmon0/device/vendor:0x1022\n"},
	})
	h := dial(t, s, s.config(t))

	files, err := h.ReadDir(context.Background(), "/sys/class/hwmon/hwmon0")
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{
		"name":        []byte("k10temp\n"),
		"temp1_input": []byte("45250\n"),
		"uevent":      []byte("OF_NAME=k10temp\nOF_COMPATIBLE_N=0\n"),
	}, files)

	_, err = h.ReadDir(context.Background(), "/sys/class/hwmon/hwmon*")
	assert.True(t, errors.HasCode(err, errors.ErrInvalidArgument))
	_, err = h.ReadDir(context.Background(), "/sys/$(reboot)")
	assert.True(t, errors.HasCode(err, errors.ErrInvalidArgument))
}

func TestHwmonReadsEachDirectoryInOneCommand(t *testing.T) {
	glob, err := globScript("/sys/class/hwmon/hwmon*")
	require.NoError(t, err)
	dir, err := dirScript("/sys/class/hwmon/hwmon0")
	require.NoError(t, err)

	s := newTestServer(t, map[string]reply{
		glob: {stdout: "/sys/class/hwmon/hwmon0\n"},
		dir:  {stdout: "/sys/class/hwmon/hwmon0/name:k10temp\n" +
			"/sys/class/hwmon/hwmon0/temp1_input:45250\n" +
			"/sys/class/hwmon/hwmon0/temp1_label:Tctl\n"},
	})
	h := dial(t, s, s.config(t))

	res := probe.Hwmon{}.Probe(context.Background(), h)
	require.Nil(t, res.Err)
	require.Len(t, res.Readings, 1)
	assert.Equal(t, "k10temp", res.Readings[0].Device)
	assert.Equal(t, "Tctl", res.Readings[0].Label)
	assert.Equal(t, 45250.0, res.Readings[0].Value)
	assert.Nil(t, res.Readings[0].Critical)

	assert.Equal(t, []string{"uname -snr", glob, dir}, s.commandsRun())
}

func TestRunKillsSessionOnTimeout(t *testing.T) {
	s := newTestServer(t, map[string]reply{
		"sleep 60": {hang: true},
	})
	h := dial(t, s, s.config(t))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := h.Run(ctx, "sleep", "60")
	assert.True(t, errors.HasCode(err, host.ErrTimeout), err)
	assert.Less(t, time.Since(start), 2*time.Second)

	select {
	case sig := <-s.signals:
		assert.Equal(t, "KILL", sig)
	case <-time.After(2 * time.Second):
		t.Fatal("session was not signalled")
	}
}

func TestDialRejectsUnknownHostKey(t *testing.T) {
	s := newTestServer(t, map[string]reply{})
	cfg := s.config(t)
	cfg.KnownHostsFile = s.knownHosts(t, newSigner(t).PublicKey())

	_, err := Dial(context.Background(), s.target(), cfg)
	assert.True(t, errors.HasCode(err, ErrHandshake), err)

	cfg.InsecureIgnoreHostKey = true
	h, err := Dial(context.Background(), s.target(), cfg)
	require.NoError(t, err)
	h.Close()
}

func TestDialRejectsWrongUser(t *testing.T) {
	s := newTestServer(t, map[string]reply{})
	target := s.target()
	target.User = "root"

	_, err := Dial(context.Background(), target, s.config(t))
	assert.True(t, errors.HasCode(err, ErrHandshake), err)
}

func TestDialFailures(t *testing.T) {
	s := newTestServer(t, map[string]reply{})
	cfg := s.config(t)

	t.Run("refused", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		port := ln.Addr().(*net.TCPAddr).Port
		ln.Close()

		target := telemetry.RemoteTarget{Host: "127.0.0.1", User: testUser, Port: port}
		_, err = Dial(context.Background(), target, cfg)
		assert.True(t, errors.HasCode(err, ErrDial), err)
	})

	t.Run("silent server", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer ln.Close()
		go func() {
			conn, err := ln.Accept()
			if err == nil {
				defer conn.Close()
				time.Sleep(3 * time.Second)
			}
		}()

		_, port, _ := net.SplitHostPort(ln.Addr().String())
		p, _ := strconv.Atoi(port)
		quick := cfg
		quick.ConnectTimeout = 200 * time.Millisecond

		start := time.Now()
		_, err = Dial(context.Background(), telemetry.RemoteTarget{Host: "127.0.0.1", User: testUser, Port: p}, quick)
		assert.True(t, errors.HasCode(err, ErrHandshake), err)
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("no credentials", func(t *testing.T) {
		bare := cfg
		bare.Signers = nil

		_, err := Dial(context.Background(), s.target(), bare)
		assert.True(t, errors.HasCode(err, ErrNoAuth), err)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := Dial(context.Background(), telemetry.RemoteTarget{Host: "127.0.0.1"}, cfg)
		assert.True(t, errors.HasCode(err, errors.ErrInvalidArgument), err)
	})

	t.Run("unreadable identity file", func(t *testing.T) {
		withFile := cfg
		withFile.IdentityFiles = []string{"/nonexistent/id_ed25519"}

		_, err := Dial(context.Background(), s.target(), withFile)
		assert.True(t, errors.HasCode(err, ErrIdentityFile), err)
	})
}
