package sshclient

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jbweber/homelab/ploi/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func writeKey(t *testing.T, passphrase string) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "test")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "test", []byte(passphrase))
	}
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0600))
	return path
}

func TestTargetFor(t *testing.T) {
	target := TargetFor(domain.Server{IPAddress: "10.0.0.1", SSHPort: 2222}, "ploi")
	assert.Equal(t, Target{User: "ploi", Host: "10.0.0.1", Port: 2222}, target)
	assert.Equal(t, "10.0.0.1:2222", target.Address())

	target = TargetFor(domain.Server{IPAddress: "10.0.0.2"}, "deploy")
	assert.Equal(t, DefaultPort, target.Port)
	assert.Equal(t, "10.0.0.2:22", target.Address())
}

func TestTarget_AddressIPv6(t *testing.T) {
	target := Target{Host: "2001:db8::1", Port: 22}
	assert.Equal(t, "[2001:db8::1]:22", target.Address())
}

func TestBuildClientConfig(t *testing.T) {
	keyPath := writeKey(t, "")

	config, err := BuildClientConfig("ploi", keyPath, nil)
	require.NoError(t, err)
	assert.Equal(t, "ploi", config.User)
	assert.Len(t, config.Auth, 1)
	assert.NotNil(t, config.HostKeyCallback)
}

func TestBuildClientConfig_NoKey(t *testing.T) {
	_, err := BuildClientConfig("ploi", "", nil)
	assert.ErrorIs(t, err, ErrNoAuth)
}

func TestBuildClientConfig_MissingKey(t *testing.T) {
	_, err := BuildClientConfig("ploi", filepath.Join(t.TempDir(), "nope"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuildClientConfig_EncryptedKey(t *testing.T) {
	keyPath := writeKey(t, "hunter2")

	_, err := BuildClientConfig("ploi", keyPath, nil)
	assert.ErrorIs(t, err, ErrEncryptedKey)
}

func TestBuildClientConfig_GarbageKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(path, []byte("not a key"), 0600))

	_, err := BuildClientConfig("ploi", path, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEncryptedKey)
}

func TestHostKeyCallback(t *testing.T) {
	cb, err := hostKeyCallback("")
	require.NoError(t, err)
	assert.NotNil(t, cb)

	cb, err = hostKeyCallback(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.NotNil(t, cb)

	path := filepath.Join(t.TempDir(), "known_hosts")
	require.NoError(t, os.WriteFile(path, []byte(""), 0600))
	cb, err = hostKeyCallback(path)
	require.NoError(t, err)
	assert.NotNil(t, cb)
}

func TestConnect_NotTerminal(t *testing.T) {
	stdin, err := os.CreateTemp(t.TempDir(), "stdin")
	require.NoError(t, err)
	defer stdin.Close()

	err = Connect(context.Background(), Target{User: "ploi", Host: "127.0.0.1", Port: 22}, Options{Stdin: stdin})
	assert.ErrorIs(t, err, ErrNotTerminal)
}

func TestDial_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	config, err := BuildClientConfig("ploi", writeKey(t, ""), nil)
	require.NoError(t, err)

	_, err = dial(context.Background(), addr, config)
	assert.Error(t, err)
}

func TestDial_HandshakeTimeout(t *testing.T) {
	// accepts TCP but never speaks SSH
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			defer c.Close()
		}
	}()

	config, err := BuildClientConfig("ploi", writeKey(t, ""), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = dial(ctx, ln.Addr().String(), config)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
