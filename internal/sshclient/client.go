// Package sshclient opens interactive SSH sessions on Ploi servers.
package sshclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"

	"github.com/jbweber/homelab/ploi/internal/domain"
)

// DefaultPort is used when the API did not report an SSH port.
const DefaultPort = 22

var (
	// ErrNotTerminal is returned when stdin cannot be put into raw mode
	ErrNotTerminal = errors.New("stdin is not a terminal")

	// ErrEncryptedKey is returned for passphrase protected private keys
	ErrEncryptedKey = errors.New("encrypted private keys are not supported")

	// ErrNoAuth is returned when no key is configured
	ErrNoAuth = errors.New("no SSH private key configured")
)

// Target is where a session connects to.
type Target struct {
	User string
	Host string
	Port int
}

// TargetFor returns the SSH target of a server for user.
func TargetFor(s domain.Server, user string) Target {
	port := s.SSHPort
	if port <= 0 {
		port = DefaultPort
	}
	return Target{User: user, Host: s.IPAddress, Port: port}
}

// Address returns host:port.
func (t Target) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// Options configures Connect.
type Options struct {
	KeyPath        string
	KnownHostsPath string // host keys are not verified when empty or missing

	Stdin  *os.File
	Stdout io.Writer
	Stderr io.Writer
}

// Connect opens an interactive shell on the target and blocks until it exits.
func Connect(ctx context.Context, t Target, opts Options) error {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	fd := int(opts.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return ErrNotTerminal
	}

	hostKeys, err := hostKeyCallback(opts.KnownHostsPath)
	if err != nil {
		return err
	}
	config, err := BuildClientConfig(t.User, opts.KeyPath, hostKeys)
	if err != nil {
		return err
	}

	client, err := dial(ctx, t.Address(), config)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", t.Address(), err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	defer session.Close()

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return err
	}
	defer term.Restore(fd, oldState)

	w, h, err := term.GetSize(fd)
	if err != nil {
		w, h = 80, 24
	}
	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty("xterm-256color", h, w, modes); err != nil {
		return fmt.Errorf("request pty: %w", err)
	}
	session.Stdin = opts.Stdin
	session.Stdout = opts.Stdout
	session.Stderr = opts.Stderr

	if err := session.Shell(); err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			session.Close()
		case <-done:
		}
	}()
	return session.Wait()
}

// dial connects with ctx governing the TCP dial and handshake.
func dial(ctx context.Context, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})
	return ssh.NewClient(c, chans, reqs), nil
}

// BuildClientConfig authenticates as user with the private key at keyPath.
func BuildClientConfig(user, keyPath string, hostKeys ssh.HostKeyCallback) (*ssh.ClientConfig, error) {
	if keyPath == "" {
		return nil, ErrNoAuth
	}
	keyAuth, err := readPrivateKey(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	if hostKeys == nil {
		hostKeys = ssh.InsecureIgnoreHostKey()
	}
	return &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{keyAuth},
		HostKeyCallback: hostKeys,
	}, nil
}

func readPrivateKey(path string) (ssh.AuthMethod, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("%s: %w", path, ErrEncryptedKey)
		}
		return nil, err
	}
	return ssh.PublicKeys(signer), nil
}

// hostKeyCallback verifies against known_hosts when the file exists.
func hostKeyCallback(path string) (ssh.HostKeyCallback, error) {
	if path == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("load known hosts: %w", err)
	}
	return cb, nil
}
