// Package transport implements the jobs.Transport capability against a
// real SSH session: directory assertion over SFTP, and rsync/ssh
// subprocesses for the actual file push and remote delete, matching the
// command shapes of the original agent's ssh module.
package transport

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"bmu/internal/catalog"
	"bmu/internal/jobs"
)

// DialTimeout bounds how long Open waits for the TCP+SSH handshake.
const DialTimeout = 15 * time.Second

// SSH is a jobs.Transport backed by a single SSH session and its SFTP
// subsystem, plus rsync/ssh subprocesses for Push/Delete — mirroring
// the original agent's division of labor between openssh_sftp_client
// (directory assertion) and shelled-out rsync/ssh (transfer, delete).
type SSH struct {
	knownHostsPath string

	mu     sync.Mutex
	client *ssh.Client
	sftp   *sftp.Client
	cfg    catalog.Config
}

// New constructs an SSH transport that verifies host keys against
// knownHostsPath (typically ~/.ssh/known_hosts, per
// internal/agentdir.Dirs).
func New(knownHostsPath string) *SSH {
	return &SSH{knownHostsPath: knownHostsPath}
}

func (s *SSH) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil && s.sftp != nil
}

// Open dials the server, authenticates via the SSH agent, and starts
// the SFTP subsystem. A failed dial or handshake leaves no partial
// state: any client opened before the failure is closed.
func (s *SSH) Open(ctx context.Context, cfg catalog.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return nil
	}

	hostKeyCallback, err := knownhosts.New(s.knownHostsPath)
	if err != nil {
		return jobs.NewError(jobs.KindTransport, "", fmt.Errorf("load known_hosts: %w", err))
	}

	authMethods, err := agentAuthMethods()
	if err != nil {
		return jobs.NewError(jobs.KindTransport, "", err)
	}

	clientCfg := &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         DialTimeout,
	}

	addr := net.JoinHostPort(cfg.ServerAddress, fmt.Sprintf("%d", cfg.ServerPort))
	client, err := ssh.Dial("tcp", addr, clientCfg)
	if err != nil {
		return jobs.NewError(jobs.KindTransport, "", fmt.Errorf("dial %s: %w", addr, err))
	}

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		_ = client.Close()
		return jobs.NewError(jobs.KindSftp, "", fmt.Errorf("start sftp subsystem: %w", err))
	}

	s.client = client
	s.sftp = sftpClient
	s.cfg = cfg
	return nil
}

func (s *SSH) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	if s.sftp != nil {
		firstErr = s.sftp.Close()
		s.sftp = nil
	}
	if s.client != nil {
		if err := s.client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.client = nil
	}
	return firstErr
}

// EnsureDir asserts path exists on the server: open it over SFTP, and
// on failure, create it. Mirrors assert_client_directory_on_server.
func (s *SSH) EnsureDir(ctx context.Context, path string) error {
	s.mu.Lock()
	client := s.sftp
	s.mu.Unlock()

	if client == nil {
		return jobs.NewError(jobs.KindMissingConnection, "", errNotOpen)
	}

	if _, err := client.Stat(path); err == nil {
		return nil
	}
	if err := client.MkdirAll(path); err != nil {
		return jobs.NewError(jobs.KindSftp, "", fmt.Errorf("create dir %s: %w", path, err))
	}
	return nil
}

// Push shells out to rsync exactly as backup_to_server does: rsync -a
// -e "ssh -p <port>" --exclude='.*' <src> <user>@<host>:'<dst>'.
// opts.StripLeadingComponent mirrors the difference between a trailing
// "/" on src (merge contents) and its absence (nest under src's name)
// by appending or omitting that slash.
func (s *SSH) Push(ctx context.Context, src, dst string, opts jobs.PushOptions) error {
	s.mu.Lock()
	cfg := s.cfg
	open := s.client != nil
	s.mu.Unlock()

	if !open {
		return jobs.NewError(jobs.KindMissingConnection, "", errNotOpen)
	}

	localSrc := src
	if opts.StripLeadingComponent && opts.IsDir && !strings.HasSuffix(localSrc, "/") {
		localSrc += "/"
	}

	connStr := fmt.Sprintf("%s@%s:'%s'", cfg.Username, hostOnly(cfg.ServerAddress), dst)
	cmd := exec.CommandContext(ctx, "rsync",
		"-a",
		"-e", fmt.Sprintf("ssh -p %d", cfg.ServerPort),
		"--exclude=.*",
		localSrc,
		connStr,
	)

	if out, err := cmd.CombinedOutput(); err != nil {
		return jobs.NewError(jobs.KindTransport, "", fmt.Errorf("rsync failed: %w: %s", err, strings.TrimSpace(string(out))))
	}
	return nil
}

// Delete shells out to ssh exactly as delete_from_server does: ssh -p
// <port> <user>@<host> "rm -rf '<dst>'".
func (s *SSH) Delete(ctx context.Context, dst string) error {
	s.mu.Lock()
	cfg := s.cfg
	open := s.client != nil
	s.mu.Unlock()

	if !open {
		return jobs.NewError(jobs.KindMissingConnection, "", errNotOpen)
	}

	connStr := fmt.Sprintf("%s@%s", cfg.Username, hostOnly(cfg.ServerAddress))
	remoteCmd := fmt.Sprintf("rm -rf '%s'", dst)

	cmd := exec.CommandContext(ctx, "ssh",
		"-p", fmt.Sprintf("%d", cfg.ServerPort),
		connStr,
		remoteCmd,
	)

	if out, err := cmd.CombinedOutput(); err != nil {
		return jobs.NewError(jobs.KindTransport, "", fmt.Errorf("ssh delete failed: %w: %s", err, strings.TrimSpace(string(out))))
	}
	return nil
}

func hostOnly(addr string) string {
	addr = strings.TrimPrefix(addr, "http://")
	addr = strings.TrimPrefix(addr, "https://")
	return addr
}
