package transport

import (
	"errors"
	"net"
	"os"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

var errNotOpen = errors.New("transport: connection not open")

// agentAuthMethods builds an ssh.AuthMethod from the running
// ssh-agent (SSH_AUTH_SOCK), the only credential source this transport
// uses — it never reads key files, prompts for, or stores a password.
func agentAuthMethods() ([]ssh.AuthMethod, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, errors.New("SSH_AUTH_SOCK is not set; an ssh-agent with the server key must be running")
	}

	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, err
	}

	client := agent.NewClient(conn)
	return []ssh.AuthMethod{ssh.PublicKeysCallback(client.Signers)}, nil
}
