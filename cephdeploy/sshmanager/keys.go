package sshmanager

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

type SSHKeyManager interface {
	ReadPrivateKeys(keyPassphrase string) ([]ssh.Signer, error)
}

// FileSSHKeyManager reads ~/.ssh/id_* private keys.
type FileSSHKeyManager struct {
	// Dir overrides ~/.ssh, mostly for tests.
	Dir string
}

// AgentSSHKeyManager asks the agent listening on SSH_AUTH_SOCK for signers.
// Signing goes through the agent socket, so it stays open until Close.
type AgentSSHKeyManager struct {
	// Socket overrides SSH_AUTH_SOCK.
	Socket string

	mu   sync.Mutex
	conn net.Conn
}

func (km *AgentSSHKeyManager) ReadPrivateKeys(_ string) ([]ssh.Signer, error) {
	socket := km.Socket
	if socket == "" {
		socket = os.Getenv("SSH_AUTH_SOCK")
	}
	if socket == "" {
		return nil, fmt.Errorf("SSH_AUTH_SOCK not set")
	}

	km.mu.Lock()
	defer km.mu.Unlock()

	if km.conn == nil {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return nil, fmt.Errorf("could not connect to SSH agent: %w", err)
		}
		km.conn = conn
	}

	signers, err := agent.NewClient(km.conn).Signers()
	if err == nil && len(signers) == 0 {
		err = fmt.Errorf("no keys found in SSH agent")
	} else if err != nil {
		err = fmt.Errorf("could not get signers from SSH agent: %w", err)
	}
	if err != nil {
		km.conn.Close()
		km.conn = nil
		return nil, err
	}

	return signers, nil
}

// Close releases the agent socket. Signers returned earlier stop working.
func (km *AgentSSHKeyManager) Close() error {
	km.mu.Lock()
	defer km.mu.Unlock()
	if km.conn == nil {
		return nil
	}
	err := km.conn.Close()
	km.conn = nil
	return err
}

func (km FileSSHKeyManager) ReadPrivateKeys(keyPassphrase string) ([]ssh.Signer, error) {
	dir := km.Dir
	if dir == "" {
		dir = filepath.Join(os.Getenv("HOME"), ".ssh")
	}

	files, err := filepath.Glob(filepath.Join(dir, "id_*"))
	if err != nil {
		return nil, err
	}

	var signers []ssh.Signer
	for _, file := range files {
		if strings.HasSuffix(file, ".pub") {
			continue
		}

		keyBytes, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}

		var signer ssh.Signer
		if keyPassphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(keyBytes, []byte(keyPassphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(keyBytes)
		}
		if err != nil {
			// Wrong passphrase or unsupported format, try the next key.
			continue
		}

		signers = append(signers, signer)
	}

	if len(signers) == 0 {
		return nil, fmt.Errorf("no usable private keys in %s", dir)
	}

	return signers, nil
}
