package sshmanager

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"

	"github.com/varadakari/ceph-deploy/cephdeploy/common"
)

const (
	DefaultPort        = 22
	DefaultDialTimeout = 30 * time.Second
)

// Dialer establishes SSH client connections. Tests substitute a fake.
type Dialer interface {
	Dial(network, addr string, config *ssh.ClientConfig, timeout time.Duration) (*ssh.Client, error)
}

// RealDialer dials with golang.org/x/crypto/ssh.
type RealDialer struct{}

func (RealDialer) Dial(network, addr string, config *ssh.ClientConfig, timeout time.Duration) (*ssh.Client, error) {
	cfg := *config
	cfg.Timeout = timeout
	return ssh.Dial(network, addr, &cfg)
}

// Connection is the single SSH connection owned by one provisioning session.
// It is dialed on first use and reused for every command and file transfer.
type Connection struct {
	Hostname string
	Port     int
	common.Credentials

	Dialer          Dialer
	KeyManager      SSHKeyManager
	HostKeyCallback ssh.HostKeyCallback
	DialTimeout     time.Duration
	Logger          logrus.FieldLogger

	mu     sync.Mutex
	client *ssh.Client
	sftp   *sftp.Client
	agent  *AgentSSHKeyManager
}

// Address returns host:port for dialing.
func (c *Connection) Address() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(c.Hostname, strconv.Itoa(port))
}

func (c *Connection) log() logrus.FieldLogger {
	return common.LoggerOrDiscard(c.Logger).WithField("host", c.Hostname)
}

func (c *Connection) clientConfig() (*ssh.ClientConfig, error) {
	var authMethod ssh.AuthMethod

	if c.Password != "" {
		c.log().Debug("Using password authentication")
		authMethod = ssh.Password(c.Password)
	} else {
		c.log().Debug("Using public key authentication")
		keys, err := c.readKeys()
		if err != nil {
			return nil, err
		}
		authMethod = ssh.PublicKeys(keys...)
	}

	hostKeyCallback := c.HostKeyCallback
	if hostKeyCallback == nil {
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	}

	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            []ssh.AuthMethod{authMethod},
		HostKeyCallback: hostKeyCallback,
	}, nil
}

func (c *Connection) readKeys() ([]ssh.Signer, error) {
	if c.KeyManager != nil {
		return c.KeyManager.ReadPrivateKeys(c.KeyPassphrase)
	}
	if c.KeyPassphrase != "" {
		return FileSSHKeyManager{}.ReadPrivateKeys(c.KeyPassphrase)
	}

	c.closeAgent()
	agentKeys := &AgentSSHKeyManager{}
	keys, err := agentKeys.ReadPrivateKeys("")
	if err == nil {
		c.agent = agentKeys
		return keys, nil
	}
	c.log().WithError(err).Debug("SSH agent unavailable, falling back to key files")
	return FileSSHKeyManager{}.ReadPrivateKeys("")
}

// closeAgent drops the agent socket kept open for signing. Callers hold mu.
func (c *Connection) closeAgent() error {
	if c.agent == nil {
		return nil
	}
	err := c.agent.Close()
	c.agent = nil
	return err
}

// Client returns the connected SSH client, dialing it if needed.
func (c *Connection) Client(ctx context.Context) (*ssh.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}
	if c.Dialer == nil {
		return nil, errors.New("SSH dialer is not initialized")
	}

	config, err := c.clientConfig()
	if err != nil {
		return nil, err
	}

	timeout := c.DialTimeout
	if timeout == 0 {
		timeout = DefaultDialTimeout
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}

	c.log().WithField("address", c.Address()).Debug("Dialing host")
	client, err := c.Dialer.Dial("tcp", c.Address(), config, timeout)
	if err != nil {
		return nil, fmt.Errorf("ssh connection to %s failed: %w", c.Address(), err)
	}
	if client == nil {
		return nil, fmt.Errorf("ssh connection to %s returned no client", c.Address())
	}

	c.client = client
	return client, nil
}

// NewSession opens a new session on the shared connection.
func (c *Connection) NewSession(ctx context.Context) (*ssh.Session, error) {
	client, err := c.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.NewSession()
}

// SFTP returns an SFTP client running over the shared connection.
func (c *Connection) SFTP(ctx context.Context) (*sftp.Client, error) {
	client, err := c.Client(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sftp != nil {
		return c.sftp, nil
	}

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		return nil, fmt.Errorf("failed to create sftp client: %w", err)
	}
	c.sftp = sftpClient
	return sftpClient, nil
}

// Close tears down the SFTP channel, the SSH connection and the agent socket.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.sftp != nil {
		err = c.sftp.Close()
		c.sftp = nil
	}
	if c.client != nil {
		if cerr := c.client.Close(); cerr != nil && err == nil {
			err = cerr
		}
		c.client = nil
	}
	if cerr := c.closeAgent(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
