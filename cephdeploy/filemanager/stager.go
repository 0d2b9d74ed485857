package filemanager

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path"

	"github.com/varadakari/ceph-deploy/cephdeploy/sshmanager"
)

const stagePrefix = "ceph-deploy."

func stageName() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return stagePrefix + hex.EncodeToString(buf), nil
}

// SFTPStager uploads content into Dir on the remote host.
type SFTPStager struct {
	Conn *sshmanager.Connection
	Dir  string
}

func (s *SFTPStager) Stage(ctx context.Context, data []byte) (string, error) {
	client, err := s.Conn.SFTP(ctx)
	if err != nil {
		return "", err
	}

	name, err := stageName()
	if err != nil {
		return "", err
	}
	dir := s.Dir
	if dir == "" {
		dir = "/tmp"
	}
	remotePath := path.Join(dir, name)

	f, err := client.Create(remotePath)
	if err != nil {
		return "", fmt.Errorf("sftp create %s: %w", remotePath, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("sftp write %s: %w", remotePath, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return remotePath, nil
}

// LocalStager writes content to a temp file when the host is this machine.
type LocalStager struct {
	Dir string
}

func (s *LocalStager) Stage(_ context.Context, data []byte) (string, error) {
	f, err := os.CreateTemp(s.Dir, stagePrefix+"*")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return f.Name(), nil
}
