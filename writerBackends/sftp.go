package writerbackends

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"streamcast/logger"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SFTP publishes under remoteRoot on an SSH server. One connection is opened
// lazily and shared by concurrent uploads.
type SFTP struct {
	addr       string
	remoteRoot string
	config     *ssh.ClientConfig

	mu     sync.Mutex
	ssh    *ssh.Client
	client *sftp.Client
}

// NewSFTP builds an SFTP backend. accessInfo should contain at least: host,
// user. Optionally: port (default 22), remoteRoot, password or privateKey
// (base64 or raw PEM).
func NewSFTP(accessInfo map[string]string) (*SFTP, error) {
	host := accessInfo["host"]
	port := accessInfo["port"]
	if port == "" {
		port = "22"
	}
	user := accessInfo["user"]
	if host == "" || user == "" {
		return nil, fmt.Errorf("missing required accessInfo keys: host, user")
	}

	var auths []ssh.AuthMethod
	if privateKey := accessInfo["privateKey"]; privateKey != "" {
		// try to decode as base64, fall back to raw
		keyBytes, err := base64.StdEncoding.DecodeString(privateKey)
		if err != nil {
			keyBytes = []byte(privateKey)
		}
		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		auths = append(auths, ssh.PublicKeys(signer))
	} else if password := accessInfo["password"]; password != "" {
		auths = append(auths, ssh.Password(password))
	} else {
		return nil, fmt.Errorf("no auth method provided; set password or privateKey in accessInfo")
	}

	return &SFTP{
		addr:       net.JoinHostPort(host, port),
		remoteRoot: accessInfo["remoteRoot"],
		config: &ssh.ClientConfig{
			User:            user,
			Auth:            auths,
			HostKeyCallback: ssh.InsecureIgnoreHostKey(),
			Timeout:         10 * time.Second,
		},
	}, nil
}

func (b *SFTP) Name() string { return KindSFTP }

// conn returns the shared client, dialing on first use.
func (b *SFTP) conn(ctx context.Context) (*sftp.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		return b.client, nil
	}

	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", b.addr)
	if err != nil {
		return nil, fmt.Errorf("dial tcp %s: %w", b.addr, err)
	}

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, b.addr, b.config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", b.addr, err)
	}
	sshClient := ssh.NewClient(clientConn, chans, reqs)

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("create sftp client: %w", err)
	}
	b.ssh, b.client = sshClient, client
	return client, nil
}

// reset drops a connection that failed so the next call redials.
func (b *SFTP) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		b.client.Close()
		b.client = nil
	}
	if b.ssh != nil {
		b.ssh.Close()
		b.ssh = nil
	}
}

func (b *SFTP) remotePath(key string) string {
	return path.Join(b.remoteRoot, key)
}

func (b *SFTP) Put(ctx context.Context, key, contentType string, r io.Reader, size int64) (err error) {
	client, err := b.conn(ctx)
	if err != nil {
		return err
	}
	// The client is shared; drop it only when the transport failed.
	defer func() {
		if err != nil && connLost(err) {
			b.reset()
		}
	}()
	remotePath := b.remotePath(key)

	dir := path.Dir(remotePath)
	if err := mkdirAllSFTP(client, dir); err != nil {
		return fmt.Errorf("ensure remote dir %s: %w", dir, err)
	}

	f, err := client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create remote file %s: %w", remotePath, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("copy to remote file %s: %w", remotePath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close remote file %s: %w", remotePath, err)
	}

	logger.Debugf("Uploaded '%s' (%d bytes) to %s", remotePath, size, b.addr)
	return nil
}

// connLost reports whether err means the SSH connection itself is gone.
func connLost(err error) bool {
	if errors.Is(err, sftp.ErrSSHFxConnectionLost) || errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

func (b *SFTP) Fetch(ctx context.Context, location string, w io.Writer) error {
	client, err := b.conn(ctx)
	if err != nil {
		return err
	}
	remotePath := location
	if loc, err := ParseLocation(location); err == nil && loc.Scheme == SchemeSFTP {
		remotePath = loc.Key
	} else if !strings.HasPrefix(location, "/") {
		remotePath = b.remotePath(location)
	}

	f, err := client.Open(remotePath)
	if err != nil {
		return fmt.Errorf("open remote file %s: %w", remotePath, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("read remote file %s: %w", remotePath, err)
	}
	return nil
}

func (b *SFTP) Close() error {
	b.reset()
	return nil
}

// mkdirAllSFTP mimics os.MkdirAll for an SFTP server by creating each segment of the path.
// Concurrent uploads may race to create the same directory, so an existing
// directory after a failed Mkdir counts as success.
func mkdirAllSFTP(client *sftp.Client, dir string) error {
	if dir == "" || dir == "." || dir == "/" {
		return nil
	}

	parts := strings.Split(dir, "/")
	cur := ""
	if strings.HasPrefix(dir, "/") {
		cur = "/"
	}

	for _, p := range parts {
		if p == "" {
			continue
		}
		cur = path.Join(cur, p)
		if _, err := client.Stat(cur); err != nil {
			if !os.IsNotExist(err) {
				return fmt.Errorf("stat %s: %w", cur, err)
			}
			if err := client.Mkdir(cur); err != nil {
				if info, statErr := client.Stat(cur); statErr == nil && info.IsDir() {
					continue
				}
				return fmt.Errorf("mkdir %s: %w", cur, err)
			}
		}
	}
	return nil
}
