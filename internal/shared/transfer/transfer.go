package transfer

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nemanja-m/jobgrid/internal/shared/protocol"
)

// Upload phase wire format, in order:
//
//	script payload (8-byte length + bytes)
//	4-byte data file count
//	per file: 2-byte length-prefixed name, 8-byte length + bytes
//
// Download phase:
//
//	4-byte output file count
//	per file: 2-byte length-prefixed name, 8-byte length + bytes
//
// The side that opened the ephemeral listener bounds its wait for the peer;
// each connection carries a rolling deadline so a stalled peer surfaces as a
// timeout instead of a hang.

// Listen opens a fresh ephemeral listening endpoint and returns it together
// with its port.
func Listen() (net.Listener, int, error) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		return nil, 0, err
	}
	port := ln.Addr().(*net.TCPAddr).Port
	return ln, port, nil
}

// Accept waits for the peer's data connection, bounded by timeout.
func Accept(ln net.Listener, timeout time.Duration) (net.Conn, error) {
	if tcp, ok := ln.(*net.TCPListener); ok {
		if err := tcp.SetDeadline(time.Now().Add(timeout)); err != nil {
			return nil, err
		}
	}
	conn, err := ln.Accept()
	if err != nil {
		return nil, fmt.Errorf("waiting for transfer peer: %w", err)
	}
	return conn, nil
}

// SendUpload streams the script and data files to the worker's upload
// endpoint. Client side of the upload phase.
func SendUpload(conn net.Conn, scriptPath string, dataFiles []string, timeout time.Duration) error {
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}

	if err := sendFile(conn, scriptPath); err != nil {
		return fmt.Errorf("sending script: %w", err)
	}

	if err := protocol.WriteCount(conn, len(dataFiles)); err != nil {
		return err
	}
	for _, path := range dataFiles {
		conn.SetDeadline(time.Now().Add(timeout))
		if err := protocol.WriteName(conn, filepath.Base(path)); err != nil {
			return err
		}
		if err := sendFile(conn, path); err != nil {
			return fmt.Errorf("sending data file %s: %w", path, err)
		}
	}
	return nil
}

// ReceiveUpload reads the script into scriptPath and every declared data file
// into dataDir. Worker side of the upload phase.
func ReceiveUpload(conn net.Conn, scriptPath, dataDir string, timeout time.Duration) error {
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}

	if err := receiveFile(conn, scriptPath); err != nil {
		return fmt.Errorf("receiving script: %w", err)
	}

	count, err := protocol.ReadCount(conn)
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		conn.SetDeadline(time.Now().Add(timeout))
		name, err := protocol.ReadName(conn)
		if err != nil {
			return err
		}
		dest, err := safeJoin(dataDir, name)
		if err != nil {
			return err
		}
		if err := receiveFile(conn, dest); err != nil {
			return fmt.Errorf("receiving data file %s: %w", name, err)
		}
	}
	return nil
}

// SendFiles streams named files to the client's download connection. Worker
// side of the download phase.
func SendFiles(conn net.Conn, paths []string, timeout time.Duration) error {
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}

	if err := protocol.WriteCount(conn, len(paths)); err != nil {
		return err
	}
	for _, path := range paths {
		conn.SetDeadline(time.Now().Add(timeout))
		if err := protocol.WriteName(conn, filepath.Base(path)); err != nil {
			return err
		}
		if err := sendFile(conn, path); err != nil {
			return fmt.Errorf("sending output file %s: %w", path, err)
		}
	}
	return nil
}

// ReceiveFiles reads the declared output files into destDir and returns their
// paths. Client side of the download phase.
func ReceiveFiles(conn net.Conn, destDir string, timeout time.Duration) ([]string, error) {
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}

	count, err := protocol.ReadCount(conn)
	if err != nil {
		return nil, err
	}
	var received []string
	for i := 0; i < count; i++ {
		conn.SetDeadline(time.Now().Add(timeout))
		name, err := protocol.ReadName(conn)
		if err != nil {
			return received, err
		}
		dest, err := safeJoin(destDir, name)
		if err != nil {
			return received, err
		}
		if err := receiveFile(conn, dest); err != nil {
			return received, fmt.Errorf("receiving output file %s: %w", name, err)
		}
		received = append(received, dest)
	}
	return received, nil
}

func sendFile(conn net.Conn, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", path)
	}
	return protocol.WritePayload(conn, f, info.Size())
}

func receiveFile(conn net.Conn, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := protocol.ReadPayload(conn, f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// safeJoin rejects names that would escape the destination directory.
func safeJoin(dir, name string) (string, error) {
	if name == "" || strings.Contains(name, "/") || strings.Contains(name, "\\") || name == ".." {
		return "", fmt.Errorf("unsafe file name %q", name)
	}
	return filepath.Join(dir, name), nil
}
