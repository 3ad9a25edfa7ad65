package integration

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"io"
	"math/big"
	"net"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/WhileEndless/corehttp"
)

func TestClientHTTPChunked(t *testing.T) {
	ln := listenTCP(t)
	defer ln.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		reader := bufio.NewReader(conn)
		line, _ := reader.ReadString('\n')
		if !strings.Contains(line, "/chunk") {
			t.Errorf("unexpected request line: %s", line)
		}
		for {
			l, err := reader.ReadString('\n')
			if err != nil || l == "\r\n" {
				break
			}
		}
		io.WriteString(conn, "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n")
		io.WriteString(conn, "5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n")
	}()

	addr := ln.Addr().(*net.TCPAddr)
	client := rawhttp.NewClient()
	resp, err := client.Do(context.Background(), "GET", "/chunk", rawhttp.HeaderMap{}, nil, rawhttp.Options{
		Scheme: "http", Host: addr.IP.String(), Port: addr.Port,
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	<-done
	if resp.StatusCode != 200 {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	body := resp.Body.Bytes()
	if string(body) != "hello world" {
		t.Fatalf("body: %q", body)
	}
}

func TestClientHTTPS(t *testing.T) {
	ln := listenTCP(t)
	cert, err := generateSelfSigned()
	if err != nil {
		t.Fatalf("generate cert: %v", err)
	}
	tlsListener := tls.NewListener(ln, &tls.Config{Certificates: []tls.Certificate{cert}})
	defer tlsListener.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := tlsListener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		reader := bufio.NewReader(conn)
		for {
			l, err := reader.ReadString('\n')
			if err != nil || l == "\r\n" {
				break
			}
		}
		io.WriteString(conn, "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok")
	}()

	addr := ln.Addr().(*net.TCPAddr)
	client := rawhttp.NewClient()
	resp, err := client.Do(context.Background(), "GET", "/", rawhttp.HeaderMap{}, nil, rawhttp.Options{
		Scheme: "https", Host: "localhost", Port: addr.Port, InsecureTLS: true,
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	<-done
	if resp.StatusCode != 200 {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	body := resp.Body.Bytes()
	if string(body) != "ok" {
		t.Fatalf("body: %q", body)
	}
}

func TestClientPartialBodyError(t *testing.T) {
	ln := listenTCP(t)
	defer ln.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		reader := bufio.NewReader(conn)
		for {
			l, err := reader.ReadString('\n')
			if err != nil || l == "\r\n" {
				break
			}
		}
		io.WriteString(conn, "HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\nshort")
		conn.Close()
	}()

	addr := ln.Addr().(*net.TCPAddr)
	client := rawhttp.NewClient()
	_, err := client.Do(context.Background(), "GET", "/", rawhttp.HeaderMap{}, nil, rawhttp.Options{
		Scheme: "http", Host: addr.IP.String(), Port: addr.Port,
	})
	<-done
	if err == nil {
		t.Fatal("expected error for truncated body")
	}
}

func TestClientTimings(t *testing.T) {
	ln := listenTCP(t)
	defer ln.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		reader := bufio.NewReader(conn)
		for {
			l, err := reader.ReadString('\n')
			if err != nil || l == "\r\n" {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		io.WriteString(conn, "HTTP/1.1 204 No Content\r\n\r\n")
	}()

	addr := ln.Addr().(*net.TCPAddr)
	client := rawhttp.NewClient()
	resp, err := client.Do(context.Background(), "GET", "/", rawhttp.HeaderMap{}, nil, rawhttp.Options{
		Scheme: "http", Host: addr.IP.String(), Port: addr.Port,
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	<-done
	if resp.Metrics.TotalTime == 0 {
		t.Error("expected non-zero TotalTime")
	}
	if resp.Metrics.TCPConnect == 0 {
		t.Error("expected non-zero TCPConnect")
	}
}

func TestClientContext(t *testing.T) {
	ln := listenTCP(t)
	defer ln.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(200 * time.Millisecond)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	client := rawhttp.NewClient()
	_, err := client.Do(ctx, "GET", "/", rawhttp.HeaderMap{}, nil, rawhttp.Options{
		Scheme: "http", Host: addr.IP.String(), Port: addr.Port,
	})
	<-done
	if err == nil {
		t.Fatal("expected context deadline error")
	}
}

func listenTCP(t *testing.T) net.Listener {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if isPerm(err) {
			t.Skip("network sockets not permitted in sandbox")
		}
		t.Fatalf("listen: %v", err)
	}
	return ln
}

func isPerm(err error) bool {
	if err == nil {
		return false
	}
	if op, ok := err.(*net.OpError); ok {
		if se, ok := op.Err.(*os.SyscallError); ok {
			if se.Err == syscall.EPERM {
				return true
			}
		}
		if strings.Contains(op.Err.Error(), "operation not permitted") {
			return true
		}
	}
	return strings.Contains(err.Error(), "operation not permitted")
}

func generateSelfSigned() (tls.Certificate, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return tls.Certificate{}, err
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		return tls.Certificate{}, err
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})
	return tls.X509KeyPair(certPEM, keyPEM)
}
