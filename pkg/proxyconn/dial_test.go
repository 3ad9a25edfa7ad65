package proxyconn

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"testing"
	"time"
)

func TestDialDirectConnection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("hello"))
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	conn, meta, err := Dial(context.Background(), Config{
		Host:        host,
		Port:        port,
		ConnectIP:   net.ParseIP(host),
		ConnTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer conn.Close()
	if meta.UsedProxy {
		t.Fatalf("expected UsedProxy = false for a direct connection")
	}

	buf := make([]byte, 5)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Read(buf); err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if string(buf) != "hello" {
		t.Fatalf("got %q, want %q", buf, "hello")
	}
}

func TestDialThroughHTTPProxyCONNECT(t *testing.T) {
	proxyLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create proxy listener: %v", err)
	}
	defer proxyLn.Close()

	go func() {
		conn, err := proxyLn.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		r.ReadString('\n')
		for {
			l, err := r.ReadString('\n')
			if err != nil || l == "\r\n" {
				break
			}
		}
		conn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n"))
		conn.Write([]byte("tunnelled-data"))
		time.Sleep(100 * time.Millisecond)
	}()

	proxyHost, proxyPortStr, _ := net.SplitHostPort(proxyLn.Addr().String())
	proxyPort, _ := strconv.Atoi(proxyPortStr)

	conn, meta, err := Dial(context.Background(), Config{
		Host:        "origin.example.com",
		Port:        443,
		Secure:      true,
		ConnTimeout: 2 * time.Second,
		Proxy: &Proxy{
			Kind: ProxyHTTP,
			Host: proxyHost,
			Port: proxyPort,
		},
	})
	// Dial will attempt a TLS-to-origin handshake after the CONNECT
	// succeeds, which fails against our plaintext "tunnelled-data"
	// stub server; what we're verifying here is that the proxy layer
	// itself succeeded before that point.
	if err == nil {
		conn.Close()
	}
	if !meta.UsedProxy {
		t.Fatalf("expected UsedProxy = true")
	}
}
