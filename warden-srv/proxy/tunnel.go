package proxy

import (
	"net"
	"strings"
	"sync"

	"github.com/wardenproxy/warden/warden-srv/logger"
)

var tunnelLog = logger.Component("tunnel")

// HandleConnect implements the HTTPS CONNECT tunnel path (§4.4). head is the
// first buffer already read from the client connection, beginning with the
// literal "CONNECT". The caller is responsible for closing clientConn on
// return.
func (h *Handler) HandleConnect(clientConn net.Conn, head []byte) {
	requestLine, _, ok := cutLine(head)
	if !ok {
		tunnelLog.Debug("no complete CONNECT request line in initial read, closing")
		return
	}

	fields := strings.Fields(requestLine)
	if len(fields) < 2 {
		err := NewHTTPError(ErrCodeHTTPMalformedRequest, GetErrorDescription(ErrCodeHTTPMalformedRequest), nil)
		tunnelLog.Debug("%v: request line %q, closing", err, requestLine)
		return
	}

	hostPort := fields[1]
	host, port, splitErr := net.SplitHostPort(hostPort)
	if splitErr != nil {
		host = hostPort
		port = "443"
	}
	host = strings.ToLower(host)

	if host == "" || h.isBlocked(host) {
		err := NewAccessControlError(ErrCodeBlocklistMatch, GetErrorDescription(ErrCodeBlocklistMatch), nil)
		tunnelLog.Info("%v: host %q", err, host)
		_ = h.stats.RecordBlocked(requestCtx, host)
		_, _ = clientConn.Write(NewBlockedResponse(host))
		return
	}

	originConn, dialErr := h.dial("tcp", net.JoinHostPort(host, port))
	if dialErr != nil {
		err := NewConnectionError(ErrCodeUpstreamConnectFailed, GetErrorDescription(ErrCodeUpstreamConnectFailed), dialErr)
		tunnelLog.Warn("%v: %s", err, hostPort)
		_, _ = clientConn.Write(NewTunnelFailureResponse(hostPort))
		return
	}
	defer originConn.Close()

	if _, writeErr := clientConn.Write([]byte(TunnelEstablishedLine)); writeErr != nil {
		err := NewHTTPError(ErrCodeHTTPResponseWriteFailed, GetErrorDescription(ErrCodeHTTPResponseWriteFailed), writeErr)
		tunnelLog.Warn("%v", err)
		return
	}

	_ = h.stats.RecordRequest(requestCtx, "CONNECT", host, false)
	relay(clientConn, originConn)
}

// relay performs the opaque bidirectional byte copy a CONNECT tunnel exists
// for (§4.4 step 5, §7 "Tunnel opacity"): two independent unidirectional
// copy tasks, each using an 8 KiB buffer, joined before returning.
func relay(clientConn, originConn net.Conn) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		relayDirection(originConn, clientConn)
	}()
	go func() {
		defer wg.Done()
		relayDirection(clientConn, originConn)
	}()

	wg.Wait()
}

// relayDirection copies from src to dst using a pooled 8 KiB buffer,
// returning when src reaches EOF or either side errors.
func relayDirection(dst, src net.Conn) {
	buf := getTunnelBuffer()
	defer putTunnelBuffer(buf)

	for {
		n, readErr := src.Read(*buf)
		if n > 0 {
			if _, writeErr := dst.Write((*buf)[:n]); writeErr != nil {
				return
			}
		}
		if readErr != nil {
			return
		}
	}
}
