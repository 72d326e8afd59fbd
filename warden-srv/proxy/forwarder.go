package proxy

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/wardenproxy/warden/warden-srv/logger"
)

var forwarderLog = logger.Component("forwarder")

// HandleHTTP implements the plaintext GET forwarding path (§4.3). head is
// the first buffer already read from the client connection (up to 4096
// bytes, §4.3 step 1); the caller is responsible for the initial read and
// for closing clientConn on return.
func (h *Handler) HandleHTTP(clientConn net.Conn, head []byte) {
	requestLine, rest, ok := cutLine(head)
	if !ok {
		forwarderLog.Debug("no complete request line in initial read, closing")
		return
	}

	fields := strings.Fields(requestLine)
	if len(fields) < 3 {
		err := NewHTTPError(ErrCodeHTTPMalformedRequest, GetErrorDescription(ErrCodeHTTPMalformedRequest), nil)
		forwarderLog.Debug("%v: request line %q, closing", err, requestLine)
		return
	}
	method, target, httpVersion := fields[0], fields[1], fields[2]

	if method != "GET" {
		err := NewHTTPError(ErrCodeHTTPMethodNotSupported, GetErrorDescription(ErrCodeHTTPMethodNotSupported), nil)
		forwarderLog.Debug("%v: method %q, closing", err, method)
		return
	}

	u, parseErr := url.ParseRequestURI(target)
	if parseErr != nil || u.Host == "" {
		err := NewHTTPError(ErrCodeHTTPMalformedRequest, GetErrorDescription(ErrCodeHTTPMalformedRequest), parseErr)
		forwarderLog.Debug("%v: request target %q", err, target)
		return
	}
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if port == "" {
		port = "80"
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path = path + "?" + u.RawQuery
	}

	if host == "" || h.isBlocked(host) {
		err := NewAccessControlError(ErrCodeBlocklistMatch, GetErrorDescription(ErrCodeBlocklistMatch), nil)
		forwarderLog.Info("%v: host %q", err, host)
		_ = h.stats.RecordBlocked(requestCtx, host)
		_, _ = clientConn.Write(NewBlockedResponse(host))
		return
	}

	if cached, hit := h.cache.Get(target); hit {
		forwarderLog.Debug("cache hit for %q", target)
		_ = h.stats.RecordRequest(requestCtx, method, host, true)
		_, _ = clientConn.Write(cached)
		return
	}

	originConn, dialErr := h.dial("tcp", net.JoinHostPort(host, port))
	if dialErr != nil {
		err := NewConnectionError(ErrCodeDialFailed, GetErrorDescription(ErrCodeDialFailed), dialErr)
		forwarderLog.Warn("%v: %s:%s", err, host, port)
		return
	}
	defer originConn.Close()

	originRequest := buildOriginRequest(method, path, httpVersion, rest)
	if _, writeErr := originConn.Write(originRequest); writeErr != nil {
		err := NewHTTPError(ErrCodeHTTPRequestWriteFailed, GetErrorDescription(ErrCodeHTTPRequestWriteFailed), writeErr)
		forwarderLog.Warn("%v", err)
		return
	}

	var buf bytes.Buffer
	if _, readErr := copyBuffer(&buf, originConn); readErr != nil && readErr != io.EOF {
		err := NewHTTPError(ErrCodeHTTPResponseReadFailed, GetErrorDescription(ErrCodeHTTPResponseReadFailed), readErr)
		forwarderLog.Warn("%v", err)
		// Whatever was read so far is still written back, matching the
		// reference's "client may receive a truncated response" policy.
	}

	if _, writeErr := clientConn.Write(buf.Bytes()); writeErr != nil {
		err := NewHTTPError(ErrCodeHTTPResponseWriteFailed, GetErrorDescription(ErrCodeHTTPResponseWriteFailed), writeErr)
		forwarderLog.Warn("%v", err)
		return
	}

	h.cache.Put(target, buf.Bytes())
	_ = h.stats.RecordRequest(requestCtx, method, host, false)
}

// cutLine splits buf at the first line terminator, returning the line
// (without its terminator) and the remainder of buf. ok is false if no
// terminator was found.
func cutLine(buf []byte) (line string, rest []byte, ok bool) {
	idx := bytes.IndexByte(buf, '\n')
	if idx < 0 {
		return "", nil, false
	}
	lineBytes := buf[:idx]
	lineBytes = bytes.TrimSuffix(lineBytes, []byte("\r"))
	return string(lineBytes), buf[idx+1:], true
}

// buildOriginRequest rewrites the client's absolute-form request into
// origin-form (§4.3 step 7), forwarding every header line from rest except
// any whose name case-insensitively begins with "proxy-connection" and any
// whose name is not a valid HTTP header field name. Lines without a colon
// are forwarded unchanged.
func buildOriginRequest(method, path, httpVersion string, rest []byte) []byte {
	var out bytes.Buffer
	fmt.Fprintf(&out, "%s %s %s\r\n", method, path, httpVersion)

	scanner := bufio.NewScanner(bytes.NewReader(rest))
	for scanner.Scan() {
		headerLine := strings.TrimRight(scanner.Text(), "\r")
		if headerLine == "" {
			break
		}
		name, _, found := strings.Cut(headerLine, ":")
		if found && strings.HasPrefix(strings.ToLower(strings.TrimSpace(name)), "proxy-connection") {
			continue
		}
		if found && !httpguts.ValidHeaderFieldName(strings.TrimSpace(name)) {
			continue
		}
		out.WriteString(headerLine)
		out.WriteString("\r\n")
	}
	out.WriteString("\r\n")
	return out.Bytes()
}
