package proxy

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenproxy/warden/warden-srv/block"
	"github.com/wardenproxy/warden/warden-srv/cache"
	"github.com/wardenproxy/warden/warden-srv/stats"
)

// fakeOrigin starts a loopback TCP listener that accepts one connection,
// records the raw bytes it received up to the blank line, and replies with
// resp.
func fakeOrigin(t *testing.T, resp string, received chan<- string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		defer ln.Close()

		reader := bufio.NewReader(conn)
		var sb strings.Builder
		for {
			line, err := reader.ReadString('\n')
			sb.WriteString(line)
			if err != nil || line == "\r\n" {
				break
			}
		}
		received <- sb.String()
		conn.Write([]byte(resp))
	}()

	return ln.Addr().String()
}

func newTestHandler(blockSet *block.Set, c *cache.LRU) *Handler {
	if blockSet == nil {
		blockSet = &block.Set{}
	}
	if c == nil {
		c = cache.New(cache.MaxTotalBytes, cache.MaxEntryBytes, 0)
	}
	return NewHandler(blockSet, nil, c, stats.NewDummyCollector(), nil)
}

func runForwarder(h *Handler, requestHead string) string {
	clientSide, serverSide := net.Pipe()
	resultCh := make(chan string, 1)

	go func() {
		buf := make([]byte, 0, 512)
		readBuf := make([]byte, 512)
		clientSide.SetReadDeadline(time.Now().Add(2 * time.Second))
		for {
			n, err := clientSide.Read(readBuf)
			buf = append(buf, readBuf[:n]...)
			if err != nil {
				break
			}
		}
		resultCh <- string(buf)
	}()

	h.HandleHTTP(serverSide, []byte(requestHead))
	serverSide.Close()
	clientSide.Close()

	select {
	case r := <-resultCh:
		return r
	case <-time.After(2 * time.Second):
		return ""
	}
}

func TestHandleHTTPForwardsAndCachesResponse(t *testing.T) {
	received := make(chan string, 1)
	originResp := "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello"

	originAddr := fakeOrigin(t, originResp, received)

	h := newTestHandler(nil, nil)
	target := "http://" + originAddr + "/path?x=1"
	reqHead := "GET " + target + " HTTP/1.1\r\nHost: " + originAddr + "\r\nProxy-Connection: Keep-Alive\r\nX-Test: yes\r\n\r\n"

	resp := runForwarder(h, reqHead)
	assert.Contains(t, resp, "200 OK")
	assert.Contains(t, resp, "hello")

	select {
	case req := <-received:
		assert.Contains(t, req, "GET /path?x=1 HTTP/1.1")
		assert.NotContains(t, strings.ToLower(req), "proxy-connection")
		assert.Contains(t, req, "X-Test: yes")
	case <-time.After(time.Second):
		t.Fatal("origin never received a request")
	}

	cached, hit := h.cache.Get(target)
	require.True(t, hit)
	assert.Equal(t, originResp, string(cached))
}

func TestHandleHTTPCacheHitSkipsOrigin(t *testing.T) {
	h := newTestHandler(nil, nil)
	target := "http://example.test/cached"
	h.cache.Put(target, []byte("HTTP/1.1 200 OK\r\nContent-Length: 3\r\n\r\nabc"))

	reqHead := "GET " + target + " HTTP/1.1\r\nHost: example.test\r\n\r\n"
	resp := runForwarder(h, reqHead)
	assert.Contains(t, resp, "abc")
}

func TestHandleHTTPBlockedHost(t *testing.T) {
	blockSet := &block.Set{}
	blockSet.Add("blocked.test")
	h := newTestHandler(blockSet, nil)

	reqHead := "GET http://blocked.test/ HTTP/1.1\r\nHost: blocked.test\r\n\r\n"
	resp := runForwarder(h, reqHead)
	assert.Contains(t, resp, "403 Forbidden")
	assert.Contains(t, resp, "blocked.test")
}

func TestHandleHTTPRejectsNonGET(t *testing.T) {
	h := newTestHandler(nil, nil)
	reqHead := "POST http://example.test/ HTTP/1.1\r\nHost: example.test\r\n\r\nbody"
	resp := runForwarder(h, reqHead)
	assert.Empty(t, resp)
}

func TestHandleHTTPMalformedRequestLine(t *testing.T) {
	h := newTestHandler(nil, nil)
	resp := runForwarder(h, "GARBAGE\r\n\r\n")
	assert.Empty(t, resp)
}

func TestBuildOriginRequestStripsProxyConnection(t *testing.T) {
	rest := []byte("Host: example.test\r\nProxy-Connection: Keep-Alive\r\nProxy-Connection-Id: 1\r\nAccept: */*\r\n\r\n")
	out := buildOriginRequest("GET", "/", "HTTP/1.1", rest)
	s := string(out)
	assert.Contains(t, s, "GET / HTTP/1.1\r\n")
	assert.Contains(t, s, "Host: example.test")
	assert.Contains(t, s, "Accept: */*")
	assert.NotContains(t, strings.ToLower(s), "proxy-connection")
	assert.True(t, strings.HasSuffix(s, "\r\n\r\n"))
}

func TestCutLine(t *testing.T) {
	line, rest, ok := cutLine([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.True(t, ok)
	assert.Equal(t, "GET / HTTP/1.1", line)
	assert.Equal(t, "Host: x\r\n\r\n", string(rest))

	_, _, ok = cutLine([]byte("no newline here"))
	assert.False(t, ok)
}

func TestHandleHTTPOriginClosesWithoutResponse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		reader := bufio.NewReader(conn)
		for {
			line, err := reader.ReadString('\n')
			if err != nil || line == "\r\n" {
				break
			}
		}
		conn.Close()
	}()
	defer ln.Close()

	h := newTestHandler(nil, nil)
	target := "http://" + ln.Addr().String() + "/"
	reqHead := "GET " + target + " HTTP/1.1\r\nHost: " + ln.Addr().String() + "\r\n\r\n"
	resp := runForwarder(h, reqHead)
	assert.Empty(t, resp)
}
