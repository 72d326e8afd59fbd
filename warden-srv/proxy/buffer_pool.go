package proxy

import (
	"io"
	"sync"
)

const (
	// DefaultBufferSize is the pooled buffer size used when draining an
	// origin's HTTP response body (§4.3 step 8).
	DefaultBufferSize = 32 * 1024

	// TunnelBufferSize is the pooled buffer size used by each direction of a
	// CONNECT tunnel's relay (§4.4 step 5: "each using an 8 KiB buffer").
	TunnelBufferSize = 8 * 1024
)

// bufferPool is a global pool of byte slices used for copying HTTP response
// bodies. This reduces GC pressure by reusing buffers.
var bufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, DefaultBufferSize)
		return &buf
	},
}

// tunnelBufferPool is a separate pool sized for tunnel relay buffers, kept
// apart from bufferPool so a busy HTTP forwarder and a busy CONNECT tunnel
// don't thrash each other's pool with differently sized buffers.
var tunnelBufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, TunnelBufferSize)
		return &buf
	},
}

// getBuffer retrieves a response-draining buffer from the pool.
// The caller must return the buffer using putBuffer when done.
func getBuffer() *[]byte {
	return bufferPool.Get().(*[]byte)
}

// putBuffer returns a buffer to the pool for reuse.
func putBuffer(buf *[]byte) {
	if buf != nil {
		bufferPool.Put(buf)
	}
}

// getTunnelBuffer retrieves an 8 KiB tunnel relay buffer from the pool.
func getTunnelBuffer() *[]byte {
	return tunnelBufferPool.Get().(*[]byte)
}

// putTunnelBuffer returns a tunnel relay buffer to the pool for reuse.
func putTunnelBuffer(buf *[]byte) {
	if buf != nil {
		tunnelBufferPool.Put(buf)
	}
}

// copyBuffer copies from src to dst, passing a pooled response-draining
// buffer to io.CopyBuffer. io.CopyBuffer does not use that buffer when src
// implements io.WriterTo or dst implements io.ReaderFrom (as *bytes.Buffer
// does in HandleHTTP).
func copyBuffer(dst io.Writer, src io.Reader) (written int64, err error) {
	buf := getBuffer()
	defer putBuffer(buf)
	return io.CopyBuffer(dst, src, *buf)
}
