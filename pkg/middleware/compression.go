package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

var gzipPool = sync.Pool{
	New: func() interface{} {
		gz, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return gz
	},
}

// gzipWriter decides on the first body write whether to compress, once the status and
// content type are known. Bodiless responses pass through untouched.
type gzipWriter struct {
	gin.ResponseWriter
	gz      *gzip.Writer
	decided bool
	active  bool
}

func (g *gzipWriter) decide() {
	if g.decided {
		return
	}
	g.decided = true

	status := g.Status()
	h := g.Header()
	if status < http.StatusOK || status == http.StatusNoContent || status == http.StatusNotModified {
		return
	}
	if h.Get("Content-Encoding") != "" || !compressible(h.Get("Content-Type")) {
		return
	}

	g.active = true
	h.Set("Content-Encoding", "gzip")
	h.Add("Vary", "Accept-Encoding")
	h.Del("Content-Length")
}

func (g *gzipWriter) Write(data []byte) (int, error) {
	g.decide()
	if !g.active {
		return g.ResponseWriter.Write(data)
	}
	return g.gz.Write(data)
}

func (g *gzipWriter) WriteString(s string) (int, error) {
	return g.Write([]byte(s))
}

// Compression gzips textual responses for clients that accept it. Catalog syncs
// return every collection at once and compress well.
func Compression() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !acceptsGzip(c.Request) {
			c.Next()
			return
		}

		gz := gzipPool.Get().(*gzip.Writer)
		gz.Reset(c.Writer)
		w := &gzipWriter{ResponseWriter: c.Writer, gz: gz}
		c.Writer = w

		defer func() {
			if w.active {
				_ = gz.Close()
			}
			gz.Reset(io.Discard)
			gzipPool.Put(gz)
		}()

		c.Next()
	}
}

func compressible(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "json") || strings.HasPrefix(ct, "text/") || strings.Contains(ct, "javascript")
}

func acceptsGzip(req *http.Request) bool {
	if req.Method == http.MethodHead {
		return false
	}
	if !strings.Contains(req.Header.Get("Accept-Encoding"), "gzip") {
		return false
	}
	// Websocket upgrades take over the connection.
	return !strings.Contains(strings.ToLower(req.Header.Get("Connection")), "upgrade")
}
