// Package middleware provides HTTP middleware for the server.
package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"strings"
)

// MaxBodyBytes caps request bodies after decompression.
const MaxBodyBytes = 1 << 20

// DecompressMiddleware decompresses gzip-compressed request bodies. A body that
// claims gzip but is not is passed through untouched.
func DecompressMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Encoding") != "gzip" {
			r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
			next.ServeHTTP(w, r)
			return
		}

		bodyBytes, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
		if err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}

		gr, err := gzip.NewReader(bytes.NewReader(bodyBytes))
		if err != nil {
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			next.ServeHTTP(w, r)
			return
		}
		defer gr.Close()

		r.Header.Del("Content-Encoding")
		r.Body = http.MaxBytesReader(w, gr, MaxBodyBytes)

		next.ServeHTTP(w, r)
	})
}

// CompressMiddleware gzips JSON responses for clients that accept it.
func CompressMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}

		grw := &gzipResponseWriter{ResponseWriter: w}
		defer grw.Close()

		next.ServeHTTP(grw, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	writer  *gzip.Writer
	decided bool
}

func (w *gzipResponseWriter) decide() {
	if w.decided {
		return
	}
	w.decided = true
	if strings.Contains(w.Header().Get("Content-Type"), "application/json") {
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Del("Content-Length")
		w.Header().Add("Vary", "Accept-Encoding")
		w.writer = gzip.NewWriter(w.ResponseWriter)
	}
}

func (w *gzipResponseWriter) WriteHeader(code int) {
	w.decide()
	w.ResponseWriter.WriteHeader(code)
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	w.decide()
	if w.writer == nil {
		return w.ResponseWriter.Write(b)
	}
	return w.writer.Write(b)
}

func (w *gzipResponseWriter) Close() error {
	if w.writer != nil {
		return w.writer.Close()
	}
	return nil
}
