package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func echoHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}
	w.Header().Set("Content-Type", contentType)

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("received: " + string(body)))
}

func TestGzipMiddleware(t *testing.T) {
	type want struct {
		statusCode      int
		contentEncoding string
		bodyContains    string
	}

	tests := []struct {
		name        string
		requestBody string
		gzipBody    bool
		headers     map[string]string
		want        want
	}{
		{
			name:        "client accepts gzip, json response compressed",
			requestBody: `{"code":101}`,
			headers: map[string]string{
				"Accept-Encoding": "gzip",
				"Content-Type":    "application/json",
			},
			want: want{
				statusCode:      http.StatusOK,
				contentEncoding: "gzip",
				bodyContains:    `received: {"code":101}`,
			},
		},
		{
			name:        "client accepts gzip, plain text left as is",
			requestBody: "plain",
			headers: map[string]string{
				"Accept-Encoding": "gzip",
				"Content-Type":    "text/plain",
			},
			want: want{
				statusCode:      http.StatusOK,
				contentEncoding: "",
				bodyContains:    "received: plain",
			},
		},
		{
			name:        "client without gzip support",
			requestBody: `{"code":101}`,
			headers: map[string]string{
				"Content-Type": "application/json",
			},
			want: want{
				statusCode:      http.StatusOK,
				contentEncoding: "",
				bodyContains:    `received: {"code":101}`,
			},
		},
		{
			name:        "gzipped request body is decompressed",
			requestBody: `{"product_id":7,"amount":2}`,
			gzipBody:    true,
			headers: map[string]string{
				"Content-Encoding": "gzip",
				"Content-Type":     "application/json",
			},
			want: want{
				statusCode:   http.StatusOK,
				bodyContains: `received: {"product_id":7,"amount":2}`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader = strings.NewReader(tt.requestBody)
			if tt.gzipBody {
				var buf bytes.Buffer
				zw := gzip.NewWriter(&buf)
				if _, err := zw.Write([]byte(tt.requestBody)); err != nil {
					t.Fatalf("gzip write: %v", err)
				}
				if err := zw.Close(); err != nil {
					t.Fatalf("gzip close: %v", err)
				}
				body = &buf
			}

			req := httptest.NewRequest(http.MethodPost, "/", body)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			rec := httptest.NewRecorder()
			GzipMiddleware(http.HandlerFunc(echoHandler)).ServeHTTP(rec, req)

			res := rec.Result()
			defer res.Body.Close()

			if res.StatusCode != tt.want.statusCode {
				t.Fatalf("status = %d, want %d", res.StatusCode, tt.want.statusCode)
			}
			if ce := res.Header.Get("Content-Encoding"); ce != tt.want.contentEncoding {
				t.Fatalf("content-encoding = %q, want %q", ce, tt.want.contentEncoding)
			}

			var respBody []byte
			var err error
			if res.Header.Get("Content-Encoding") == "gzip" {
				zr, zerr := gzip.NewReader(res.Body)
				if zerr != nil {
					t.Fatalf("gzip reader: %v", zerr)
				}
				respBody, err = io.ReadAll(zr)
			} else {
				respBody, err = io.ReadAll(res.Body)
			}
			if err != nil {
				t.Fatalf("read body: %v", err)
			}

			if !strings.Contains(string(respBody), tt.want.bodyContains) {
				t.Fatalf("body = %q, want contains %q", respBody, tt.want.bodyContains)
			}
		})
	}
}
