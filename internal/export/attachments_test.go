package export

import (
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/andybalholm/brotli"
)

func TestIsHTMLDocument(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        []byte
		want        bool
	}{
		{
			name:        "Content-Type为text/html",
			contentType: "text/html; charset=utf-8",
			body:        []byte("%PDF-1.7 ..."),
			want:        true,
		},
		{
			name:        "DOCTYPE开头的登录页",
			contentType: "application/octet-stream",
			body:        []byte("<!DOCTYPE html><html><body>请先登录</body></html>"),
			want:        true,
		},
		{
			name:        "html标签开头",
			contentType: "",
			body:        []byte("  <html><head></head></html>"),
			want:        true,
		},
		{
			name:        "真实PDF内容",
			contentType: "application/pdf",
			body:        []byte("%PDF-1.7\n%âãÏÓ"),
			want:        false,
		},
		{
			name:        "ZIP文件",
			contentType: "application/zip",
			body:        []byte("PK\x03\x04"),
			want:        false,
		},
		{
			name:        "空内容",
			contentType: "",
			body:        []byte{},
			want:        false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isHTMLDocument(tt.contentType, tt.body); got != tt.want {
				t.Errorf("isHTMLDocument() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecompressResponse(t *testing.T) {
	original := []byte("attachment payload for compression roundtrip")

	t.Run("gzip解压", func(t *testing.T) {
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(original); err != nil {
			t.Fatalf("gzip压缩失败: %v", err)
		}
		w.Close()

		got, err := decompressResponse("gzip", buf.Bytes())
		if err != nil {
			t.Fatalf("decompressResponse() error = %v", err)
		}
		if !bytes.Equal(got, original) {
			t.Errorf("gzip解压结果不一致")
		}
	})

	t.Run("brotli解压", func(t *testing.T) {
		var buf bytes.Buffer
		w := brotli.NewWriter(&buf)
		if _, err := w.Write(original); err != nil {
			t.Fatalf("brotli压缩失败: %v", err)
		}
		w.Close()

		got, err := decompressResponse("br", buf.Bytes())
		if err != nil {
			t.Fatalf("decompressResponse() error = %v", err)
		}
		if !bytes.Equal(got, original) {
			t.Errorf("brotli解压结果不一致")
		}
	})

	t.Run("无压缩原样返回", func(t *testing.T) {
		got, err := decompressResponse("", original)
		if err != nil {
			t.Fatalf("decompressResponse() error = %v", err)
		}
		if !bytes.Equal(got, original) {
			t.Errorf("无压缩时应原样返回")
		}
	})

	t.Run("未知编码原样返回", func(t *testing.T) {
		got, err := decompressResponse("zstd", original)
		if err != nil {
			t.Fatalf("decompressResponse() error = %v", err)
		}
		if !bytes.Equal(got, original) {
			t.Errorf("未知编码时应原样返回")
		}
	})
}

func TestCalculateHash(t *testing.T) {
	h1 := calculateHash([]byte("content-a"))
	h2 := calculateHash([]byte("content-a"))
	h3 := calculateHash([]byte("content-b"))

	if h1 != h2 {
		t.Error("相同内容哈希应一致")
	}
	if h1 == h3 {
		t.Error("不同内容哈希不应一致")
	}
	if len(h1) != 64 {
		t.Errorf("SHA-256十六进制长度应为64: got %d", len(h1))
	}
}

func TestAttachmentFilename(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"标准附件URL", "https://lms.example.com/files/syllabus.pdf", "syllabus.pdf"},
		{"带查询参数", "https://lms.example.com/files/notes.docx?v=2", "notes.docx"},
		{"无文件名", "https://lms.example.com/", "attachment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := attachmentFilename(tt.url); got != tt.want {
				t.Errorf("attachmentFilename(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}
