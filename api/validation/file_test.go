package validation

import (
	"bytes"
	"errors"
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"
)

func openAsMultipart(t *testing.T, content []byte) multipart.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("Failed to write upload: %v", err)
	}
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open upload: %v", err)
	}
	t.Cleanup(func() { file.Close() })
	return file
}

func TestDetectFileType(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		want    FileType
	}{
		{"dwg", []byte("AC1032 binary drawing data"), FileTypeDWG},
		{"dxf", []byte("  0\r\nSECTION\r\n  2\r\nHEADER\r\n"), FileTypeDXF},
		{"png", append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 16)...), FileTypePNG},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}, FileTypeJPEG},
		{"pdf", []byte("%PDF-1.7 content"), FileTypePDF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := openAsMultipart(t, tt.content)

			got, err := DetectFileType(file)
			if err != nil {
				t.Fatalf("DetectFileType failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}

			// Reader must be rewound for the subsequent write-out.
			buf := make([]byte, 4)
			if _, err := file.Read(buf); err != nil {
				t.Fatalf("Read after detect failed: %v", err)
			}
			if !bytes.Equal(buf, tt.content[:4]) {
				t.Error("Expected reader rewound to start")
			}
		})
	}
}

func TestDetectFileType_Unknown(t *testing.T) {
	file := openAsMultipart(t, []byte("not a known header"))

	_, err := DetectFileType(file)
	if !errors.Is(err, ErrInvalidFileType) {
		t.Errorf("Expected ErrInvalidFileType, got %v", err)
	}
}

func TestMatchesFormat(t *testing.T) {
	if !MatchesFormat(FileTypeDWG, "dwg") {
		t.Error("Expected dwg to match FileTypeDWG")
	}
	if !MatchesFormat(FileTypeJPEG, "jpg") {
		t.Error("Expected jpg alias to match FileTypeJPEG")
	}
	if MatchesFormat(FileTypeDWG, "dxf") {
		t.Error("Expected dwg content not to match dxf")
	}
	if MatchesFormat(FileTypePNG, "xyz") {
		t.Error("Expected unknown format not to match")
	}
}
