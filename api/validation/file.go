package validation

import (
	"bytes"
	"io"
	"mime/multipart"
	"strings"
)

type FileType string

const (
	FileTypeDWG  FileType = "dwg"
	FileTypeDXF  FileType = "dxf"
	FileTypePNG  FileType = "png"
	FileTypeJPEG FileType = "jpeg"
	FileTypePDF  FileType = "pdf"
)

// DWG files open with an "AC10xx" version tag (AC1032 = AutoCAD 2018).
var magicBytes = map[FileType][]byte{
	FileTypeDWG:  []byte("AC10"),
	FileTypePNG:  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	FileTypeJPEG: {0xFF, 0xD8, 0xFF},
	FileTypePDF:  {0x25, 0x50, 0x44, 0x46},
}

// DetectFileType sniffs the upload's leading bytes and rewinds the
// reader. Declared filenames and extensions are not trusted.
func DetectFileType(file multipart.File) (FileType, error) {
	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", err
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	head := buffer[:n]
	for fileType, signature := range magicBytes {
		if bytes.HasPrefix(head, signature) {
			return fileType, nil
		}
	}
	if looksLikeDXF(head) {
		return FileTypeDXF, nil
	}

	return "", ErrInvalidFileType
}

// looksLikeDXF matches the ASCII DXF group-code preamble: a "0" code
// line followed by a SECTION marker. DWG-style binaries never match.
func looksLikeDXF(head []byte) bool {
	trimmed := bytes.TrimLeft(head, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '0' {
		return false
	}
	return bytes.Contains(head, []byte("SECTION"))
}

// MatchesFormat reports whether the sniffed type agrees with the
// caller's declared source format.
func MatchesFormat(fileType FileType, format string) bool {
	switch strings.ToLower(format) {
	case "dwg":
		return fileType == FileTypeDWG
	case "dxf":
		return fileType == FileTypeDXF
	case "png":
		return fileType == FileTypePNG
	case "jpg", "jpeg":
		return fileType == FileTypeJPEG
	case "pdf":
		return fileType == FileTypePDF
	default:
		return false
	}
}
