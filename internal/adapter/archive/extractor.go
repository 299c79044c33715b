package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	"github.com/couchcryptid/conagua-etl/internal/domain"
)

// DefaultMaxMemberBytes caps a single decompressed member.
const DefaultMaxMemberBytes = 256 << 20

var (
	zipMagic      = []byte("PK\x03\x04")
	zipEmptyMagic = []byte("PK\x05\x06")
	gzipMagic     = []byte{0x1f, 0x8b}
)

// Extractor unpacks portal archives into members.
type Extractor struct {
	maxMemberBytes int64
}

// NewExtractor creates an extractor. maxMemberBytes <= 0 uses DefaultMaxMemberBytes.
func NewExtractor(maxMemberBytes int64) *Extractor {
	if maxMemberBytes <= 0 {
		maxMemberBytes = DefaultMaxMemberBytes
	}
	return &Extractor{maxMemberBytes: maxMemberBytes}
}

// Extract returns every regular file in the archive in archive order. Zip and
// single-member gzip archives are recognized by their magic bytes; anything
// else is a *domain.CorruptArchiveError.
func (e *Extractor) Extract(data []byte) ([]domain.Member, error) {
	switch {
	case bytes.HasPrefix(data, zipMagic), bytes.HasPrefix(data, zipEmptyMagic):
		return e.extractZip(data)
	case bytes.HasPrefix(data, gzipMagic):
		return e.extractGzip(data)
	default:
		return nil, &domain.CorruptArchiveError{Err: errors.New("unrecognized archive format")}
	}
}

func (e *Extractor) extractZip(data []byte) ([]domain.Member, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &domain.CorruptArchiveError{Err: err}
	}

	members := make([]domain.Member, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		body, err := e.readZipFile(f)
		if err != nil {
			return nil, &domain.CorruptArchiveError{Err: fmt.Errorf("member %s: %w", f.Name, err)}
		}
		members = append(members, domain.Member{Name: cleanName(f.Name), Data: body})
	}
	return stripCommonPrefix(members), nil
}

func (e *Extractor) readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return e.readLimited(rc)
}

func (e *Extractor) extractGzip(data []byte) ([]domain.Member, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, &domain.CorruptArchiveError{Err: err}
	}
	defer zr.Close()
	zr.Multistream(false)

	body, err := e.readLimited(zr)
	if err != nil {
		return nil, &domain.CorruptArchiveError{Err: err}
	}

	name := cleanName(zr.Name)
	if name == "" {
		name = "data"
	}
	return []domain.Member{{Name: name, Data: body}}, nil
}

func (e *Extractor) readLimited(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, e.maxMemberBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > e.maxMemberBytes {
		return nil, fmt.Errorf("member exceeds %d bytes", e.maxMemberBytes)
	}
	return body, nil
}

// cleanName normalizes separators and drops leading "./" and "/".
func cleanName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimLeft(name, "/")
	if name == "" {
		return ""
	}
	return strings.TrimPrefix(path.Clean(name), "./")
}

// stripCommonPrefix removes a top-level folder shared by every member.
func stripCommonPrefix(members []domain.Member) []domain.Member {
	if len(members) == 0 {
		return members
	}
	first, _, ok := strings.Cut(members[0].Name, "/")
	if !ok {
		return members
	}
	prefix := first + "/"
	for _, m := range members[1:] {
		if !strings.HasPrefix(m.Name, prefix) {
			return members
		}
	}
	for i := range members {
		members[i].Name = strings.TrimPrefix(members[i].Name, prefix)
	}
	return members
}
