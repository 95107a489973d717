package metainfo

import (
	"bytes"
	"crypto/sha1"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	anacrolix "github.com/anacrolix/torrent/metainfo"
)

const testAnnounce = "http://tracker.example/announce"

func bstr(s string) string {
	return fmt.Sprintf("%d:%s", len(s), s)
}

func testPieces(count int) string {
	return strings.Repeat("0123456789abcdefghij", count)
}

func descriptor(info string) []byte {
	return []byte("d" + bstr("announce") + bstr(testAnnounce) + bstr("info") + info + "e")
}

// keys in ascending order
func singleFileInfo() string {
	return "d" +
		bstr("length") + "i350e" +
		bstr("name") + bstr("demo.txt") +
		bstr("piece length") + "i16384e" +
		bstr("pieces") + bstr(testPieces(2)) +
		"e"
}

// same fields as singleFileInfo, keys shuffled
func singleFileInfoShuffled() string {
	return "d" +
		bstr("pieces") + bstr(testPieces(2)) +
		bstr("name") + bstr("demo.txt") +
		bstr("length") + "i350e" +
		bstr("piece length") + "i16384e" +
		"e"
}

func multiFileInfo() string {
	return "d" +
		bstr("files") + "l" +
		"d" + bstr("length") + "i100e" + bstr("path") + "l" + bstr("a") + bstr("one.bin") + "ee" +
		"d" + bstr("length") + "i250e" + bstr("path") + "l" + bstr("two.bin") + "e" + "e" +
		"e" +
		bstr("name") + bstr("demo") +
		bstr("piece length") + "i262144e" +
		bstr("pieces") + bstr(testPieces(1)) +
		"e"
}

// multiFileInfo with per-file keys besides length and path, keys in ascending order
func multiFileInfoWithFileExtras() string {
	return "d" +
		bstr("files") + "l" +
		"d" + bstr("attr") + bstr("x") + bstr("length") + "i100e" + bstr("md5sum") + bstr("0123456789abcdef0123456789abcdef") + bstr("path") + "l" + bstr("a") + bstr("one.bin") + "ee" +
		"d" + bstr("length") + "i250e" + bstr("path") + "l" + bstr("two.bin") + "e" + bstr("path.utf-8") + "l" + bstr("two.bin") + "e" + "e" +
		"e" +
		bstr("name") + bstr("demo") +
		bstr("piece length") + "i262144e" +
		bstr("pieces") + bstr(testPieces(1)) +
		"e"
}

func TestParseSingleFile(t *testing.T) {
	metaInfo, err := Parse(descriptor(singleFileInfo()))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if metaInfo.Announce != testAnnounce {
		t.Fatalf("unexpected announce %q", metaInfo.Announce)
	}

	if metaInfo.Info.Name != "demo.txt" {
		t.Fatalf("unexpected name %q", metaInfo.Info.Name)
	}

	if metaInfo.Info.PieceLength != 16384 {
		t.Fatalf("unexpected piece length %d", metaInfo.Info.PieceLength)
	}

	if metaInfo.Info.NumPieces() != 2 {
		t.Fatalf("expected 2 pieces, got %d", metaInfo.Info.NumPieces())
	}

	if metaInfo.Info.Files != nil {
		t.Fatalf("expected no files, got %v", metaInfo.Info.Files)
	}

	size, err := metaInfo.Info.TotalSize()
	if err != nil {
		t.Fatalf("TotalSize returned error: %v", err)
	}

	if size != 350 {
		t.Fatalf("expected total size 350, got %d", size)
	}
}

func TestMultiFileHashIgnoresFileKeyOrder(t *testing.T) {
	shuffled := strings.Replace(multiFileInfo(),
		"d"+bstr("length")+"i250e"+bstr("path")+"l"+bstr("two.bin")+"e"+"e",
		"d"+bstr("path")+"l"+bstr("two.bin")+"e"+bstr("length")+"i250e"+"e", 1)

	if shuffled == multiFileInfo() {
		t.Fatalf("fixture was not shuffled")
	}

	sorted, err := Parse(descriptor(multiFileInfo()))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	other, err := Parse(descriptor(shuffled))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if sorted.InfoHash() != other.InfoHash() {
		t.Fatalf("info hash depends on file key order: %v != %v", sorted.InfoHash(), other.InfoHash())
	}
}

func TestParseMultiFile(t *testing.T) {
	metaInfo, err := Parse(descriptor(multiFileInfo()))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	files := metaInfo.Info.Files
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}

	if strings.Join(files[0].Path, "/") != "a/one.bin" || files[0].Length != 100 {
		t.Fatalf("unexpected first file %+v", files[0])
	}

	if strings.Join(files[1].Path, "/") != "two.bin" || files[1].Length != 250 {
		t.Fatalf("unexpected second file %+v", files[1])
	}

	size, err := metaInfo.Info.TotalSize()
	if err != nil {
		t.Fatalf("TotalSize returned error: %v", err)
	}

	if size != 350 {
		t.Fatalf("expected total size 350, got %d", size)
	}
}

func TestParseErrors(t *testing.T) {
	var tests = []struct {
		name  string
		input []byte
	}{
		{"not bencode", []byte("hello")},
		{"list at top level", []byte("l" + bstr("announce") + "e")},
		{"missing announce", []byte("d" + bstr("info") + singleFileInfo() + "e")},
		{"missing info", []byte("d" + bstr("announce") + bstr(testAnnounce) + "e")},
		{"announce not a string", []byte("d" + bstr("announce") + "i1e" + bstr("info") + singleFileInfo() + "e")},
		{"info not a dictionary", descriptor(bstr("info"))},
		{"pieces not a multiple of 20", descriptor("d" + bstr("length") + "i1e" + bstr("name") + bstr("x") + bstr("piece length") + "i1e" + bstr("pieces") + bstr("short") + "e")},
		{"zero piece length", descriptor("d" + bstr("length") + "i1e" + bstr("name") + bstr("x") + bstr("piece length") + "i0e" + bstr("pieces") + bstr(testPieces(1)) + "e")},
		{"neither length nor files", descriptor("d" + bstr("name") + bstr("x") + bstr("piece length") + "i1e" + bstr("pieces") + bstr(testPieces(1)) + "e")},
		{"both length and files", descriptor("d" + bstr("files") + "le" + bstr("length") + "i1e" + bstr("name") + bstr("x") + bstr("piece length") + "i1e" + bstr("pieces") + bstr(testPieces(1)) + "e")},
		{"empty file path", descriptor("d" + bstr("files") + "ld" + bstr("length") + "i1e" + bstr("path") + "leee" + bstr("name") + bstr("x") + bstr("piece length") + "i1e" + bstr("pieces") + bstr(testPieces(1)) + "e")},
		{"file without length", descriptor("d" + bstr("files") + "ld" + bstr("path") + "l" + bstr("a") + "eee" + bstr("name") + bstr("x") + bstr("piece length") + "i1e" + bstr("pieces") + bstr(testPieces(1)) + "e")},
		{"negative length", descriptor("d" + bstr("length") + "i-1e" + bstr("name") + bstr("x") + bstr("piece length") + "i1e" + bstr("pieces") + bstr(testPieces(1)) + "e")},
	}

	for _, test := range tests {
		_, err := Parse(test.input)

		var descriptorErr *DescriptorError
		if !errors.As(err, &descriptorErr) {
			t.Fatalf("%s: expected DescriptorError, got %v", test.name, err)
		}
	}
}

func TestTotalSizeChecksLayout(t *testing.T) {
	length := int64(10)

	var tests = []Info{
		{Length: &length, Files: []File{{Length: 1, Path: []string{"a"}}}},
		{},
	}

	for _, info := range tests {
		_, err := info.TotalSize()

		var descriptorErr *DescriptorError
		if !errors.As(err, &descriptorErr) {
			t.Fatalf("TotalSize(%+v): expected DescriptorError, got %v", info, err)
		}
	}

	multi := Info{Files: []File{{Length: 100, Path: []string{"a"}}, {Length: 250, Path: []string{"b"}}}}
	size, err := multi.TotalSize()
	if err != nil || size != 350 {
		t.Fatalf("TotalSize returned %d, %v, expected 350", size, err)
	}
}

func TestInfoHashIgnoresKeyOrder(t *testing.T) {
	sorted, err := Parse(descriptor(singleFileInfo()))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	shuffled, err := Parse(descriptor(singleFileInfoShuffled()))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if sorted.InfoHash() != shuffled.InfoHash() {
		t.Fatalf("info hash depends on key order: %v != %v", sorted.InfoHash(), shuffled.InfoHash())
	}

	expected := sha1.Sum([]byte(singleFileInfo()))
	if sorted.InfoHash() != expected {
		t.Fatalf("expected info hash %x, got %v", expected, sorted.InfoHash())
	}

	// recomputing gives the cached value
	recomputed, err := shuffled.Info.Hash()
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	if recomputed != shuffled.InfoHash() {
		t.Fatalf("recomputed hash %v differs from cached %v", recomputed, shuffled.InfoHash())
	}
}

func TestInfoHashMatchesAnacrolix(t *testing.T) {
	var tests = []string{
		singleFileInfo(),
		multiFileInfo(),
		// unknown keys must survive re-encoding
		"d" + bstr("length") + "i1e" + bstr("name") + bstr("x") + bstr("piece length") + "i1e" + bstr("pieces") + bstr(testPieces(1)) + bstr("private") + "i1e" + "e",
		// as must unknown keys of file entries
		multiFileInfoWithFileExtras(),
	}

	for _, info := range tests {
		data := descriptor(info)

		metaInfo, err := Parse(data)
		if err != nil {
			t.Fatalf("Parse returned error: %v", err)
		}

		reference, err := anacrolix.Load(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("anacrolix metainfo.Load returned error: %v", err)
		}

		expected := reference.HashInfoBytes()
		if [20]byte(metaInfo.InfoHash()) != [20]byte(expected) {
			t.Fatalf("info hash %v, anacrolix computed %v", metaInfo.InfoHash(), expected.HexString())
		}
	}
}

func TestCanonicalMatchesSortedSource(t *testing.T) {
	for _, info := range []string{singleFileInfo(), multiFileInfo(), multiFileInfoWithFileExtras()} {
		metaInfo, err := Parse(descriptor(info))
		if err != nil {
			t.Fatalf("Parse returned error: %v", err)
		}

		canonical, err := metaInfo.Info.Canonical()
		if err != nil {
			t.Fatalf("Canonical returned error: %v", err)
		}

		if string(canonical) != info {
			t.Fatalf("Canonical() returned\n%q\nexpected\n%q", canonical, info)
		}
	}
}

func TestParseFileExtras(t *testing.T) {
	metaInfo, err := Parse(descriptor(multiFileInfoWithFileExtras()))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	files := metaInfo.Info.Files
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}

	if len(files[0].Extra) != 2 || string(files[0].Extra["md5sum"]) != bstr("0123456789abcdef0123456789abcdef") {
		t.Fatalf("unexpected extra keys of the first file %v", files[0].Extra)
	}

	if _, ok := files[1].Extra["path.utf-8"]; !ok || len(files[1].Extra) != 1 {
		t.Fatalf("unexpected extra keys of the second file %v", files[1].Extra)
	}

	if strings.Join(files[1].Path, "/") != "two.bin" || files[1].Length != 250 {
		t.Fatalf("unexpected second file %+v", files[1])
	}
}

func TestPieceHash(t *testing.T) {
	info := Info{Pieces: []byte(testPieces(1) + strings.Repeat("z", 20))}

	hash, err := info.PieceHash(1)
	if err != nil {
		t.Fatalf("PieceHash returned error: %v", err)
	}

	if string(hash) != strings.Repeat("z", 20) {
		t.Fatalf("unexpected piece hash %q", hash)
	}

	if _, err := info.PieceHash(2); err == nil {
		t.Fatalf("expected an error for an out of range piece")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.torrent")
	if err := os.WriteFile(path, descriptor(singleFileInfo()), 0o644); err != nil {
		t.Fatalf("unable to write fixture: %v", err)
	}

	metaInfo, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if metaInfo.Info.Name != "demo.txt" {
		t.Fatalf("unexpected name %q", metaInfo.Info.Name)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.torrent")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}
