// Package metainfo parses torrent descriptors (BEP 3) and derives their info hash.
package metainfo

import (
	"crypto/sha1"
	"fmt"
	"os"

	"erri120/gotorrent/protocol"

	"github.com/anacrolix/torrent/bencode"
)

const (
	keyAnnounce    = "announce"
	keyInfo        = "info"
	keyName        = "name"
	keyPieceLength = "piece length"
	keyPieces      = "pieces"
	keyLength      = "length"
	keyFiles       = "files"
	keyPath        = "path"
)

type MetaInfo struct {
	Announce string // Tracker URL.
	Info     Info

	infoHash protocol.InfoHash
}

// InfoHash returns the identifier computed once by Parse.
func (metaInfo *MetaInfo) InfoHash() protocol.InfoHash {
	return metaInfo.infoHash
}

type Info struct {
	Name        string
	PieceLength int64
	Pieces      []byte // Concatenated 20-byte SHA-1 hashes, one per piece.

	// Exactly one of Length (single file) and Files (multiple files) is set.
	Length *int64
	Files  []File

	// Other keys of the info dictionary, kept bencoded so that re-encoding
	// does not change the hash.
	Extra map[string]bencode.Bytes
}

type File struct {
	Length int64
	Path   []string

	// Other keys of the file dictionary (md5sum, attr, ...), kept bencoded.
	Extra map[string]bencode.Bytes
}

// Load reads and parses the torrent file at path.
func Load(path string) (*MetaInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read torrent file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*MetaInfo, error) {
	var top map[string]bencode.Bytes
	if err := bencode.Unmarshal(data, &top); err != nil {
		return nil, descriptorError(err, "top level is not a bencoded dictionary")
	}

	announceRaw, ok := top[keyAnnounce]
	if !ok {
		return nil, descriptorError(nil, "missing %q key", keyAnnounce)
	}

	infoRaw, ok := top[keyInfo]
	if !ok {
		return nil, descriptorError(nil, "missing %q key", keyInfo)
	}

	var announce string
	if err := bencode.Unmarshal(announceRaw, &announce); err != nil {
		return nil, descriptorError(err, "%q is not a string", keyAnnounce)
	}

	info, err := parseInfo(infoRaw)
	if err != nil {
		return nil, err
	}

	metaInfo := &MetaInfo{
		Announce: announce,
		Info:     *info,
	}

	metaInfo.infoHash, err = metaInfo.Info.Hash()
	if err != nil {
		return nil, descriptorError(err, "unable to encode info dictionary")
	}

	return metaInfo, nil
}

func parseInfo(data []byte) (*Info, error) {
	var dict map[string]bencode.Bytes
	if err := bencode.Unmarshal(data, &dict); err != nil {
		return nil, descriptorError(err, "%q is not a dictionary", keyInfo)
	}

	info := &Info{}

	for key, value := range dict {
		var err error

		switch key {
		case keyName:
			err = bencode.Unmarshal(value, &info.Name)
		case keyPieceLength:
			err = bencode.Unmarshal(value, &info.PieceLength)
		case keyPieces:
			err = bencode.Unmarshal(value, &info.Pieces)
		case keyLength:
			var length int64
			err = bencode.Unmarshal(value, &length)
			info.Length = &length
		case keyFiles:
			info.Files, err = parseFiles(value)
		default:
			if info.Extra == nil {
				info.Extra = make(map[string]bencode.Bytes)
			}
			info.Extra[key] = value
		}

		if err != nil {
			return nil, descriptorError(err, "invalid %q in info dictionary", key)
		}
	}

	if err := info.validate(); err != nil {
		return nil, err
	}

	return info, nil
}

func parseFiles(data []byte) ([]File, error) {
	var dicts []map[string]bencode.Bytes
	if err := bencode.Unmarshal(data, &dicts); err != nil {
		return nil, err
	}

	// present, even when the list is empty
	files := make([]File, 0, len(dicts))

	for i, dict := range dicts {
		var file File
		var hasLength bool

		for key, value := range dict {
			var err error

			switch key {
			case keyLength:
				hasLength = true
				err = bencode.Unmarshal(value, &file.Length)
			case keyPath:
				err = bencode.Unmarshal(value, &file.Path)
			default:
				if file.Extra == nil {
					file.Extra = make(map[string]bencode.Bytes)
				}
				file.Extra[key] = value
			}

			if err != nil {
				return nil, fmt.Errorf("file %d: invalid %q: %w", i, key, err)
			}
		}

		if !hasLength {
			return nil, fmt.Errorf("file %d: missing %q", i, keyLength)
		}

		files = append(files, file)
	}

	return files, nil
}

func (info *Info) validate() error {
	if info.PieceLength <= 0 {
		return descriptorError(nil, "piece length must be positive, got %d", info.PieceLength)
	}

	if len(info.Pieces)%protocol.SizeOfInfoHash != 0 {
		return descriptorError(nil, "pieces length %d is not a multiple of %d", len(info.Pieces), protocol.SizeOfInfoHash)
	}

	if err := info.checkLayout(); err != nil {
		return err
	}

	if info.Length != nil && *info.Length < 0 {
		return descriptorError(nil, "negative length %d", *info.Length)
	}

	for i, file := range info.Files {
		if file.Length < 0 {
			return descriptorError(nil, "file %d has negative length %d", i, file.Length)
		}

		if len(file.Path) == 0 {
			return descriptorError(nil, "file %d has an empty path", i)
		}
	}

	return nil
}

func (info *Info) checkLayout() error {
	hasLength := info.Length != nil
	hasFiles := info.Files != nil

	if hasLength && hasFiles {
		return descriptorError(nil, "both %q and %q are present", keyLength, keyFiles)
	}

	if !hasLength && !hasFiles {
		return descriptorError(nil, "neither %q nor %q is present", keyLength, keyFiles)
	}

	return nil
}

// TotalSize returns the number of bytes described by the torrent.
func (info *Info) TotalSize() (int64, error) {
	if err := info.checkLayout(); err != nil {
		return 0, err
	}

	if info.Length != nil {
		return *info.Length, nil
	}

	var total int64
	for _, file := range info.Files {
		total += file.Length
	}

	return total, nil
}

func (info *Info) NumPieces() int {
	return len(info.Pieces) / protocol.SizeOfInfoHash
}

func (info *Info) PieceHash(index int) ([]byte, error) {
	if index < 0 || index >= info.NumPieces() {
		return nil, fmt.Errorf("piece index %d out of range [0, %d)", index, info.NumPieces())
	}

	return info.Pieces[index*protocol.SizeOfInfoHash : (index+1)*protocol.SizeOfInfoHash], nil
}

// Canonical returns the info dictionary bencoded with sorted keys, unknown
// keys included.
func (info *Info) Canonical() ([]byte, error) {
	dict := make(map[string]interface{}, len(info.Extra)+5)
	for key, value := range info.Extra {
		dict[key] = value
	}

	dict[keyName] = info.Name
	dict[keyPieceLength] = info.PieceLength
	dict[keyPieces] = info.Pieces

	if info.Length != nil {
		dict[keyLength] = *info.Length
	}

	if info.Files != nil {
		files := make([]interface{}, 0, len(info.Files))
		for _, file := range info.Files {
			fileDict := make(map[string]interface{}, len(file.Extra)+2)
			for key, value := range file.Extra {
				fileDict[key] = value
			}

			fileDict[keyLength] = file.Length
			fileDict[keyPath] = file.Path
			files = append(files, fileDict)
		}

		dict[keyFiles] = files
	}

	return bencode.Marshal(dict)
}

// Hash computes the info hash. The result only depends on the field values,
// never on the key order of the source file.
func (info *Info) Hash() (protocol.InfoHash, error) {
	data, err := info.Canonical()
	if err != nil {
		return protocol.InfoHash{}, err
	}

	return sha1.Sum(data), nil
}
