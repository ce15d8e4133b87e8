package main

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	sngIdentifier  = "SNGPKG"
	maxSngFileSize = 1 << 30
)

// Inner files an .sng package may carry its chart in, in order of preference
var sngChartFiles = []string{"notes.chart", "notes.mid"}

type sngHeader struct {
	Identifier [6]byte
	Version    uint32
	XorMask    [16]byte
}

type sngEntry struct {
	Filename string
	Size     uint64
	Offset   uint64
}

// SngPackage is a song package: metadata plus XOR-masked inner files, one of
// which is the chart the timeline is built from.
type SngPackage struct {
	header   sngHeader
	metadata map[string]string
	entries  []sngEntry
	reader   io.ReadSeeker
	size     uint64

	chart TabSource
}

// ReadSngPackage parses the package header, metadata and file index, then
// opens the chart it contains.
func ReadSngPackage(r io.ReadSeeker) (*SngPackage, error) {
	pkg := &SngPackage{reader: r, metadata: make(map[string]string)}

	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to size package: %w", err)
	}
	pkg.size = uint64(size)

	if err := pkg.readHeader(); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if err := pkg.readMetadata(); err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	if err := pkg.readFileIndex(); err != nil {
		return nil, fmt.Errorf("failed to read file index: %w", err)
	}

	for _, name := range sngChartFiles {
		data, err := pkg.ReadFile(name)
		if err != nil {
			continue
		}
		chart, err := OpenTabSource(name, data)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", name, err)
		}
		pkg.chart = chart
		return pkg, nil
	}

	return nil, fmt.Errorf("%w: no chart in song package", ErrUnsupportedFormat)
}

func (p *SngPackage) readHeader() error {
	if _, err := p.reader.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := binary.Read(p.reader, binary.LittleEndian, &p.header); err != nil {
		return err
	}
	if string(p.header.Identifier[:]) != sngIdentifier {
		return fmt.Errorf("%w: invalid file identifier %q", ErrUnsupportedFormat, string(p.header.Identifier[:]))
	}
	return nil
}

func (p *SngPackage) readMetadata() error {
	var length, count uint64
	if err := binary.Read(p.reader, binary.LittleEndian, &length); err != nil {
		return err
	}
	if err := binary.Read(p.reader, binary.LittleEndian, &count); err != nil {
		return err
	}

	for i := uint64(0); i < count; i++ {
		key, err := readSngString(p.reader, 1024)
		if err != nil {
			return fmt.Errorf("metadata key %d: %w", i, err)
		}
		value, err := readSngString(p.reader, 10240)
		if err != nil {
			return fmt.Errorf("metadata value %q: %w", key, err)
		}
		p.metadata[key] = value
	}

	return nil
}

// readSngString reads an int32 length-prefixed string of at most limit bytes.
func readSngString(r io.Reader, limit int32) (string, error) {
	var n int32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if n < 0 || n > limit {
		return "", fmt.Errorf("invalid string length: %d", n)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func (p *SngPackage) readFileIndex() error {
	var length, count uint64
	if err := binary.Read(p.reader, binary.LittleEndian, &length); err != nil {
		return err
	}
	if err := binary.Read(p.reader, binary.LittleEndian, &count); err != nil {
		return err
	}

	for i := uint64(0); i < count; i++ {
		var nameLen uint8
		if err := binary.Read(p.reader, binary.LittleEndian, &nameLen); err != nil {
			return err
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(p.reader, name); err != nil {
			return err
		}

		entry := sngEntry{Filename: string(name)}
		if err := binary.Read(p.reader, binary.LittleEndian, &entry.Size); err != nil {
			return err
		}
		if err := binary.Read(p.reader, binary.LittleEndian, &entry.Offset); err != nil {
			return err
		}
		p.entries = append(p.entries, entry)
	}

	return nil
}

// Files lists the names of the inner files in index order.
func (p *SngPackage) Files() []string {
	names := make([]string, len(p.entries))
	for i, entry := range p.entries {
		names[i] = entry.Filename
	}
	return names
}

// ReadFile returns the unmasked contents of an inner file.
func (p *SngPackage) ReadFile(name string) ([]byte, error) {
	for _, entry := range p.entries {
		if entry.Filename != name {
			continue
		}

		if entry.Size > maxSngFileSize {
			return nil, fmt.Errorf("file too large: %s (%d bytes)", name, entry.Size)
		}
		if entry.Offset > p.size || entry.Size > p.size-entry.Offset {
			return nil, fmt.Errorf("%w: %s (%d bytes at %d) runs past the end of the package",
				io.ErrUnexpectedEOF, name, entry.Size, entry.Offset)
		}
		if _, err := p.reader.Seek(int64(entry.Offset), io.SeekStart); err != nil {
			return nil, err
		}
		data := make([]byte, entry.Size)
		if _, err := io.ReadFull(p.reader, data); err != nil {
			return nil, err
		}

		p.unmask(data)
		return data, nil
	}

	return nil, fmt.Errorf("file not found: %s", name)
}

// unmask reverses the package's XOR masking in place. Each byte is masked by
// its position within the inner file and the 16-byte header mask.
func (p *SngPackage) unmask(data []byte) {
	var lookup [256]byte
	for i := range lookup {
		lookup[i] = byte(i) ^ p.header.XorMask[i&0x0F]
	}
	for i := range data {
		data[i] ^= lookup[i&0xFF]
	}
}

func (p *SngPackage) RawSong() (*RawSong, error) {
	song, err := p.chart.RawSong()
	if err != nil {
		return nil, err
	}
	if name := p.metadata["name"]; name != "" {
		song.Title = name
	}
	if artist := p.metadata["artist"]; artist != "" {
		song.Artist = artist
	}
	return song, nil
}

// Metadata merges the chart's metadata with the package's; the package wins.
func (p *SngPackage) Metadata() map[string]string {
	result := p.chart.Metadata()
	for k, v := range p.metadata {
		result[k] = v
	}
	return result
}
