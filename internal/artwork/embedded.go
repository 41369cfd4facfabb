package artwork

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacpicture"
	flac "github.com/go-flac/go-flac"
)

// ExtractEmbedded pulls the embedded picture at the given offset out of a
// media file. MP3 is read via ID3v2 APIC frames, FLAC and Ogg-FLAC via
// vorbis PICTURE blocks. Other media types are not supported.
func ExtractEmbedded(path string, offset int) ([]byte, error) {
	if offset < 0 {
		return nil, fmt.Errorf("negative picture offset %d", offset)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return extractID3(path, offset)
	case ".flac":
		return extractFlac(path, offset)
	case ".ogg", ".oga":
		return extractOggFlac(path, offset)
	default:
		return nil, fmt.Errorf("no embedded picture support for %s", filepath.Ext(path))
	}
}

// extractID3 returns the APIC frame at index offset.
func extractID3(path string, offset int) ([]byte, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true, ParseFrames: []string{"Attached picture"}})
	if err != nil {
		return nil, fmt.Errorf("parse id3 tag: %w", err)
	}
	defer tag.Close()

	frames := tag.GetFrames(tag.CommonID("Attached picture"))
	idx := 0
	for _, f := range frames {
		pic, ok := f.(id3v2.PictureFrame)
		if !ok {
			continue
		}
		if idx == offset {
			if len(pic.Picture) == 0 {
				return nil, fmt.Errorf("empty picture frame at offset %d", offset)
			}
			return pic.Picture, nil
		}
		idx++
	}
	return nil, fmt.Errorf("no picture frame at offset %d", offset)
}

// extractFlac returns the PICTURE block at index offset.
func extractFlac(path string, offset int) ([]byte, error) {
	f, err := flac.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse flac file: %w", err)
	}
	return flacPictureAt(f, offset)
}

// extractOggFlac depacketizes the Ogg container and reads the PICTURE block
// from the embedded FLAC metadata stream.
func extractOggFlac(path string, offset int) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ogg file: %w", err)
	}
	defer file.Close()

	stream, err := oggFlacStream(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("read ogg-flac headers: %w", err)
	}
	f, err := flac.ParseBytes(bytes.NewReader(stream))
	if err != nil {
		return nil, fmt.Errorf("parse ogg-flac metadata: %w", err)
	}
	return flacPictureAt(f, offset)
}

// flacPictureAt returns the image bytes of the PICTURE block at index offset.
func flacPictureAt(f *flac.File, offset int) ([]byte, error) {
	idx := 0
	for _, block := range f.Meta {
		if block.Type != flac.Picture {
			continue
		}
		if idx == offset {
			pic, err := flacpicture.ParseFromMetaDataBlock(*block)
			if err != nil {
				return nil, fmt.Errorf("parse flac picture block: %w", err)
			}
			if len(pic.ImageData) == 0 {
				return nil, fmt.Errorf("empty picture block at offset %d", offset)
			}
			return pic.ImageData, nil
		}
		idx++
	}
	return nil, fmt.Errorf("no picture block at offset %d", offset)
}

var oggCapture = []byte("OggS")

var flacMarker = []byte("fLaC")

// oggFlacStream reassembles the FLAC metadata stream from the Ogg header
// pages. Header pages carry granule position zero; reading stops at the
// first audio page, so only the metadata prefix is held in memory. The
// returned stream starts at the fLaC marker inside the first packet.
func oggFlacStream(r io.Reader) ([]byte, error) {
	var payload []byte
	header := make([]byte, 27)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, err
		}
		if !bytes.Equal(header[:4], oggCapture) {
			return nil, fmt.Errorf("bad ogg page capture %q", header[:4])
		}
		granule := binary.LittleEndian.Uint64(header[6:14])
		nsegs := int(header[26])
		lacing := make([]byte, nsegs)
		if _, err := io.ReadFull(r, lacing); err != nil {
			return nil, err
		}
		size := 0
		for _, l := range lacing {
			size += int(l)
		}
		if granule != 0 && granule != ^uint64(0) {
			// First audio page; the metadata stream is complete.
			break
		}
		data := make([]byte, size)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, err
		}
		payload = append(payload, data...)
	}

	// The first packet is the Ogg-FLAC mapping header; the FLAC stream
	// proper starts at its fLaC marker.
	i := bytes.Index(payload, flacMarker)
	if i < 0 {
		return nil, fmt.Errorf("no flac stream in ogg container")
	}
	return payload[i:], nil
}
