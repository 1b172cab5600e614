package sync

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
)

const (
	hotlinkFrameMagic   = "HLNK"
	hotlinkFrameVersion = 1
)

// hotlinkFrame is the unit shipped over the IPC sockets and the QUIC stream.
// Layout: magic(4) version(1) pathLen(2) etagLen(2) payloadLen(4) seq(8),
// all big endian, followed by path, etag and payload bytes.
type hotlinkFrame struct {
	path    string
	etag    string
	seq     uint64
	payload []byte
}

func encodeHotlinkFrame(path, etag string, seq uint64, payload []byte) []byte {
	pathBytes := []byte(path)
	etagBytes := []byte(etag)
	headerLen := 4 + 1 + 2 + 2 + 4 + 8
	total := headerLen + len(pathBytes) + len(etagBytes) + len(payload)
	buf := bytes.NewBuffer(make([]byte, 0, total))
	buf.WriteString(hotlinkFrameMagic)
	buf.WriteByte(byte(hotlinkFrameVersion))
	_ = binary.Write(buf, binary.BigEndian, uint16(len(pathBytes)))
	_ = binary.Write(buf, binary.BigEndian, uint16(len(etagBytes)))
	_ = binary.Write(buf, binary.BigEndian, uint32(len(payload)))
	_ = binary.Write(buf, binary.BigEndian, seq)
	buf.Write(pathBytes)
	buf.Write(etagBytes)
	buf.Write(payload)
	return buf.Bytes()
}

// decodeHotlinkFrame scans the reader for the next frame, resynchronizing on
// the magic if the stream contains garbage between frames.
func decodeHotlinkFrame(r *bufio.Reader) (*hotlinkFrame, error) {
	magic := []byte(hotlinkFrameMagic)
	window := make([]byte, 0, len(magic))

	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		window = append(window, b)
		if len(window) > len(magic) {
			window = window[1:]
		}
		if len(window) < len(magic) || !bytes.Equal(window, magic) {
			continue
		}

		header := make([]byte, 1+2+2+4+8)
		if _, err := io.ReadFull(r, header); err != nil {
			return nil, err
		}
		if header[0] != hotlinkFrameVersion {
			window = window[:0]
			continue
		}
		pathLen := binary.BigEndian.Uint16(header[1:3])
		etagLen := binary.BigEndian.Uint16(header[3:5])
		payloadLen := binary.BigEndian.Uint32(header[5:9])
		seq := binary.BigEndian.Uint64(header[9:17])

		frame := &hotlinkFrame{seq: seq}
		if pathLen > 0 {
			path := make([]byte, pathLen)
			if _, err := io.ReadFull(r, path); err != nil {
				return nil, err
			}
			frame.path = string(path)
		}
		if etagLen > 0 {
			etag := make([]byte, etagLen)
			if _, err := io.ReadFull(r, etag); err != nil {
				return nil, err
			}
			frame.etag = string(etag)
		}
		if payloadLen > 0 {
			frame.payload = make([]byte, payloadLen)
			if _, err := io.ReadFull(r, frame.payload); err != nil {
				return nil, err
			}
		}
		return frame, nil
	}
}
