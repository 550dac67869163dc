// Package wire frames the in-band payload that travels with a buffer handle.
//
// With metadata enabled the exporter sends an Announce: the magic "TXS1"
// followed by a CBOR map with integer keys, encoded with Core Deterministic
// Encoding. The importer answers with an Ack framed the same way under
// "TXA1". With metadata disabled the payload is the single Liveness byte and
// both peers rely on configured geometry.
package wire

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"texshare/internal/dmabuf"
	"texshare/internal/xfer"
)

// Version is the current Announce schema version.
const Version = 1

// Liveness is the bare payload sent when metadata is disabled. Stream
// sockets cannot carry a control record without at least one data byte.
const Liveness = "\x01"

// MaxDimension bounds announced width and height.
const MaxDimension = 16384

var (
	announceMagic = []byte("TXS1")
	ackMagic      = []byte("TXA1")
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("wire: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		MaxMapPairs: 32,
	}.DecMode()
	if err != nil {
		panic("wire: CBOR decoder initialization failed: " + err.Error())
	}
}

// Announce describes the buffer that accompanies the payload.
type Announce struct {
	Version    uint8           `cbor:"1,keyasint"`
	TransferID string          `cbor:"2,keyasint"`
	Width      uint32          `cbor:"3,keyasint"`
	Height     uint32          `cbor:"4,keyasint"`
	Format     dmabuf.FourCC   `cbor:"5,keyasint"`
	Modifier   dmabuf.Modifier `cbor:"6,keyasint"`
	Stride     uint32          `cbor:"7,keyasint"`
	Offset     uint32          `cbor:"8,keyasint"`
	// Digest is the BLAKE3-256 hash of the tightly packed pixels.
	Digest []byte `cbor:"9,keyasint,omitempty"`
}

// Ack is the importer's reply once the buffer has been imported.
type Ack struct {
	TransferID string `cbor:"1,keyasint"`
	Verified   bool   `cbor:"2,keyasint"`
	Detail     string `cbor:"3,keyasint,omitempty"`
}

// NewAnnounce fills an Announce from an exported descriptor.
func NewAnnounce(transferID string, width, height int, desc *dmabuf.Descriptor, digest []byte) Announce {
	return Announce{
		Version:    Version,
		TransferID: transferID,
		Width:      uint32(width),
		Height:     uint32(height),
		Format:     desc.Format,
		Modifier:   desc.Modifier,
		Stride:     desc.Stride,
		Offset:     desc.Offset,
		Digest:     digest,
	}
}

// Encode frames a as a payload.
func Encode(a Announce) ([]byte, error) {
	if a.Version == 0 {
		a.Version = Version
	}
	return frame(announceMagic, a)
}

// Decode parses a payload. ok is false for a bare payload without the
// announce magic, which the caller treats as liveness only.
func Decode(payload []byte) (a Announce, ok bool, err error) {
	if !bytes.HasPrefix(payload, announceMagic) {
		return Announce{}, false, nil
	}
	if err := decMode.Unmarshal(payload[len(announceMagic):], &a); err != nil {
		return Announce{}, true, xfer.Wrap(xfer.ErrMalformed, "wire", "decode announce", "", err)
	}
	if a.Version != Version {
		return Announce{}, true, xfer.Wrap(xfer.ErrMalformed, "wire", "decode announce",
			fmt.Sprintf("unsupported version %d", a.Version), nil)
	}
	return a, true, nil
}

// Validate checks that the announced layout is usable for one RGBA8 plane.
func (a Announce) Validate() error {
	switch {
	case strings.TrimSpace(a.TransferID) == "":
		return invalid("missing transfer id")
	case a.Width == 0 || a.Height == 0 || a.Width > MaxDimension || a.Height > MaxDimension:
		return invalid("dimensions %dx%d out of range", a.Width, a.Height)
	case a.Format == 0:
		return invalid("missing format")
	case uint64(a.Stride) < uint64(a.Width)*4:
		return invalid("stride %d shorter than row of %d pixels", a.Stride, a.Width)
	case len(a.Digest) != 0 && len(a.Digest) != 32:
		return invalid("digest has %d bytes, want 32", len(a.Digest))
	}
	return nil
}

// Descriptor returns the layout fields as a descriptor without a handle.
func (a Announce) Descriptor() dmabuf.Descriptor {
	return dmabuf.Descriptor{Format: a.Format, Modifier: a.Modifier, Stride: a.Stride, Offset: a.Offset}
}

// DigestHex renders the digest for logs and the journal.
func (a Announce) DigestHex() string {
	return hex.EncodeToString(a.Digest)
}

// EncodeAck frames an acknowledgement.
func EncodeAck(ack Ack) ([]byte, error) {
	return frame(ackMagic, ack)
}

// DecodeAck parses an acknowledgement payload.
func DecodeAck(payload []byte) (Ack, error) {
	if !bytes.HasPrefix(payload, ackMagic) {
		return Ack{}, xfer.Wrap(xfer.ErrMalformed, "wire", "decode ack", "missing ack magic", nil)
	}
	var ack Ack
	if err := decMode.Unmarshal(payload[len(ackMagic):], &ack); err != nil {
		return Ack{}, xfer.Wrap(xfer.ErrMalformed, "wire", "decode ack", "", err)
	}
	return ack, nil
}

func frame(magic []byte, v any) ([]byte, error) {
	body, err := encMode.Marshal(v)
	if err != nil {
		return nil, xfer.Wrap(xfer.ErrProtocol, "wire", "encode", "", err)
	}
	out := make([]byte, 0, len(magic)+len(body))
	out = append(out, magic...)
	return append(out, body...), nil
}

func invalid(format string, args ...any) error {
	return xfer.Wrap(xfer.ErrMalformed, "wire", "validate announce", fmt.Sprintf(format, args...), nil)
}
