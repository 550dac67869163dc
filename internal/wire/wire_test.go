package wire_test

import (
	"bytes"
	"errors"
	"testing"

	"texshare/internal/dmabuf"
	"texshare/internal/pattern"
	"texshare/internal/wire"
	"texshare/internal/xfer"
)

func sampleAnnounce() wire.Announce {
	digest := pattern.Digest(pattern.Gradient(256, 256))
	return wire.Announce{
		TransferID: "7d9f",
		Width:      256,
		Height:     256,
		Format:     dmabuf.FormatABGR8888,
		Modifier:   dmabuf.ModLinear,
		Stride:     1024,
		Digest:     digest[:],
	}
}

func TestAnnounceRoundTrip(t *testing.T) {
	in := sampleAnnounce()
	payload, err := wire.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.HasPrefix(payload, []byte("TXS1")) {
		t.Fatalf("payload lacks magic: %x", payload[:4])
	}
	if len(payload) > 512 {
		t.Fatalf("announce is %d bytes, larger than the default receive buffer", len(payload))
	}
	out, ok, err := wire.Decode(payload)
	if err != nil || !ok {
		t.Fatalf("Decode: ok=%v err=%v", ok, err)
	}
	if out.Version != wire.Version {
		t.Fatalf("version = %d", out.Version)
	}
	if out.TransferID != in.TransferID || out.Width != in.Width || out.Stride != in.Stride ||
		out.Format != in.Format || out.Modifier != in.Modifier || !bytes.Equal(out.Digest, in.Digest) {
		t.Fatalf("round trip mismatch: %+v vs %+v", out, in)
	}
	if err := out.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	a, err := wire.Encode(sampleAnnounce())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b, err := wire.Encode(sampleAnnounce())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("same announce produced different bytes")
	}
}

func TestDecodeBarePayloadIsLiveness(t *testing.T) {
	_, ok, err := wire.Decode([]byte(wire.Liveness))
	if err != nil || ok {
		t.Fatalf("bare payload: ok=%v err=%v", ok, err)
	}
}

func TestDecodeCorruptAnnounceIsMalformed(t *testing.T) {
	payload, err := wire.Encode(sampleAnnounce())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	_, ok, err := wire.Decode(payload[:len(payload)-5])
	if !ok {
		t.Fatal("magic present, expected ok=true")
	}
	if !errors.Is(err, xfer.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestDecodeRejectsFutureVersion(t *testing.T) {
	a := sampleAnnounce()
	a.Version = 9
	payload, err := wire.Encode(a)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, _, err := wire.Decode(payload); !errors.Is(err, xfer.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestValidateRejectsBadLayouts(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*wire.Announce)
	}{
		{name: "empty transfer id", mutate: func(a *wire.Announce) { a.TransferID = "" }},
		{name: "blank transfer id", mutate: func(a *wire.Announce) { a.TransferID = "  " }},
		{name: "zero width", mutate: func(a *wire.Announce) { a.Width = 0 }},
		{name: "huge height", mutate: func(a *wire.Announce) { a.Height = wire.MaxDimension + 1 }},
		{name: "no format", mutate: func(a *wire.Announce) { a.Format = 0 }},
		{name: "short stride", mutate: func(a *wire.Announce) { a.Stride = 100 }},
		{name: "short digest", mutate: func(a *wire.Announce) { a.Digest = []byte{1, 2} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := sampleAnnounce()
			tc.mutate(&a)
			if err := a.Validate(); !errors.Is(err, xfer.ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestAckRoundTrip(t *testing.T) {
	payload, err := wire.EncodeAck(wire.Ack{TransferID: "7d9f", Verified: true})
	if err != nil {
		t.Fatalf("EncodeAck: %v", err)
	}
	ack, err := wire.DecodeAck(payload)
	if err != nil {
		t.Fatalf("DecodeAck: %v", err)
	}
	if ack.TransferID != "7d9f" || !ack.Verified {
		t.Fatalf("ack = %+v", ack)
	}
	if _, err := wire.DecodeAck([]byte(wire.Liveness)); !errors.Is(err, xfer.ErrMalformed) {
		t.Fatalf("expected ErrMalformed for bare payload, got %v", err)
	}
}
