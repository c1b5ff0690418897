package plm

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestFrameReader(t *testing.T) {
	stream := []byte{
		0xFF,                   // noise
		0x02, 0x52, 0x66, 0x00, // X10
		0x15,                   // lone NAK
		0x02, 0x7E,             // unknown
		0x02, 0x60, 0x11, 0x22, 0x33, 0x03, 0x15, 0x9B, 0x06, // IM info echo
	}
	fr := newFrameReader(bytes.NewReader(stream))

	want := []struct {
		frame []byte
		err   error
	}{
		{frame: []byte{0x02, 0x52, 0x66, 0x00}},
		{frame: []byte{0x15}},
		{err: ErrUnknownCommand},
		{frame: []byte{0x02, 0x60, 0x11, 0x22, 0x33, 0x03, 0x15, 0x9B, 0x06}},
		{err: io.EOF},
	}

	for i, w := range want {
		got, err := fr.next()
		if w.err != nil {
			if !errors.Is(err, w.err) {
				t.Errorf("frame %d error = %v, want %v", i, err, w.err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("frame %d unexpected error: %v", i, err)
		}
		if !bytes.Equal(got, w.frame) {
			t.Errorf("frame %d = % X, want % X", i, got, w.frame)
		}
	}
}

func TestFrameReaderExtendedEcho(t *testing.T) {
	echo := make([]byte, extendedEchoLen)
	copy(echo, []byte{0x02, 0x62, 0x1A, 0x2B, 0x3C, 0x1F, 0x2E, 0x00})
	echo[extendedEchoLen-1] = 0x06

	fr := newFrameReader(bytes.NewReader(echo))
	got, err := fr.next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, echo) {
		t.Errorf("frame = % X, want % X", got, echo)
	}
}

func TestFrameReaderExtendedReceived(t *testing.T) {
	frame := make([]byte, 25)
	copy(frame, []byte{0x02, 0x51, 0x1A, 0x2B, 0x3C, 0x11, 0x22, 0x33, 0x1B, 0x2E, 0x00})

	fr := newFrameReader(bytes.NewReader(frame))
	got, err := fr.next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 25 {
		t.Errorf("len = %d, want 25", len(got))
	}
}
