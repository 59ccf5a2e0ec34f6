package wire

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestReadFrame_Sequence(t *testing.T) {
	var buf bytes.Buffer
	for _, p := range [][]byte{[]byte("hello"), {}, bytes.Repeat([]byte{0xAB}, 300)} {
		if err := WriteFrame(&buf, p); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}

	wantLens := []int{5, 0, 300}
	for i, want := range wantLens {
		got, err := ReadFrame(&buf, 0)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if len(got) != want {
			t.Fatalf("frame %d len = %d, want %d", i, len(got), want)
		}
	}
	if _, err := ReadFrame(&buf, 0); err != io.EOF {
		t.Fatalf("after last frame err = %v, want io.EOF", err)
	}
}

func TestReadFrame_Short(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
	}{
		{"partial header", []byte{0, 0}},
		{"declared 5 got 3", []byte{0, 0, 0, 5, 'a', 'b', 'c'}},
		{"declared 5 got 0", []byte{0, 0, 0, 5}},
	}
	for _, tc := range cases {
		_, err := ReadFrame(bytes.NewReader(tc.in), 0)
		if !errors.Is(err, ErrShortFrame) {
			t.Fatalf("%s: err = %v, want ErrShortFrame", tc.name, err)
		}
	}
}

func TestReadFrame_TooLarge(t *testing.T) {
	in := []byte{0, 0, 1, 0} // 256
	_, err := ReadFrame(bytes.NewReader(in), 255)
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("err = %v, want ErrFrameTooLarge", err)
	}
}

func TestWriteFrame_Header(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte("abc")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	want := []byte{0, 0, 0, 3, 'a', 'b', 'c'}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("bytes = %v, want %v", buf.Bytes(), want)
	}
}
