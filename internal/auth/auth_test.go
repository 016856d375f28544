package auth

import (
	"strings"
	"testing"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestTagIsStableAndTruncated(t *testing.T) {
	s := NewSigner(testKey)
	msg := []byte("SAT001-Ping&@")

	tag := s.Tag(msg)
	if len(tag) != HexTagLen {
		t.Fatalf("tag length = %d, want %d", len(tag), HexTagLen)
	}
	if tag != s.Tag(msg) {
		t.Fatal("Tag is not deterministic")
	}
}

func TestVerifyAcceptsOwnTag(t *testing.T) {
	s := NewSigner(testKey)
	msg := []byte("SAT001-GetState&@")

	if !s.Verify(msg, s.Tag(msg)) {
		t.Fatal("Verify rejected a freshly computed tag")
	}
}

func TestVerifyIsCaseInsensitive(t *testing.T) {
	s := NewSigner(testKey)
	msg := []byte("SAT001-Ping&@")

	upper := strings.ToUpper(s.Tag(msg))
	if !s.Verify(msg, upper) {
		t.Fatal("Verify rejected an uppercase tag")
	}
}

func TestVerifyRejectsAlteredTag(t *testing.T) {
	s := NewSigner(testKey)
	msg := []byte("SAT001-Ping&@")

	tag := []byte(s.Tag(msg))
	if tag[0] == 'a' {
		tag[0] = 'b'
	} else {
		tag[0] = 'a'
	}
	if s.Verify(msg, string(tag)) {
		t.Fatal("Verify accepted a tag with one altered character")
	}
}

func TestVerifyRejectsWrongLength(t *testing.T) {
	s := NewSigner(testKey)
	msg := []byte("SAT001-Ping&@")

	if s.Verify(msg, s.Tag(msg)[:HexTagLen-2]) {
		t.Fatal("Verify accepted a short tag")
	}
	if s.Verify(msg, s.Tag(msg)+"00") {
		t.Fatal("Verify accepted an overlong tag")
	}
}

func TestDifferentKeysProduceDifferentTags(t *testing.T) {
	a := NewSigner(testKey)
	b := NewSigner([]byte("another-key-entirely-32-bytes!!!"))
	msg := []byte("SAT001-Ping&@")

	if a.Tag(msg) == b.Tag(msg) {
		t.Fatal("two keys produced the same tag")
	}
	if b.Verify(msg, a.Tag(msg)) {
		t.Fatal("tag verified under the wrong key")
	}
}
