package etm

import "testing"

func TestPadUnpad(t *testing.T) {
	for n := 0; n <= 33; n++ {
		in := make([]byte, n)
		p := pad(in, 16)
		if len(p)%16 != 0 || len(p) <= n {
			t.Fatalf("pad(%d) -> %d bytes", n, len(p))
		}
		out, err := unpad(p, 16)
		if err != nil {
			t.Fatalf("unpad(%d): %v", n, err)
		}
		if len(out) != n {
			t.Fatalf("unpad(%d) -> %d bytes", n, len(out))
		}
	}
}

func TestUnpadRejects(t *testing.T) {
	bad := [][]byte{
		nil,
		make([]byte, 16),
		append(make([]byte, 15), 17),
		append(make([]byte, 14), 1, 2),
	}
	for i, b := range bad {
		if _, err := unpad(b, 16); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}
