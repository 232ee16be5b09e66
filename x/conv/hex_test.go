package conv

import "testing"

func TestU32Hex(t *testing.T) {
	var buf [8]byte
	if got := string(U32Hex(buf[:], 0x1ABCDE12)); got != "1ABCDE12" {
		t.Fatalf("got %q", got)
	}
	if got := U32Hex(buf[:4], 1); len(got) != 0 {
		t.Fatalf("short buffer: got %q", got)
	}
}

func TestAppendHex(t *testing.T) {
	tests := []struct {
		n      uint32
		digits int
		want   string
	}{
		{0x080, 3, "080"},
		{0x7FF, 3, "7FF"},
		{0xA, 1, "A"},
		{0x1ABCDE12, 8, "1ABCDE12"},
		{0xDEAD, 2, "AD"},
	}
	for _, tc := range tests {
		if got := string(AppendHex(nil, tc.n, tc.digits)); got != tc.want {
			t.Errorf("AppendHex(%#x, %d) = %q, want %q", tc.n, tc.digits, got, tc.want)
		}
	}
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
		ok   bool
	}{
		{"080", 0x80, true},
		{"1abcDE12", 0x1ABCDE12, true},
		{"", 0, false},
		{"12G", 0, false},
		{"123456789", 0, false},
	}
	for _, tc := range tests {
		got, ok := ParseHex([]byte(tc.in))
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseHex(%q) = %#x, %v", tc.in, got, ok)
		}
	}
}

func TestItoa(t *testing.T) {
	var buf [20]byte
	for n, want := range map[int64]string{-42: "-42", 0: "0", 9568: "9568"} {
		if got := string(Itoa(buf[:], n)); got != want {
			t.Fatalf("Itoa(%d) = %q", n, got)
		}
	}
}
