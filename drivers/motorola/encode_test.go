package motorola

import "testing"

func TestAddressEncodingHasNoIllegalPairs(t *testing.T) {
	for a := 0; a <= 79; a++ {
		enc := AddressToLineBits(a)
		for i := 0; i < 4; i++ {
			if (enc>>(2*i))&0b11 == tritWrong {
				t.Fatalf("address %d: pair %d is 10 (enc=%08b)", a, i, enc)
			}
		}
	}
}

func TestAddressEncodingInjective(t *testing.T) {
	seen := map[uint8]int{}
	for a := 0; a <= 79; a++ {
		enc := AddressToLineBits(a)
		if prev, ok := seen[enc]; ok {
			t.Fatalf("addresses %d and %d share code %08b", prev, a, enc)
		}
		seen[enc] = a
	}
}

func TestAddressSpecialCases(t *testing.T) {
	if AddressToLineBits(80) != AddressToLineBits(0) {
		t.Fatal("address 80 must be sent as address 0")
	}
	reserved := AddressToLineBits(IdleAddress)
	for _, a := range []int{-1, -80, 81, 82, 127, 1000} {
		if got := AddressToLineBits(a); got != reserved {
			t.Errorf("address %d: got %08b want reserved %08b", a, got, reserved)
		}
	}
}

func TestAddressKnownCodes(t *testing.T) {
	cases := []struct {
		addr int
		want uint8
	}{
		{1, 0b00000011},
		{2, 0b00000001},
		{3, 0b00001100},
		{5, 0b00001101},
		{26, 0b00010101},
		{40, 0b11111111},
	}
	for _, tc := range cases {
		if got := AddressToLineBits(tc.addr); got != tc.want {
			t.Errorf("address %d: got %08b want %08b", tc.addr, got, tc.want)
		}
	}
}

func TestAddressRoundTrip(t *testing.T) {
	for a := 0; a <= 79; a++ {
		got, err := LineBitsToAddress(AddressToLineBits(a))
		if err != nil || got != a {
			t.Fatalf("address %d: got %d err=%v", a, got, err)
		}
	}
	if _, err := LineBitsToAddress(0b10); err == nil {
		t.Fatal("pair 10 decoded without error")
	}
}

func TestSpeedEncoding(t *testing.T) {
	for s := uint8(0); s <= 15; s++ {
		enc := SpeedToLineBits(s)
		var back uint8
		for i := 0; i < 4; i++ {
			switch (enc >> (2 * i)) & 0b11 {
			case 0b11:
				back |= 1 << i
			case 0b00:
			default:
				t.Fatalf("speed %d: pair %d not doubled (enc=%08b)", s, i, enc)
			}
		}
		if back != s {
			t.Fatalf("speed %d decoded as %d", s, back)
		}
	}
	for _, s := range []uint8{16, 17, 100, 255} {
		if SpeedToLineBits(s) != SpeedToLineBits(15) {
			t.Errorf("speed %d not clamped to 15", s)
		}
	}
}

func TestSwitchStateEncoding(t *testing.T) {
	if got := SwitchStateToLineBits(2, true); got != 0b11001100 {
		t.Fatalf("got %08b", got)
	}
	if got := SwitchStateToLineBits(7, false); got != 0b00111111 {
		t.Fatalf("got %08b", got)
	}
}

func TestTrainMessageLayout(t *testing.T) {
	m := TrainMessage(1, true, 15)
	if want := Message(0xFF<<10 | 0b11<<8 | 0b11); m != want {
		t.Fatalf("got %#x want %#x", m, want)
	}
	if !m.Valid() {
		t.Fatal("train message reported invalid")
	}
	if a, err := m.Address(); err != nil || a != 1 {
		t.Fatalf("address=%d err=%v", a, err)
	}
}

func TestSwitchMessageLayout(t *testing.T) {
	m := SwitchMessage(5, 2, true)
	if m != 0x3300D {
		t.Fatalf("got %#x", m)
	}
}

func TestMessageValid(t *testing.T) {
	if !IdleMessage.Valid() {
		t.Fatal("idle message invalid")
	}
	if Message(0b10).Valid() {
		t.Fatal("pair 10 accepted")
	}
	if Message(1 << BitCountMsg).Valid() {
		t.Fatal("bits beyond the packet accepted")
	}
}
