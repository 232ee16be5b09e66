package hal

import "testing"

func TestFakePinEdges(t *testing.T) {
	cases := []struct {
		name  string
		edge  Edge
		from  bool
		to    bool
		fires bool
	}{
		{"rising on rising", EdgeRising, false, true, true},
		{"rising on falling", EdgeRising, true, false, false},
		{"falling on falling", EdgeFalling, true, false, true},
		{"both on rising", EdgeBoth, false, true, true},
		{"no change", EdgeBoth, true, true, false},
		{"none", EdgeNone, false, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewFakePin(3, tc.from)
			fired := false
			_ = p.SetIRQ(tc.edge, func() { fired = true })
			p.Set(tc.to)
			if fired != tc.fires {
				t.Fatalf("fired=%v want %v", fired, tc.fires)
			}
		})
	}
}

func TestFakeTimerTrace(t *testing.T) {
	var ft FakeTimer
	n := 0
	_ = ft.Configure(10, 0, func() {
		n++
		ft.SetTop(uint32(10 * (n + 1)))
		ft.SetCompare(uint32(n))
	})
	ft.Fire(3)
	tr := ft.Trace()
	if len(tr) != 3 {
		t.Fatalf("trace len=%d", len(tr))
	}
	if tr[2] != (Period{Top: 40, Compare: 3}) {
		t.Fatalf("last=%+v", tr[2])
	}
	if ft.Writes() != 6 {
		t.Fatalf("writes=%d", ft.Writes())
	}
}
