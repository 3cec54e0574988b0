package pe

import "testing"

func TestGuidFromHeapSlotZeroIsNoError(t *testing.T) {
	g, err := GuidFromHeapSlot(make([]byte, 16), 0)
	if err != nil {
		t.Fatalf("GuidFromHeapSlot(data, 0) error: %v", err)
	}
	if g != (GUID{}) {
		t.Errorf("GuidFromHeapSlot(data, 0) = %v, want zero GUID", g)
	}
}

func TestGuidFromHeapSlotDecodesSlot(t *testing.T) {
	slot1 := [16]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F, 0x10}
	slot2 := [16]byte{0x10, 0x0F, 0x0E, 0x0D, 0x0C, 0x0B, 0x0A, 0x09, 0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}
	data := append(append([]byte{}, slot1[:]...), slot2[:]...)

	g, err := GuidFromHeapSlot(data, 1)
	if err != nil {
		t.Fatalf("GuidFromHeapSlot(data, 1) error: %v", err)
	}
	if want := GuidFromWindowsArray(slot1); g != want {
		t.Errorf("GuidFromHeapSlot(data, 1) = %v, want %v", g, want)
	}

	g, err = GuidFromHeapSlot(data, 2)
	if err != nil {
		t.Fatalf("GuidFromHeapSlot(data, 2) error: %v", err)
	}
	if want := GuidFromWindowsArray(slot2); g != want {
		t.Errorf("GuidFromHeapSlot(data, 2) = %v, want %v", g, want)
	}
}

func TestGuidFromHeapSlotOutOfRange(t *testing.T) {
	if _, err := GuidFromHeapSlot(make([]byte, 16), 2); err == nil {
		t.Fatal("GuidFromHeapSlot(data, 2) succeeded for a single-slot heap, want an error")
	}
}

func TestGuidStringFormats(t *testing.T) {
	g := GuidFromWindowsArray([16]byte{
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F, 0x10,
	})

	cases := map[string]string{
		"D": "04030201-0605-0807-090a-0b0c0d0e0f10",
		"N": "0403020106050807090a0b0c0d0e0f10",
		"B": "{04030201-0605-0807-090a-0b0c0d0e0f10}",
		"P": "(04030201-0605-0807-090a-0b0c0d0e0f10)",
	}
	for format, want := range cases {
		got, err := g.ToString(format)
		if err != nil {
			t.Fatalf("ToString(%q) error: %v", format, err)
		}
		if got != want {
			t.Errorf("ToString(%q) = %q, want %q", format, got, want)
		}
	}

	if _, err := g.ToString("Q"); err == nil {
		t.Fatal("ToString(\"Q\") succeeded for an unknown format, want an error")
	}
}

func TestGuidStringRoundTrip(t *testing.T) {
	want := GuidFromWindowsArray([16]byte{
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F, 0x10,
	})
	parsed, err := GuidFromString(want.String())
	if err != nil {
		t.Fatalf("GuidFromString error: %v", err)
	}
	if parsed != want {
		t.Errorf("GuidFromString(want.String()) = %v, want %v", parsed, want)
	}
}
