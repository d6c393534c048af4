package types

import "testing"

func TestRegisterPair_RoundTrip(t *testing.T) {
	r := NewRegisters()
	pairs := map[string]*RegisterPair{"BC": r.BC, "DE": r.DE, "HL": r.HL}
	for name, pair := range pairs {
		for x := 0; x <= 0xFFFF; x++ {
			pair.SetUint16(uint16(x))
			if pair.Uint16() != uint16(x) {
				t.Fatalf("%s: expected 0x%04X, got 0x%04X", name, x, pair.Uint16())
			}
		}
	}

	if r.B != 0xFF || r.C != 0xFF {
		t.Errorf("expected BC halves to follow pair writes, got B=%02X C=%02X", r.B, r.C)
	}
}

func TestRegisterPair_AFMasksFlags(t *testing.T) {
	r := NewRegisters()
	for x := 0; x <= 0xFFFF; x++ {
		r.AF.SetUint16(uint16(x))
		if got := r.AF.Uint16(); got != uint16(x)&0xFFF0 {
			t.Fatalf("AF: wrote 0x%04X, read 0x%04X", x, got)
		}
		if r.F&0x0F != 0 {
			t.Fatalf("AF: low nibble of F is 0x%X", r.F&0x0F)
		}
	}
}
