package domain

import "testing"

// FuzzParseContactID checks parsing never panics and valid ids round-trip.
func FuzzParseContactID(f *testing.F) {
	f.Add("")
	f.Add("0190a5d2-7b5e-7c3a-8f1e-2d4b6a8c0e12")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE contacts;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseContactID(input)
		if err != nil {
			if !id.IsNil() {
				t.Error("error returned alongside a non-nil id")
			}
			return
		}
		if id.IsNil() {
			t.Error("nil id accepted")
		}
		back, err := ParseContactID(id.String())
		if err != nil || back != id {
			t.Errorf("round-trip failed: %v", err)
		}
	})
}
