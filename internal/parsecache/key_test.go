package parsecache

import "testing"

func TestNewCharacterKey_Normalizes(t *testing.T) {
	tests := []struct {
		name  string
		world string
		want  CharacterKey
	}{
		{"Aeli Runa", "Tonberry", CharacterKey{Name: "aeli runa", World: "tonberry"}},
		{"  Aeli Runa  ", "  TONBERRY ", CharacterKey{Name: "aeli runa", World: "tonberry"}},
		{"aeli runa", "tonberry", CharacterKey{Name: "aeli runa", World: "tonberry"}},
	}

	for _, tt := range tests {
		if got := NewCharacterKey(tt.name, tt.world); got != tt.want {
			t.Errorf("NewCharacterKey(%q, %q) = %+v, want %+v", tt.name, tt.world, got, tt.want)
		}
	}
}

func TestCharacterKey_EqualityAfterNormalization(t *testing.T) {
	a := NewCharacterKey("Aeli Runa", "Tonberry")
	b := NewCharacterKey("AELI RUNA", "tonberry")
	if a != b {
		t.Errorf("normalized keys differ: %+v vs %+v", a, b)
	}
}

func TestKey_String(t *testing.T) {
	key := Key{
		Character:   NewCharacterKey("Aeli Runa", "Tonberry"),
		ZoneID:      73,
		EncounterID: 104,
	}
	want := "parse:v1:tonberry:aeli runa:73:104"
	if got := key.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
