package landsat

import "testing"

func TestParseBand(t *testing.T) {
	for want, name := range BandNames {
		b, err := ParseBand(name)
		if err != nil {
			t.Fatalf("ParseBand(%q) failed: %v", name, err)
		}
		if b != Band(want) {
			t.Errorf("ParseBand(%q) = %v, want %v", name, b, Band(want))
		}
	}
	if _, err := ParseBand("B6"); err == nil {
		t.Error("expected error for thermal band name")
	}
	if _, err := ParseBand("red"); err == nil {
		t.Error("expected error for non-canonical name")
	}
}

func TestFamilyForSensor(t *testing.T) {
	cases := []struct {
		sensorID string
		want     SensorFamily
	}{
		{"LT05", FamilyTM},
		{"LE07", FamilyTM},
		{"LC08", FamilyOLI},
		{"LC09", FamilyOLI},
	}
	for _, c := range cases {
		got, err := FamilyForSensor(c.sensorID)
		if err != nil {
			t.Fatalf("FamilyForSensor(%q) failed: %v", c.sensorID, err)
		}
		if got != c.want {
			t.Errorf("FamilyForSensor(%q) = %v, want %v", c.sensorID, got, c.want)
		}
	}
	if _, err := FamilyForSensor("MODIS"); err == nil {
		t.Error("expected error for unknown sensor")
	}
}
