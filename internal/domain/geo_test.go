package domain

import (
	"math"
	"testing"
)

func TestDistanceM(t *testing.T) {
	shibuya := Coords{Lat: 35.6580, Lng: 139.7016}

	if d := DistanceM(shibuya, shibuya); d != 0 {
		t.Fatalf("identical points: got %f, want 0", d)
	}

	// one degree of latitude is ~111.19km on this sphere
	north := Coords{Lat: shibuya.Lat + 1, Lng: shibuya.Lng}
	d := DistanceM(shibuya, north)
	if math.Abs(d-111_195) > 100 {
		t.Fatalf("one degree latitude: got %.0fm, want ~111195m", d)
	}

	// symmetry
	if back := DistanceM(north, shibuya); math.Abs(back-d) > 1e-6 {
		t.Fatalf("distance is not symmetric: %f vs %f", d, back)
	}

	// Shibuya to Shinjuku station is roughly 3.4km
	shinjuku := Coords{Lat: 35.6896, Lng: 139.7006}
	d = DistanceM(shibuya, shinjuku)
	if d < 3_300 || d > 3_600 {
		t.Fatalf("shibuya-shinjuku: got %.0fm, want ~3.4km", d)
	}
}
