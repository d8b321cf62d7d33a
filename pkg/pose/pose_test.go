package pose

import (
	"math"
	"testing"
)

const floatTolerance = 1e-9

func matrixEquals(a, b Matrix) bool {
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if math.Abs(a[i][j]-b[i][j]) > floatTolerance {
				return false
			}
		}
	}
	return true
}

func TestNew_ZeroAnglesIsIdentityRotation(t *testing.T) {
	m := New(0, 0, 0, 0, 0, 0)
	if !matrixEquals(m, Identity()) {
		t.Errorf("zero pose is not identity: %v", m)
	}
}

func TestNew_TranslationMillimetersToMeters(t *testing.T) {
	m := New(0, 0, 0, 10, -20, 35)
	x, y, z := m.Translation()
	if math.Abs(x-0.010) > floatTolerance {
		t.Errorf("x: got %v, want 0.010", x)
	}
	if math.Abs(y+0.020) > floatTolerance {
		t.Errorf("y: got %v, want -0.020", y)
	}
	if math.Abs(z-0.035) > floatTolerance {
		t.Errorf("z: got %v, want 0.035", z)
	}
}

func TestNew_SingleAxisRotations(t *testing.T) {
	// 90 degrees yaw rotates x-axis onto y... for intrinsic XYZ with only
	// yaw set, the rotation block must equal Rz(90).
	m := New(0, 0, 90, 0, 0, 0)
	want := Matrix{
		{0, -1, 0, 0},
		{1, 0, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
	if !matrixEquals(m, want) {
		t.Errorf("yaw 90: got %v, want %v", m, want)
	}

	m = New(90, 0, 0, 0, 0, 0)
	want = Matrix{
		{1, 0, 0, 0},
		{0, 0, -1, 0},
		{0, 1, 0, 0},
		{0, 0, 0, 1},
	}
	if !matrixEquals(m, want) {
		t.Errorf("roll 90: got %v, want %v", m, want)
	}
}

func TestCompose_IdentityIsInert(t *testing.T) {
	m := New(10, -5, 20, 1, 2, 3)
	if !matrixEquals(Compose(m, Identity()), m) {
		t.Error("right-composing identity changed the pose")
	}
	if !matrixEquals(Compose(Identity(), m), m) {
		t.Error("left-composing identity changed the pose")
	}
}

func TestCompose_TranslationsAdd(t *testing.T) {
	a := New(0, 0, 0, 10, 0, 0)
	b := New(0, 0, 0, 0, 20, 0)
	x, y, z := Compose(a, b).Translation()
	if math.Abs(x-0.010) > floatTolerance || math.Abs(y-0.020) > floatTolerance || z != 0 {
		t.Errorf("composed translation: got (%v,%v,%v)", x, y, z)
	}
}

func TestCompose_RotationsAccumulate(t *testing.T) {
	a := New(0, 0, 45, 0, 0, 0)
	b := New(0, 0, 45, 0, 0, 0)
	want := New(0, 0, 90, 0, 0, 0)
	if !matrixEquals(Compose(a, b), want) {
		t.Error("two 45 degree yaws did not compose to 90")
	}
}
