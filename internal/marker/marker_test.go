package marker

import (
	"math"
	"testing"

	"gocv.io/x/gocv"
)

func TestParseDictionary(t *testing.T) {
	tests := []struct {
		name    string
		want    gocv.ArucoDictionaryCode
		wantErr bool
	}{
		{"4x4_50", gocv.ArucoDict4x4_50, false},
		{"6X6_100", gocv.ArucoDict6x6_100, false},
		{"apriltag", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDictionary(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDictionary(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseDictionary(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestGenerate_Invalid(t *testing.T) {
	if _, err := Generate(gocv.ArucoDict4x4_50, -1, 50); err == nil {
		t.Error("negative id should be rejected")
	}
	if _, err := Generate(gocv.ArucoDict4x4_50, 0, 0); err == nil {
		t.Error("zero side should be rejected")
	}
}

func TestArucoLocator_Detect(t *testing.T) {
	m, err := Generate(gocv.ArucoDict4x4_50, 5, 100)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	defer m.Close()

	frame := Quiet(m, 50)
	defer frame.Close()
	if frame.Cols() != 200 || frame.Rows() != 200 {
		t.Fatalf("padded size = %dx%d, want 200x200", frame.Cols(), frame.Rows())
	}

	loc := NewArucoLocator(gocv.ArucoDict4x4_50)
	defer loc.Close()

	obs, err := loc.Detect(frame)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(obs) != 1 {
		t.Fatalf("found %d markers, want 1", len(obs))
	}
	if obs[0].ID != 5 {
		t.Errorf("id = %d, want 5", obs[0].ID)
	}

	want := [4]gocv.Point2f{{X: 50, Y: 50}, {X: 150, Y: 50}, {X: 150, Y: 150}, {X: 50, Y: 150}}
	for i, c := range obs[0].Corners {
		if math.Abs(float64(c.X-want[i].X)) > 2 || math.Abs(float64(c.Y-want[i].Y)) > 2 {
			t.Errorf("corner %d = %v, want near %v", i, c, want[i])
		}
	}
}

func TestArucoLocator_Empty(t *testing.T) {
	blank := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), 120, 160, gocv.MatTypeCV8UC1)
	defer blank.Close()

	loc := NewArucoLocator(gocv.ArucoDict4x4_50)
	defer loc.Close()

	obs, err := loc.Detect(blank)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(obs) != 0 {
		t.Errorf("found %d markers on a blank frame", len(obs))
	}
}

func TestArucoLocator_RejectsColor(t *testing.T) {
	bgr := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC3)
	defer bgr.Close()

	loc := NewArucoLocator(gocv.ArucoDict4x4_50)
	defer loc.Close()

	if _, err := loc.Detect(bgr); err == nil {
		t.Error("expected error for a 3-channel frame")
	}
}

func TestDraw(t *testing.T) {
	bgr := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 60, 60, gocv.MatTypeCV8UC3)
	defer bgr.Close()

	Draw(&bgr, []Observation{{ID: 1, Corners: [4]gocv.Point2f{{X: 10, Y: 10}, {X: 40, Y: 10}, {X: 40, Y: 40}, {X: 10, Y: 40}}}})

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)
	if gocv.CountNonZero(gray) == 0 {
		t.Error("nothing was drawn")
	}
}
