package reference

import (
	"errors"
	"image"
	"testing"
)

func TestCircle_Radius(t *testing.T) {
	tests := []struct {
		w, h int
		want int
	}{
		{50, 50, 25},
		{1, 1, 0},
		{100, 100, 50},
		{30, 41, 17},
		{3, 2, 1},
	}
	for _, tt := range tests {
		if got := (Circle{tt.w, tt.h}).Radius(); got != tt.want {
			t.Errorf("Radius(%dx%d): got %d, want %d", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestAverageRadius(t *testing.T) {
	tests := []struct {
		name    string
		circles []Circle
		want    int
		wantErr error
	}{
		{"slider defaults", DefaultCircles(2), 25, nil},
		{"integer mean", []Circle{{40, 40}, {50, 50}}, 22, nil},
		{"single", []Circle{{60, 20}}, 20, nil},
		{"three", []Circle{{20, 20}, {40, 40}, {60, 60}}, 20, nil},
		{"none", nil, 0, ErrNoReference},
		{"too small", []Circle{{1, 1}, {2, 1}}, 0, ErrRadiusTooSmall},
		{"over slider range", []Circle{{101, 50}}, 0, ErrInvalidSize},
		{"zero width", []Circle{{0, 50}}, 0, ErrInvalidSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AverageRadius(tt.circles, DefaultLimit)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("got %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("AverageRadius failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAverageRadius_CustomLimit(t *testing.T) {
	got, err := AverageRadius([]Circle{{180, 200}}, 400)
	if err != nil {
		t.Fatalf("AverageRadius failed: %v", err)
	}
	if got != 95 {
		t.Errorf("got %d, want 95", got)
	}
}

func TestFromBox(t *testing.T) {
	c := FromBox(image.Rect(10, 10, 70, 62))
	if c.Width != 60 || c.Height != 52 {
		t.Errorf("got %+v, want 60x52", c)
	}
	if c.Radius() != 28 {
		t.Errorf("Radius: got %d, want 28", c.Radius())
	}
}

func TestFromDiameter(t *testing.T) {
	c := FromDiameter(image.Pt(0, 0), image.Pt(30, 40))
	if c.Width != 50 || c.Height != 50 {
		t.Errorf("got %+v, want 50x50", c)
	}
	if c.Radius() != 25 {
		t.Errorf("Radius: got %d, want 25", c.Radius())
	}
}
