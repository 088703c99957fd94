package pricing

import (
	"math"
	"testing"
)

func TestParseDimensions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want Dimensions
	}{
		{
			name: "well formed",
			raw:  "30x20x15",
			want: Dimensions{Length: 30, Width: 20, Height: 15},
		},
		{
			name: "uppercase separator with spaces",
			raw:  " 30 X 20 X 15 ",
			want: Dimensions{Length: 30, Width: 20, Height: 15},
		},
		{
			name: "fractional values",
			raw:  "12.5x8x4.2",
			want: Dimensions{Length: 12.5, Width: 8, Height: 4.2},
		},
		{
			name: "empty falls back to default",
			raw:  "",
			want: defaultDimensions,
		},
		{
			name: "too few parts falls back to default",
			raw:  "30x20",
			want: defaultDimensions,
		},
		{
			name: "non numeric falls back to default",
			raw:  "30x20xbig",
			want: defaultDimensions,
		},
		{
			name: "zero dimension falls back to default",
			raw:  "30x0x15",
			want: defaultDimensions,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ParseDimensions(tt.raw)
			if got != tt.want {
				t.Fatalf("ParseDimensions(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestDimensionalWeight(t *testing.T) {
	t.Parallel()

	dims := Dimensions{Length: 30, Width: 20, Height: 15}
	want := 30.0 * 20.0 * 15.0 / 139.0
	if got := dims.DimensionalWeight(); math.Abs(got-want) > 1e-9 {
		t.Fatalf("DimensionalWeight() = %v, want %v", got, want)
	}
}

func TestChargeableWeight(t *testing.T) {
	t.Parallel()

	bulky := Dimensions{Length: 50, Width: 40, Height: 30}

	// 50*40*30/139 ~ 431.65, dwarfs the actual weight.
	if got := ChargeableWeight(2, bulky); got <= 2 {
		t.Fatalf("ChargeableWeight(2, bulky) = %v, want dimensional weight to win", got)
	}

	dense := Dimensions{Length: 10, Width: 10, Height: 10}
	if got := ChargeableWeight(25, dense); got != 25 {
		t.Fatalf("ChargeableWeight(25, dense) = %v, want actual weight 25", got)
	}
}
