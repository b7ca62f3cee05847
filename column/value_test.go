package column

import (
	"testing"
	"time"
)

func TestValueKey(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		a    Value
		b    Value
		same bool
	}{
		{name: "equal strings", a: String("apple"), b: String("apple"), same: true},
		{name: "different strings", a: String("apple"), b: String("banana"), same: false},
		{name: "equal numbers", a: Number(42), b: Number(42), same: true},
		{name: "different numbers", a: Number(42), b: Number(43), same: false},
		{name: "nulls", a: Null(), b: Null(), same: true},
		{name: "null vs empty string", a: Null(), b: String(""), same: false},
		{name: "equal times across zones", a: DateTime(ts), b: DateTime(ts.In(time.FixedZone("X", 3600))), same: true},
		{name: "bools", a: Bool(true), b: Bool(false), same: false},
		{name: "number vs string", a: Number(1), b: String("1"), same: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Key() == tt.b.Key(); got != tt.same {
				t.Errorf("Key() equality = %v, want %v (%q vs %q)", got, tt.same, tt.a.Key(), tt.b.Key())
			}
		})
	}
}

func TestCompare(t *testing.T) {
	early := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		a    Value
		b    Value
		want int
	}{
		{name: "number less", a: Number(1), b: Number(2), want: -1},
		{name: "number greater", a: Number(3), b: Number(2), want: 1},
		{name: "number equal", a: Number(2), b: Number(2), want: 0},
		{name: "string order", a: String("apple"), b: String("banana"), want: -1},
		{name: "datetime order", a: DateTime(early), b: DateTime(late), want: -1},
		{name: "bool order", a: Bool(false), b: Bool(true), want: -1},
		{name: "null sorts before string", a: Null(), b: String("a"), want: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIsEmpty(t *testing.T) {
	if !Null().IsEmpty() {
		t.Error("Null should be empty")
	}
	if !String("").IsEmpty() {
		t.Error("empty string should be empty")
	}
	if String("x").IsEmpty() {
		t.Error("non-empty string should not be empty")
	}
	if Number(0).IsEmpty() {
		t.Error("zero number should not be empty")
	}
}

func TestFromAny(t *testing.T) {
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		in      any
		want    Value
		wantErr bool
	}{
		{name: "nil", in: nil, want: Null()},
		{name: "string", in: "hello", want: String("hello")},
		{name: "int", in: 7, want: Number(7)},
		{name: "float64", in: 2.5, want: Number(2.5)},
		{name: "bool", in: true, want: Bool(true)},
		{name: "time", in: ts, want: DateTime(ts)},
		{name: "passthrough", in: String("x"), want: String("x")},
		{name: "unsupported", in: struct{}{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAny(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FromAny() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && !Equal(got, tt.want) {
				t.Errorf("FromAny() = %v, want %v", got, tt.want)
			}
		})
	}
}
