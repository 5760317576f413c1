package tensor

import (
	"testing"
)

func TestNew_ZeroFilled(t *testing.T) {
	x := New(Shape{2, 3})
	if x.NumElements() != 6 {
		t.Errorf("expected 6 elements, got %d", x.NumElements())
	}
	for i, v := range x.Data() {
		if v != 0 {
			t.Errorf("element %d not zero: %v", i, v)
		}
	}
}

func TestNew_InvalidShapePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for non-positive dimension")
		}
	}()
	New(Shape{2, 0, 3})
}

func TestFromSlice(t *testing.T) {
	x, err := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if x.At(0, 0) != 1 || x.At(1, 2) != 6 {
		t.Errorf("row-major layout broken: %v", x.Data())
	}

	if _, err := FromSlice([]float32{1, 2}, Shape{2, 3}); err == nil {
		t.Error("expected error for element count mismatch")
	}
}

func TestAtSet(t *testing.T) {
	x := New(Shape{2, 2, 2})
	x.Set(7, 1, 0, 1)
	if x.At(1, 0, 1) != 7 {
		t.Errorf("expected 7, got %v", x.At(1, 0, 1))
	}
	if x.Data()[5] != 7 {
		t.Errorf("expected offset 5, data: %v", x.Data())
	}
}

func TestReshape_SharesData(t *testing.T) {
	x := New(Shape{2, 3})
	y := x.Reshape(3, 2)
	y.Set(5, 0, 1)
	if x.At(0, 1) != 5 {
		t.Error("reshape must share the backing data")
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic for element count mismatch")
		}
	}()
	x.Reshape(4, 2)
}

func TestClone_Independent(t *testing.T) {
	x := New(Shape{2})
	x.Fill(1)
	y := x.Clone()
	y.Set(9, 0)
	if x.At(0) != 1 {
		t.Error("clone must not alias the original")
	}
}

func TestShapeNHWC(t *testing.T) {
	n, h, w, c := Shape{2, 8, 8, 3}.NHWC()
	if n != 2 || h != 8 || w != 8 || c != 3 {
		t.Errorf("got %d %d %d %d", n, h, w, c)
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic for non-4D shape")
		}
	}()
	Shape{2, 3}.NHWC()
}

func TestShapeEqual(t *testing.T) {
	if !(Shape{1, 2}).Equal(Shape{1, 2}) {
		t.Error("equal shapes reported unequal")
	}
	if (Shape{1, 2}).Equal(Shape{1, 2, 3}) {
		t.Error("different ranks reported equal")
	}
	if (Shape{1, 2}).Equal(Shape{2, 1}) {
		t.Error("different dims reported equal")
	}
}
