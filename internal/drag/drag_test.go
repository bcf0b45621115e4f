package drag

import "testing"

type recordingSurface struct {
	transforms []Point
}

func (s *recordingSurface) Translate(p Point) { s.transforms = append(s.transforms, p) }

func TestGesture_AccumulatesDeltas(t *testing.T) {
	doc := NewDocument()
	surf := &recordingSurface{}
	c := NewController(doc, surf)

	if !c.Begin(Mouse{ClientX: 100, ClientY: 100}) {
		t.Fatalf("expected gesture to begin")
	}
	doc.Emit(MouseMove, Mouse{ClientX: 110, ClientY: 95})
	doc.Emit(MouseMove, Mouse{ClientX: 130, ClientY: 105})
	doc.Emit(MouseUp, Mouse{ClientX: 130, ClientY: 105})

	want := Point{X: 30, Y: 5}
	if c.Offset() != want {
		t.Fatalf("offset = %+v, want %+v", c.Offset(), want)
	}
	if got := surf.transforms[len(surf.transforms)-1]; got != want {
		t.Fatalf("last transform = %+v, want %+v", got, want)
	}
	if want.Transform() != "translate(30px, 5px)" {
		t.Fatalf("unexpected transform string: %s", want.Transform())
	}
}

func TestGesture_OffsetPersistsAcrossGestures(t *testing.T) {
	doc := NewDocument()
	surf := &recordingSurface{}
	c := NewController(doc, surf)

	c.Begin(Mouse{ClientX: 0, ClientY: 0})
	doc.Emit(MouseMove, Mouse{ClientX: 10, ClientY: 10})
	doc.Emit(MouseUp, Mouse{})

	// second gesture starts far away; only its own deltas count
	c.Begin(Touch{Touches: []Point{{X: 500, Y: 500}}})
	doc.Emit(TouchMove, Touch{Touches: []Point{{X: 495, Y: 520}}})
	doc.Emit(TouchEnd, Touch{})

	want := Point{X: 5, Y: 30}
	if c.Offset() != want {
		t.Fatalf("offset = %+v, want %+v", c.Offset(), want)
	}
}

func TestEnd_DetachesAllListeners(t *testing.T) {
	doc := NewDocument()
	c := NewController(doc, &recordingSurface{})

	if doc.ListenerCount() != 0 {
		t.Fatalf("expected no listeners before gesture")
	}
	c.Begin(Mouse{})
	if doc.ListenerCount() != 4 {
		t.Fatalf("expected 4 listeners during gesture, got %d", doc.ListenerCount())
	}
	c.End()
	c.End()
	if doc.ListenerCount() != 0 {
		t.Fatalf("expected 0 listeners after end, got %d", doc.ListenerCount())
	}
	if c.Active() {
		t.Fatalf("expected inactive after end")
	}
}

func TestBegin_RepeatedGesturesDoNotLeakListeners(t *testing.T) {
	doc := NewDocument()
	c := NewController(doc, &recordingSurface{})

	for i := 0; i < 5; i++ {
		c.Begin(Mouse{ClientX: float64(i)})
	}
	if doc.ListenerCount() != 4 {
		t.Fatalf("expected 4 listeners after repeated begin, got %d", doc.ListenerCount())
	}
	doc.Emit(TouchEnd, Touch{})
	if doc.ListenerCount() != 0 {
		t.Fatalf("expected 0 listeners after touchend, got %d", doc.ListenerCount())
	}
}

func TestMove_IgnoredWhenInactive(t *testing.T) {
	doc := NewDocument()
	surf := &recordingSurface{}
	c := NewController(doc, surf)

	c.Move(Mouse{ClientX: 50, ClientY: 50})

	c.Begin(Mouse{ClientX: 0, ClientY: 0})
	doc.Emit(MouseMove, Mouse{ClientX: 3, ClientY: 4})
	c.End()
	before := len(surf.transforms)

	doc.Emit(MouseMove, Mouse{ClientX: 100, ClientY: 100})
	c.Move(Mouse{ClientX: 200, ClientY: 200})

	if len(surf.transforms) != before {
		t.Fatalf("transform changed after gesture end")
	}
	if c.Offset() != (Point{X: 3, Y: 4}) {
		t.Fatalf("unexpected offset %+v", c.Offset())
	}
}

func TestBegin_TouchWithoutPointsIsIgnored(t *testing.T) {
	doc := NewDocument()
	c := NewController(doc, &recordingSurface{})
	if c.Begin(Touch{}) {
		t.Fatalf("expected begin to reject an empty touch list")
	}
	if c.Active() || doc.ListenerCount() != 0 {
		t.Fatalf("rejected begin must not start a session")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want Point
		ok   bool
	}{
		{"mouse", Mouse{ClientX: 1, ClientY: 2}, Point{X: 1, Y: 2}, true},
		{"first touch wins", Touch{Touches: []Point{{X: 3, Y: 4}, {X: 9, Y: 9}}}, Point{X: 3, Y: 4}, true},
		{"no touches", Touch{}, Point{}, false},
		{"nil", nil, Point{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.ev)
			if got != tt.want || ok != tt.ok {
				t.Fatalf("Normalize = %+v,%v want %+v,%v", got, ok, tt.want, tt.ok)
			}
		})
	}
}
