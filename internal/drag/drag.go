// Package drag moves a floating surface with mouse or touch gestures.
//
// Motion is accumulated from per-event deltas rather than derived from the
// gesture origin, so the offset stays correct when the surface moves under the
// pointer.
package drag

import (
	"fmt"
	"sort"
	"sync"
)

type Point struct {
	X, Y float64
}

func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Transform renders p as a CSS translate.
func (p Point) Transform() string {
	return fmt.Sprintf("translate(%gpx, %gpx)", p.X, p.Y)
}

// Event is either Mouse or Touch.
type Event interface {
	isEvent()
}

type Mouse struct {
	ClientX, ClientY float64
}

type Touch struct {
	Touches []Point
}

func (Mouse) isEvent() {}
func (Touch) isEvent() {}

// Normalize maps any input event to one client coordinate. Touch events use the
// first active touch; a touch event without touches has no coordinate.
func Normalize(ev Event) (Point, bool) {
	switch e := ev.(type) {
	case Mouse:
		return Point{X: e.ClientX, Y: e.ClientY}, true
	case Touch:
		if len(e.Touches) == 0 {
			return Point{}, false
		}
		return e.Touches[0], true
	default:
		return Point{}, false
	}
}

type EventKind int

const (
	MouseMove EventKind = iota
	MouseUp
	TouchMove
	TouchEnd
)

func (k EventKind) String() string {
	switch k {
	case MouseMove:
		return "mousemove"
	case MouseUp:
		return "mouseup"
	case TouchMove:
		return "touchmove"
	case TouchEnd:
		return "touchend"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Target is where gesture listeners are attached for the duration of a gesture.
type Target interface {
	Listen(kind EventKind, fn func(Event)) (remove func())
}

type Surface interface {
	Translate(offset Point)
}

type Controller struct {
	target  Target
	surface Surface

	mu       sync.Mutex
	active   bool
	last     Point
	offset   Point
	removers []func()
}

func NewController(target Target, surface Surface) *Controller {
	return &Controller{target: target, surface: surface}
}

// Begin starts a gesture at ev. It returns false, and starts nothing, when ev
// carries no coordinate. A gesture already in progress is ended first.
func (c *Controller) Begin(ev Event) bool {
	p, ok := Normalize(ev)
	if !ok {
		return false
	}
	c.End()

	c.mu.Lock()
	c.active = true
	c.last = p
	c.mu.Unlock()

	removers := []func(){
		c.target.Listen(MouseMove, c.Move),
		c.target.Listen(MouseUp, func(Event) { c.End() }),
		c.target.Listen(TouchMove, c.Move),
		c.target.Listen(TouchEnd, func(Event) { c.End() }),
	}

	c.mu.Lock()
	c.removers = removers
	c.mu.Unlock()
	return true
}

func (c *Controller) Move(ev Event) {
	p, ok := Normalize(ev)
	if !ok {
		return
	}

	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.offset = c.offset.Add(p.Sub(c.last))
	c.last = p
	offset := c.offset
	c.mu.Unlock()

	c.surface.Translate(offset)
}

// End finishes the gesture and detaches its listeners. Extra calls are no-ops.
func (c *Controller) End() {
	c.mu.Lock()
	c.active = false
	removers := c.removers
	c.removers = nil
	c.mu.Unlock()

	for _, remove := range removers {
		remove()
	}
}

func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Offset is the accumulated translation across all gestures so far.
func (c *Controller) Offset() Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset
}

// Document is an in-memory Target. Hosts forward their raw input to Emit.
type Document struct {
	mu        sync.Mutex
	next      int
	listeners map[EventKind]map[int]func(Event)
}

func NewDocument() *Document {
	return &Document{listeners: make(map[EventKind]map[int]func(Event))}
}

func (d *Document) Listen(kind EventKind, fn func(Event)) func() {
	d.mu.Lock()
	id := d.next
	d.next++
	if d.listeners[kind] == nil {
		d.listeners[kind] = make(map[int]func(Event))
	}
	d.listeners[kind][id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.listeners[kind], id)
		d.mu.Unlock()
	}
}

// Emit delivers ev to every listener of kind registered at the time of the call.
func (d *Document) Emit(kind EventKind, ev Event) {
	d.mu.Lock()
	ids := make([]int, 0, len(d.listeners[kind]))
	for id := range d.listeners[kind] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, d.listeners[kind][id])
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (d *Document) ListenerCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, m := range d.listeners {
		n += len(m)
	}
	return n
}
