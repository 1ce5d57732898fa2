package mesh

import (
	"container/heap"
	"errors"
	"fmt"
	gomath "math"

	"gonum.org/v1/gonum/mat"

	"github.com/Faultbox/atlasmesh/pkg/math"
)

// ErrBudgetNotMet is returned by QuadricDecimator when no further edge can
// be collapsed before the face budget is reached.
var ErrBudgetNotMet = errors.New("decimation stalled above face budget")

// QuadricDecimator performs greedy edge collapse ordered by quadric error
// (Garland–Heckbert).
//
// Collapses that would flip a neighbouring face are rejected. If the queue
// runs dry above budget, one relaxed pass is made that accepts flips; if the
// budget is still not met, ErrBudgetNotMet is returned.
type QuadricDecimator struct {
	// BoundaryWeight scales the constraint planes added along open edges.
	// Zero disables boundary preservation.
	BoundaryWeight float64

	// MaxDisplacement bounds how far the solved optimum may sit from the
	// edge midpoint, in multiples of the edge length. Beyond it the cheapest
	// of the endpoints and the midpoint is used instead.
	MaxDisplacement float64
}

// NewQuadricDecimator returns a decimator with the default settings.
func NewQuadricDecimator() *QuadricDecimator {
	return &QuadricDecimator{BoundaryWeight: 100, MaxDisplacement: 2}
}

// quadric is a symmetric 4x4 error matrix stored as its upper triangle:
// a², ab, ac, ad, b², bc, bd, c², cd, d².
type quadric [10]float64

func planeQuadric(n math.Vec3, d, weight float64) quadric {
	return quadric{
		weight * n.X * n.X, weight * n.X * n.Y, weight * n.X * n.Z, weight * n.X * d,
		weight * n.Y * n.Y, weight * n.Y * n.Z, weight * n.Y * d,
		weight * n.Z * n.Z, weight * n.Z * d,
		weight * d * d,
	}
}

func (q quadric) add(o quadric) quadric {
	for i := range q {
		q[i] += o[i]
	}
	return q
}

func (q quadric) eval(v math.Vec3) float64 {
	x, y, z := v.X, v.Y, v.Z
	return q[0]*x*x + 2*q[1]*x*y + 2*q[2]*x*z + 2*q[3]*x +
		q[4]*y*y + 2*q[5]*y*z + 2*q[6]*y +
		q[7]*z*z + 2*q[8]*z +
		q[9]
}

// optimum solves for the point minimising the quadric.
func (q quadric) optimum() (math.Vec3, bool) {
	a := mat.NewSymDense(3, []float64{
		q[0], q[1], q[2],
		q[1], q[4], q[5],
		q[2], q[5], q[7],
	})
	b := mat.NewVecDense(3, []float64{-q[3], -q[6], -q[8]})

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return math.Vec3{}, false
	}
	v := math.Vec3{X: x.AtVec(0), Y: x.AtVec(1), Z: x.AtVec(2)}
	if gomath.IsNaN(v.X) || gomath.IsNaN(v.Y) || gomath.IsNaN(v.Z) {
		return math.Vec3{}, false
	}
	return v, true
}

type collapse struct {
	cost   float64
	a, b   uint32
	va, vb uint32
	target math.Vec3
}

type collapseQueue []collapse

func (q collapseQueue) Len() int { return len(q) }
func (q collapseQueue) Less(i, j int) bool {
	if q[i].cost != q[j].cost {
		return q[i].cost < q[j].cost
	}
	if q[i].a != q[j].a {
		return q[i].a < q[j].a
	}
	return q[i].b < q[j].b
}
func (q collapseQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *collapseQueue) Push(x any)   { *q = append(*q, x.(collapse)) }
func (q *collapseQueue) Pop() any {
	old := *q
	n := len(old)
	c := old[n-1]
	*q = old[:n-1]
	return c
}

type decimation struct {
	cfg      *QuadricDecimator
	pos      []math.Vec3
	quadrics []quadric
	faces    [][3]uint32
	faceLive []bool
	vertLive []bool
	version  []uint32
	vfaces   [][]int32
	live     int
	queue    collapseQueue
}

// Decimate implements Decimator.
func (d *QuadricDecimator) Decimate(m *Mesh, targetFaces int) (*Mesh, error) {
	if targetFaces <= 0 {
		return nil, fmt.Errorf("face budget must be positive, got %d", targetFaces)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if m.FaceCount() <= targetFaces {
		return m.Clone(), nil
	}

	st := newDecimation(d, m)
	st.run(targetFaces, false)
	if st.live > targetFaces {
		st.run(targetFaces, true)
	}
	if st.live > targetFaces {
		return nil, fmt.Errorf("%w: %d faces left, budget %d", ErrBudgetNotMet, st.live, targetFaces)
	}

	out := st.result()
	if out.FaceCount() == 0 {
		return nil, ErrEmptyMesh
	}
	return out, nil
}

func newDecimation(cfg *QuadricDecimator, m *Mesh) *decimation {
	nv := len(m.Vertices)
	st := &decimation{
		cfg:      cfg,
		pos:      make([]math.Vec3, nv),
		quadrics: make([]quadric, nv),
		faces:    make([][3]uint32, len(m.Faces)),
		faceLive: make([]bool, len(m.Faces)),
		vertLive: make([]bool, nv),
		version:  make([]uint32, nv),
		vfaces:   make([][]int32, nv),
		live:     len(m.Faces),
	}
	copy(st.pos, m.Vertices)
	copy(st.faces, m.Faces)

	edgeFaces := make(map[[2]uint32][]int32)
	for i, f := range m.Faces {
		st.faceLive[i] = true
		a, b, c := st.pos[f[0]], st.pos[f[1]], st.pos[f[2]]
		n := b.Sub(a).Cross(c.Sub(a))
		area2 := n.Length()
		if area2 > 0 {
			n = n.Scale(1 / area2)
			q := planeQuadric(n, -n.Dot(a), area2/2)
			for _, idx := range f {
				st.quadrics[idx] = st.quadrics[idx].add(q)
			}
		}
		for j, idx := range f {
			st.vertLive[idx] = true
			st.vfaces[idx] = append(st.vfaces[idx], int32(i))
			e := edgeKey(idx, f[(j+1)%3])
			edgeFaces[e] = append(edgeFaces[e], int32(i))
		}
	}

	if cfg.BoundaryWeight <= 0 {
		return st
	}
	// Walk faces in order so the quadric sums do not depend on map order.
	for _, f := range st.faces {
		a, b, c := st.pos[f[0]], st.pos[f[1]], st.pos[f[2]]
		fn := b.Sub(a).Cross(c.Sub(a)).Normalize()
		for j := range f {
			e := edgeKey(f[j], f[(j+1)%3])
			if len(edgeFaces[e]) != 1 {
				continue
			}
			p0, p1 := st.pos[e[0]], st.pos[e[1]]
			dir := p1.Sub(p0)
			n := dir.Cross(fn).Normalize()
			if n.Length() == 0 {
				continue
			}
			q := planeQuadric(n, -n.Dot(p0), cfg.BoundaryWeight*dir.Dot(dir))
			st.quadrics[e[0]] = st.quadrics[e[0]].add(q)
			st.quadrics[e[1]] = st.quadrics[e[1]].add(q)
		}
	}
	return st
}

func edgeKey(a, b uint32) [2]uint32 {
	if a > b {
		a, b = b, a
	}
	return [2]uint32{a, b}
}

// fill queues every live edge once.
func (st *decimation) fill() {
	st.queue = st.queue[:0]
	seen := make(map[[2]uint32]struct{})
	for i, f := range st.faces {
		if !st.faceLive[i] {
			continue
		}
		for j := range f {
			e := edgeKey(f[j], f[(j+1)%3])
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}
			st.queue = append(st.queue, st.candidate(e[0], e[1]))
		}
	}
	heap.Init(&st.queue)
}

func (st *decimation) candidate(a, b uint32) collapse {
	q := st.quadrics[a].add(st.quadrics[b])
	pa, pb := st.pos[a], st.pos[b]
	mid := pa.Add(pb).Scale(0.5)

	target, cost := mid, q.eval(mid)
	if p, ok := q.optimum(); ok && p.Distance(mid) <= st.cfg.MaxDisplacement*pa.Distance(pb) {
		target, cost = p, q.eval(p)
	} else {
		if c := q.eval(pa); c < cost {
			target, cost = pa, c
		}
		if c := q.eval(pb); c < cost {
			target, cost = pb, c
		}
	}
	if cost < 0 {
		cost = 0
	}
	return collapse{cost: cost, a: a, b: b, va: st.version[a], vb: st.version[b], target: target}
}

func (st *decimation) run(targetFaces int, relaxed bool) {
	st.fill()
	for st.live > targetFaces && st.queue.Len() > 0 {
		c := heap.Pop(&st.queue).(collapse)
		if !st.vertLive[c.a] || !st.vertLive[c.b] {
			continue
		}
		if c.va != st.version[c.a] || c.vb != st.version[c.b] {
			continue
		}
		if !relaxed && st.flips(c) {
			continue
		}
		st.apply(c)
	}
}

// flips reports whether moving a and b to the target would invert or
// flatten any face that survives the collapse.
func (st *decimation) flips(c collapse) bool {
	for _, v := range [2]uint32{c.a, c.b} {
		for _, fi := range st.vfaces[v] {
			if !st.faceLive[fi] {
				continue
			}
			f := st.faces[fi]
			if hasVertex(f, c.a) && hasVertex(f, c.b) {
				continue
			}
			var before, after [3]math.Vec3
			for j, idx := range f {
				before[j] = st.pos[idx]
				after[j] = st.pos[idx]
				if idx == c.a || idx == c.b {
					after[j] = c.target
				}
			}
			n0 := before[1].Sub(before[0]).Cross(before[2].Sub(before[0]))
			n1 := after[1].Sub(after[0]).Cross(after[2].Sub(after[0]))
			if n1.Length() <= DegenerateEpsilon || n0.Dot(n1) <= 0 {
				return true
			}
		}
	}
	return false
}

func hasVertex(f [3]uint32, v uint32) bool {
	return f[0] == v || f[1] == v || f[2] == v
}

// apply collapses b into a.
func (st *decimation) apply(c collapse) {
	a, b := c.a, c.b
	st.pos[a] = c.target
	st.quadrics[a] = st.quadrics[a].add(st.quadrics[b])
	st.vertLive[b] = false

	for _, fi := range st.vfaces[b] {
		if !st.faceLive[fi] {
			continue
		}
		f := st.faces[fi]
		if hasVertex(f, a) {
			st.faceLive[fi] = false
			st.live--
			continue
		}
		for j := range f {
			if f[j] == b {
				f[j] = a
			}
		}
		st.faces[fi] = f
		st.vfaces[a] = append(st.vfaces[a], fi)
	}
	st.vfaces[b] = nil

	kept := st.vfaces[a][:0]
	seen := make(map[int32]struct{}, len(st.vfaces[a]))
	for _, fi := range st.vfaces[a] {
		if !st.faceLive[fi] {
			continue
		}
		if _, ok := seen[fi]; ok {
			continue
		}
		seen[fi] = struct{}{}
		kept = append(kept, fi)
	}
	st.vfaces[a] = kept
	st.version[a]++

	neighbours := make(map[uint32]struct{})
	for _, fi := range st.vfaces[a] {
		for _, idx := range st.faces[fi] {
			if idx != a {
				neighbours[idx] = struct{}{}
			}
		}
	}
	for n := range neighbours {
		e := edgeKey(a, n)
		heap.Push(&st.queue, st.candidate(e[0], e[1]))
	}
}

func (st *decimation) result() *Mesh {
	out := &Mesh{Vertices: st.pos}
	for i, f := range st.faces {
		if st.faceLive[i] {
			out.Faces = append(out.Faces, f)
		}
	}
	out.Clean()
	return out
}
