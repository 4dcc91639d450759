// Package coastline implements the Coastline-to-Water Synthesizer
// (§4.9): reconstructing closed water polygons from a tile's coastline
// line-strings, which OSM convention stores with water on the right of
// the stored direction.
package coastline

import (
	"fmt"
	"math"
	"sort"

	"github.com/MeKo-Tech/tilegen/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/planar"
)

// areaFractionForValidation is the 30% threshold above which a traced
// ring's orientation is checked and possibly flipped (§4.9 step 8).
const areaFractionForValidation = 0.30

// Synthesize builds the water polygons for one tile from its (already
// loosely bbox-routed, never pre-clipped) coastline line-strings.
func Synthesize(segments []orb.LineString, tileRect types.Bounds) ([]orb.Polygon, error) {
	bound := tileRect.Bound()
	rectArea := rectAreaDeg(tileRect)
	if rectArea <= 0 {
		return nil, fmt.Errorf("degenerate tile rectangle")
	}

	deduped := dedupeLineStrings(segments)
	merged := mergeChains(deduped)

	var openChains []orb.LineString
	var closedRings []orb.Ring

	for _, ls := range merged {
		if len(ls) < 2 {
			continue
		}
		if isClosed(ls) && boundContainsLineString(bound, ls) {
			closedRings = append(closedRings, orb.Ring(ls))
			continue
		}
		pieces := clipLineStringToBound(bound, ls)
		for _, piece := range pieces {
			if len(piece) < 2 || lineStringLength(piece) == 0 {
				continue // zero-length clip result, discarded (§4.9 edge case)
			}
			snapped := snapEndpoints(piece, tileRect)
			openChains = append(openChains, snapped)
		}
	}

	var waterPolys []orb.Polygon
	if len(openChains) > 0 {
		primary := traceAll(openChains, tileRect)
		mirrored := traceAll(reverseChains(openChains), tileRect)

		for i, ring := range primary {
			if ring == nil {
				continue
			}
			area := math.Abs(planar.Area(orb.Ring(ring.coords)))
			if area/rectArea > areaFractionForValidation {
				if !waterIsOnRightSide(ring, openChains[ring.startChain]) {
					if alt := findMirror(mirrored, ring.startChain); alt != nil {
						ring = alt
					}
				}
			}
			waterPolys = append(waterPolys, orb.Polygon{orb.Ring(ring.coords)})
		}
	}

	if len(closedRings) > 0 {
		waterPolys = assignIslandHoles(waterPolys, closedRings, tileRect)
	}

	if len(waterPolys) == 0 && len(closedRings) == 0 {
		return nil, nil
	}

	out := make([]orb.Polygon, 0, len(waterPolys))
	for _, p := range waterPolys {
		clipped := clip.Polygon(bound, p)
		if clipped == nil || len(clipped) == 0 {
			continue
		}
		repaired, ok := repairPolygon(clipped)
		if !ok {
			continue // self-intersecting even after repair, dropped silently (§4.9 edge case)
		}
		out = append(out, repaired)
	}
	return out, nil
}

// repairPolygon checks every ring of p for self-intersection. A
// self-intersecting ring is most often a run of duplicate or
// near-duplicate vertices left over from chain tracing, so the repair
// attempt dedupes consecutive points and rechecks; nothing in this stack
// provides a true boolean-geometry buffer(0), so this stands in for it
// (§4.9 "attempt buffer(0) repair before emission"). If the ring is still
// self-intersecting afterward, the whole polygon is dropped.
func repairPolygon(p orb.Polygon) (orb.Polygon, bool) {
	out := make(orb.Polygon, 0, len(p))
	for _, ring := range p {
		r := dedupeRing(ring)
		if !ringIsSimple(r) {
			return nil, false
		}
		out = append(out, r)
	}
	return out, true
}

// dedupeRing drops consecutive duplicate vertices and re-closes the ring.
func dedupeRing(r orb.Ring) orb.Ring {
	out := make(orb.Ring, 0, len(r))
	for i, p := range r {
		if i > 0 && samePoint(p, out[len(out)-1]) {
			continue
		}
		out = append(out, p)
	}
	if len(out) > 1 && !samePoint(out[0], out[len(out)-1]) {
		out = append(out, out[0])
	}
	return out
}

// ringIsSimple reports whether a closed ring's non-adjacent edges are
// free of self-intersection.
func ringIsSimple(r orb.Ring) bool {
	n := len(r)
	if n < 4 {
		return false
	}
	for i := 0; i < n-1; i++ {
		a1, a2 := r[i], r[i+1]
		for j := i + 1; j < n-1; j++ {
			if j == i+1 || (i == 0 && j == n-2) {
				continue // adjacent edges share an endpoint, not a crossing
			}
			b1, b2 := r[j], r[j+1]
			if segmentsIntersect(a1, a2, b1, b2) {
				return false
			}
		}
	}
	return true
}

// segmentsIntersect reports whether open segments p1-p2 and p3-p4 cross,
// via the standard orientation test.
func segmentsIntersect(p1, p2, p3, p4 orb.Point) bool {
	d1 := crossSign(p3, p4, p1)
	d2 := crossSign(p3, p4, p2)
	d3 := crossSign(p1, p2, p3)
	d4 := crossSign(p1, p2, p4)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

func crossSign(a, b, c orb.Point) float64 {
	return (b.Lon()-a.Lon())*(c.Lat()-a.Lat()) - (b.Lat()-a.Lat())*(c.Lon()-a.Lon())
}

// --- step 1: dedupe ---

func dedupeLineStrings(in []orb.LineString) []orb.LineString {
	seen := make(map[string]struct{}, len(in))
	out := make([]orb.LineString, 0, len(in))
	for _, ls := range in {
		key := lineStringKey(ls)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ls)
	}
	return out
}

func lineStringKey(ls orb.LineString) string {
	s := ""
	for _, p := range ls {
		s += fmt.Sprintf("%.9f,%.9f;", p.Lon(), p.Lat())
	}
	return s
}

// --- step 2: merge endpoint-sharing chains ---

func mergeChains(in []orb.LineString) []orb.LineString {
	chains := make([]orb.LineString, len(in))
	copy(chains, in)

	for {
		merged := false
		for i := 0; i < len(chains); i++ {
			for j := i + 1; j < len(chains); j++ {
				if joined, ok := tryJoin(chains[i], chains[j]); ok {
					chains[i] = joined
					chains = append(chains[:j], chains[j+1:]...)
					merged = true
					break
				}
			}
			if merged {
				break
			}
		}
		if !merged {
			break
		}
	}
	return chains
}

func tryJoin(a, b orb.LineString) (orb.LineString, bool) {
	if len(a) == 0 || len(b) == 0 {
		return nil, false
	}
	aStart, aEnd := a[0], a[len(a)-1]
	bStart, bEnd := b[0], b[len(b)-1]

	switch {
	case samePoint(aEnd, bStart):
		return append(append(orb.LineString{}, a...), b[1:]...), true
	case samePoint(aEnd, bEnd):
		return append(append(orb.LineString{}, a...), reversed(b)[1:]...), true
	case samePoint(aStart, bEnd):
		return append(append(orb.LineString{}, b...), a[1:]...), true
	case samePoint(aStart, bStart):
		return append(append(orb.LineString{}, reversed(b)...), a[1:]...), true
	default:
		return nil, false
	}
}

func samePoint(a, b orb.Point) bool {
	const eps = 1e-9
	return math.Abs(a.Lon()-b.Lon()) < eps && math.Abs(a.Lat()-b.Lat()) < eps
}

func reversed(ls orb.LineString) orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		out[len(ls)-1-i] = p
	}
	return out
}

func isClosed(ls orb.LineString) bool {
	return len(ls) > 2 && samePoint(ls[0], ls[len(ls)-1])
}

// --- step 3: clip merged lines to the tile rectangle ---

func boundContainsLineString(b orb.Bound, ls orb.LineString) bool {
	for _, p := range ls {
		if !b.Contains(p) {
			return false
		}
	}
	return true
}

func clipLineStringToBound(b orb.Bound, ls orb.LineString) []orb.LineString {
	result := clip.LineString(b, ls)
	out := make([]orb.LineString, 0, len(result))
	for _, piece := range result {
		out = append(out, piece)
	}
	return out
}

func lineStringLength(ls orb.LineString) float64 {
	total := 0.0
	for i := 1; i < len(ls); i++ {
		dx := ls[i].Lon() - ls[i-1].Lon()
		dy := ls[i].Lat() - ls[i-1].Lat()
		total += math.Hypot(dx, dy)
	}
	return total
}

// --- step 4/5: snap endpoints, boundary parameterization ---

// snapEndpoints sets exactly one coordinate of each endpoint to the
// nearest tile edge value (§4.9 step 4).
func snapEndpoints(ls orb.LineString, rect types.Bounds) orb.LineString {
	out := make(orb.LineString, len(ls))
	copy(out, ls)
	out[0] = snapToEdge(out[0], rect)
	out[len(out)-1] = snapToEdge(out[len(out)-1], rect)
	return out
}

func snapToEdge(p orb.Point, rect types.Bounds) orb.Point {
	distEast := math.Abs(p.Lon() - rect.MaxLon)
	distWest := math.Abs(p.Lon() - rect.MinLon)
	distNorth := math.Abs(p.Lat() - rect.MaxLat)
	distSouth := math.Abs(p.Lat() - rect.MinLat)

	min := distEast
	edge := "east"
	if distWest < min {
		min, edge = distWest, "west"
	}
	if distNorth < min {
		min, edge = distNorth, "north"
	}
	if distSouth < min {
		min, edge = distSouth, "south"
	}

	switch edge {
	case "east":
		return orb.Point{rect.MaxLon, p.Lat()}
	case "west":
		return orb.Point{rect.MinLon, p.Lat()}
	case "north":
		return orb.Point{p.Lon(), rect.MaxLat}
	default:
		return orb.Point{p.Lon(), rect.MinLat}
	}
}

// boundaryParam parameterizes the tile boundary clockwise from the NE
// corner: east in [0,1), south in [1,2), west in [2,3), north in [3,4).
func boundaryParam(p orb.Point, rect types.Bounds) float64 {
	w := rect.MaxLon - rect.MinLon
	h := rect.MaxLat - rect.MinLat
	if w <= 0 || h <= 0 {
		return 0
	}

	const eps = 1e-9
	switch {
	case math.Abs(p.Lon()-rect.MaxLon) < eps:
		// East edge, NE (top) to SE (bottom): t in [0,1)
		return clamp01((rect.MaxLat - p.Lat()) / h)
	case math.Abs(p.Lat()-rect.MinLat) < eps:
		// South edge, SE to SW: t in [1,2)
		return 1 + clamp01((rect.MaxLon-p.Lon())/w)
	case math.Abs(p.Lon()-rect.MinLon) < eps:
		// West edge, SW to NW: t in [2,3)
		return 2 + clamp01((p.Lat()-rect.MinLat)/h)
	default:
		// North edge, NW to NE: t in [3,4)
		return 3 + clamp01((p.Lon()-rect.MinLon)/w)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v >= 1 {
		return 0.999999999
	}
	return v
}

func boundaryCorners(rect types.Bounds) map[int]orb.Point {
	return map[int]orb.Point{
		0: {rect.MaxLon, rect.MaxLat}, // NE
		1: {rect.MaxLon, rect.MinLat}, // SE
		2: {rect.MinLon, rect.MinLat}, // SW
		3: {rect.MinLon, rect.MaxLat}, // NW
	}
}

// --- step 6/7: pair exits with next entries, trace rings ---

type tracedRing struct {
	coords     orb.LineString
	startChain int
}

// traceAll implements steps 6-7 for one orientation of a chain set: for
// each exit, the paired entry is the next entry encountered walking
// clockwise (increasing parameter, wrapping past 4 back to 0).
func traceAll(chains []orb.LineString, rect types.Bounds) []*tracedRing {
	n := len(chains)
	if n == 0 {
		return nil
	}

	entryParam := make([]float64, n)
	exitParam := make([]float64, n)
	for i, c := range chains {
		entryParam[i] = boundaryParam(c[0], rect)
		exitParam[i] = boundaryParam(c[len(c)-1], rect)
	}

	type event struct {
		t        float64
		isEntry  bool
		chainIdx int
	}
	events := make([]event, 0, 2*n)
	for i := range chains {
		events = append(events, event{t: entryParam[i], isEntry: true, chainIdx: i})
		events = append(events, event{t: exitParam[i], isEntry: false, chainIdx: i})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].t < events[j].t })

	nextEntryForExit := make(map[int]int, n)
	for idx, ev := range events {
		if ev.isEntry {
			continue
		}
		for k := 1; k <= len(events); k++ {
			cand := events[(idx+k)%len(events)]
			if cand.isEntry {
				nextEntryForExit[ev.chainIdx] = cand.chainIdx
				break
			}
		}
	}

	corners := boundaryCorners(rect)
	visited := make([]bool, n)
	var rings []*tracedRing

	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}

		var coords orb.LineString
		cur := start
		for {
			visited[cur] = true
			coords = append(coords, chains[cur]...)

			next, ok := nextEntryForExit[cur]
			if !ok {
				break
			}
			coords = append(coords, boundaryArc(exitParam[cur], entryParam[next], corners)...)

			if next == start {
				break
			}
			if visited[next] {
				// degenerate topology (overlapping chains); stop rather than loop forever.
				break
			}
			cur = next
		}

		if len(coords) >= 3 {
			rings = append(rings, &tracedRing{coords: coords, startChain: start})
		}
	}
	return rings
}

// boundaryArc returns the rectangle corner points strictly between fromT
// and toT walking clockwise (§4.9 step 7).
func boundaryArc(fromT, toT float64, corners map[int]orb.Point) orb.LineString {
	var out orb.LineString
	fromCorner := int(math.Ceil(fromT))
	for c := fromCorner; ; c++ {
		idx := c % 4
		t := float64(idx)
		if !clockwiseBetween(fromT, toT, t) {
			break
		}
		out = append(out, corners[idx])
		if c-fromCorner > 8 {
			break // safety valve against malformed parameterization
		}
	}
	return out
}

// clockwiseBetween reports whether t lies strictly between fromT and toT
// walking clockwise (increasing, wrapping past 4).
func clockwiseBetween(fromT, toT, t float64) bool {
	f := math.Mod(fromT, 4)
	to := math.Mod(toT, 4)
	tt := math.Mod(t, 4)
	if f <= to {
		return tt > f && tt < to
	}
	return tt > f || tt < to
}

func reverseChains(chains []orb.LineString) []orb.LineString {
	out := make([]orb.LineString, len(chains))
	for i, c := range chains {
		out[i] = reversed(c)
	}
	return out
}

func findMirror(mirrored []*tracedRing, chainIdx int) *tracedRing {
	for _, r := range mirrored {
		if r.startChain == chainIdx {
			return r
		}
	}
	return nil
}

// --- step 8: orientation validation ---

// waterIsOnRightSide tests a point offset to the right of the chain's
// initial direction; water is on the right per OSM convention (§4.9 step 8).
func waterIsOnRightSide(ring *tracedRing, firstChain orb.LineString) bool {
	if len(firstChain) < 2 {
		return true
	}
	a, b := firstChain[0], firstChain[1]
	dx, dy := b.Lon()-a.Lon(), b.Lat()-a.Lat()
	length := math.Hypot(dx, dy)
	if length == 0 {
		return true
	}
	// Right-side normal: direction rotated 90 degrees clockwise.
	nx, ny := dy/length, -dx/length
	const probe = 1e-6
	test := orb.Point{a.Lon() + nx*probe, a.Lat() + ny*probe}
	return planar.PolygonContains(orb.Polygon{orb.Ring(ring.coords)}, test)
}

// --- step 9/10/11/12: closed rings, hole assignment ---

func assignIslandHoles(waterPolys []orb.Polygon, closedRings []orb.Ring, rect types.Bounds) []orb.Polygon {
	var islandHoles []orb.Ring
	var enclosedWater []orb.Polygon

	for _, ring := range closedRings {
		if signedArea(ring) < 0 {
			islandHoles = append(islandHoles, ring)
		} else {
			enclosedWater = append(enclosedWater, orb.Polygon{ring})
		}
	}
	waterPolys = append(waterPolys, enclosedWater...)

	var orphans []orb.Ring
	for _, hole := range islandHoles {
		rp := representativePoint(hole)
		assigned := false
		for i := range waterPolys {
			if planar.PolygonContains(orb.Polygon{waterPolys[i][0]}, rp) {
				waterPolys[i] = append(waterPolys[i], hole)
				assigned = true
				break
			}
		}
		if !assigned {
			orphans = append(orphans, hole)
		}
	}

	if len(orphans) > 0 {
		rects := orb.Ring{
			{rect.MinLon, rect.MinLat}, {rect.MaxLon, rect.MinLat},
			{rect.MaxLon, rect.MaxLat}, {rect.MinLon, rect.MaxLat},
			{rect.MinLon, rect.MinLat},
		}
		poly := orb.Polygon{rects}
		poly = append(poly, orphans...)
		waterPolys = append(waterPolys, poly)
	}

	// All-hole tile (§4.9 step 12): islands exist but no open-chain water
	// polygon formed at all.
	if len(waterPolys) == 0 && len(islandHoles) > 0 {
		rects := orb.Ring{
			{rect.MinLon, rect.MinLat}, {rect.MaxLon, rect.MinLat},
			{rect.MaxLon, rect.MaxLat}, {rect.MinLon, rect.MaxLat},
			{rect.MinLon, rect.MinLat},
		}
		poly := orb.Polygon{rects}
		poly = append(poly, islandHoles...)
		waterPolys = append(waterPolys, poly)
	}

	return waterPolys
}

func signedArea(ring orb.Ring) float64 {
	area := 0.0
	n := len(ring)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		area += ring[i].Lon() * ring[j].Lat()
		area -= ring[j].Lon() * ring[i].Lat()
	}
	return area / 2.0
}

// representativePoint approximates a point guaranteed inside a (possibly
// concave) ring by averaging its vertices, rather than using the first
// vertex, which may lie exactly on a shared boundary (§4.9 step 10).
func representativePoint(ring orb.Ring) orb.Point {
	var sumLon, sumLat float64
	for _, p := range ring {
		sumLon += p.Lon()
		sumLat += p.Lat()
	}
	n := float64(len(ring))
	return orb.Point{sumLon / n, sumLat / n}
}

func rectAreaDeg(rect types.Bounds) float64 {
	return (rect.MaxLon - rect.MinLon) * (rect.MaxLat - rect.MinLat)
}
