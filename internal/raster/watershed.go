package raster

import "container/heap"

// Watershed floods the height surface outward from the marker regions,
// restricted to pixels where mask is set. Lower heights flood first; ties
// break by insertion order, which makes the result deterministic for a
// given input. Marker pixels keep their label; every reachable mask pixel
// ends up with the label of the marker basin that reached it first.
func Watershed(heights *Raster[float64], markers *Raster[int32], mask *Raster[uint8]) *Raster[int32] {
	w, h := heights.GB.Width, heights.GB.Height
	out := New[int32](heights.GB)

	pq := &floodQueue{}
	heap.Init(pq)
	var order int64

	push := func(idx int, label int32) {
		out.Pix[idx] = label
		order++
		heap.Push(pq, floodItem{height: heights.Pix[idx], order: order, idx: idx, label: label})
	}

	for i, label := range markers.Pix {
		if label != 0 && mask.Pix[i] != 0 {
			push(i, label)
		}
	}

	for pq.Len() > 0 {
		it := heap.Pop(pq).(floodItem)
		x, y := it.idx%w, it.idx/w
		for _, d := range neighbours4 {
			nx, ny := x+d[0], y+d[1]
			if nx < 0 || nx >= w || ny < 0 || ny >= h {
				continue
			}
			nidx := ny*w + nx
			if mask.Pix[nidx] != 0 && out.Pix[nidx] == 0 {
				push(nidx, it.label)
			}
		}
	}
	return out
}

type floodItem struct {
	height float64
	order  int64
	idx    int
	label  int32
}

type floodQueue []floodItem

func (q floodQueue) Len() int { return len(q) }

func (q floodQueue) Less(i, j int) bool {
	if q[i].height != q[j].height {
		return q[i].height < q[j].height
	}
	return q[i].order < q[j].order
}

func (q floodQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *floodQueue) Push(x any) { *q = append(*q, x.(floodItem)) }

func (q *floodQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}
