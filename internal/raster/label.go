package raster

// label.go: connected-component labelling and size filters over label
// rasters. Connectivity is 4-neighbour throughout; two pixels belong to the
// same region only when they share an edge and carry the same value.

var neighbours4 = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

// Label assigns sequential labels (1..n) to the 4-connected regions of
// non-zero pixels in the mask. Label order follows raster scan order, so the
// result is deterministic.
func Label(mask *Raster[uint8]) *Raster[int32] {
	img := New[int32](mask.GB)
	for i, v := range mask.Pix {
		if v != 0 {
			img.Pix[i] = 1
		}
	}
	return LabelValues(img)
}

// LabelValues relabels the 4-connected regions of equal non-zero values.
// Distinct input values never merge even when adjacent, which keeps
// watershed segments separate after relabelling.
func LabelValues(img *Raster[int32]) *Raster[int32] {
	w, h := img.GB.Width, img.GB.Height
	out := New[int32](img.GB)
	queue := make([]int, 0, 256)

	var next int32
	for start, v := range img.Pix {
		if v == 0 || out.Pix[start] != 0 {
			continue
		}
		next++
		out.Pix[start] = next
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			idx := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			x, y := idx%w, idx/w
			for _, d := range neighbours4 {
				nx, ny := x+d[0], y+d[1]
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}
				nidx := ny*w + nx
				if img.Pix[nidx] == v && out.Pix[nidx] == 0 {
					out.Pix[nidx] = next
					queue = append(queue, nidx)
				}
			}
		}
	}
	return out
}

// Sizes returns the pixel count of every label.
func Sizes(labels *Raster[int32]) map[int32]int {
	sizes := make(map[int32]int)
	for _, v := range labels.Pix {
		if v != 0 {
			sizes[v]++
		}
	}
	return sizes
}

// RemoveSmall zeroes every region smaller than minPx pixels, in place.
func RemoveSmall(labels *Raster[int32], minPx int) {
	sizes := Sizes(labels)
	for i, v := range labels.Pix {
		if v != 0 && sizes[v] < minPx {
			labels.Pix[i] = 0
		}
	}
}

// LargeMask returns a binary mask of the regions larger than maxPx pixels.
func LargeMask(labels *Raster[int32], maxPx int) *Raster[uint8] {
	sizes := Sizes(labels)
	mask := New[uint8](labels.GB)
	for i, v := range labels.Pix {
		if v != 0 && sizes[v] > maxPx {
			mask.Pix[i] = 1
		}
	}
	return mask
}

// OverlapCount returns, per label, the number of label pixels where the
// probe mask is non-zero.
func OverlapCount(labels *Raster[int32], probe *Raster[uint8]) map[int32]int {
	counts := make(map[int32]int)
	for i, v := range labels.Pix {
		if v != 0 && probe.Pix[i] != 0 {
			counts[v]++
		}
	}
	return counts
}

// KeepLabels zeroes every region whose label is not in keep, in place.
func KeepLabels(labels *Raster[int32], keep map[int32]bool) {
	for i, v := range labels.Pix {
		if v != 0 && !keep[v] {
			labels.Pix[i] = 0
		}
	}
}
