package grid

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	tileXPattern = regexp.MustCompile(`x(\d{3})`)
	tileYPattern = regexp.MustCompile(`y(\d{3})`)
	dayPattern   = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
)

// TileID renders a tile index in the canonical x###_y### form used to name
// per-tile objects.
func TileID(tile TileIndex) string {
	return fmt.Sprintf("x%03d_y%03d", tile.X, tile.Y)
}

// ParseTileID extracts a tile index from any string containing the canonical
// x### and y### markers, e.g. an object key or file name.
func ParseTileID(s string) (TileIndex, error) {
	mx := tileXPattern.FindStringSubmatch(s)
	my := tileYPattern.FindStringSubmatch(s)
	if mx == nil || my == nil {
		return TileIndex{}, fmt.Errorf("no tile id in %q", s)
	}
	x, _ := strconv.Atoi(mx[1])
	y, _ := strconv.Atoi(my[1])
	return TileIndex{X: x, Y: y}, nil
}

// TaskID renders a (solar day, tile) pair in the canonical
// YYYY-MM-DD/x###/y### form.
func TaskID(solarDay string, tile TileIndex) string {
	return fmt.Sprintf("%s/x%03d/y%03d", solarDay, tile.X, tile.Y)
}

// ParseTaskID extracts the solar day and tile index from a task id string.
func ParseTaskID(s string) (string, TileIndex, error) {
	day := dayPattern.FindString(s)
	if day == "" {
		return "", TileIndex{}, fmt.Errorf("no solar day in %q", s)
	}
	tile, err := ParseTileID(s)
	if err != nil {
		return "", TileIndex{}, err
	}
	return day, tile, nil
}
