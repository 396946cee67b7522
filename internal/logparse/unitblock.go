package logparse

import (
	"strconv"
	"strings"

	"github.com/BloodStainChild/ESOLogViewer/internal/model"
)

// parsePool decodes a `<cur>/<max>` token.
func parsePool(s string) (model.Pool, bool) {
	slash := strings.IndexByte(s, '/')
	if slash <= 0 {
		return model.Pool{}, false
	}
	cur, err1 := strconv.ParseInt(s[:slash], 10, 64)
	max, err2 := strconv.ParseInt(s[slash+1:], 10, 64)
	if err1 != nil || err2 != nil {
		return model.Pool{}, false
	}
	return model.Pool{Cur: cur, Max: max}, true
}

func isIntToken(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

func parseFloatToken(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

// readUnitState consumes the variable-width unit block starting at
// fields[i] and returns the decoded state plus the index of the first
// unconsumed field. The block is read greedily:
//
//	4 pools, up to 2 extra pools (discarded), one optional integer,
//	then exactly 3 floats (X, Y, Z).
//
// The optional integer is only taken when a decimal-pointed coordinate
// follows it, so a trailing target unit id is never swallowed.
func readUnitState(fields []string, i int) (model.UnitState, int, bool) {
	var st model.UnitState

	pools := [4]*model.Pool{&st.Health, &st.Magicka, &st.Stamina, &st.Ultimate}
	for _, dst := range pools {
		if i >= len(fields) {
			return st, i, false
		}
		p, ok := parsePool(strings.TrimSpace(fields[i]))
		if !ok {
			return st, i, false
		}
		*dst = p
		i++
	}

	// Some client versions append up to two further pools. Tolerate and drop.
	for extra := 0; extra < 2 && i < len(fields); extra++ {
		if _, ok := parsePool(strings.TrimSpace(fields[i])); !ok {
			break
		}
		i++
	}

	// Optional lone integer before the coordinates.
	if i+1 < len(fields) &&
		isIntToken(strings.TrimSpace(fields[i])) &&
		strings.Contains(fields[i+1], ".") {
		i++
	}

	if i+2 >= len(fields) {
		return st, i, false
	}
	x, okX := parseFloatToken(strings.TrimSpace(fields[i]))
	y, okY := parseFloatToken(strings.TrimSpace(fields[i+1]))
	z, okZ := parseFloatToken(strings.TrimSpace(fields[i+2]))
	if !okX || !okY || !okZ {
		return st, i, false
	}
	st.X, st.Y, st.Z = x, y, z
	return st, i + 3, true
}
