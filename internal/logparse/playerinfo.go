package logparse

import (
	"strconv"
	"strings"

	"github.com/BloodStainChild/ESOLogViewer/internal/model"
)

// parsePlayerInfo decodes a bracket-tokenised PLAYER_INFO record:
//
//	unitId, [passives], [ranks], [[gear],[gear],...], [front], [back]
func parsePlayerInfo(fields []string) (Event, bool) {
	if fieldStr(fields, 0) == "" {
		return nil, false
	}
	snap := model.PlayerInfoSnapshot{
		UnitID:       fieldInt(fields, 0),
		Passives:     parseIntList(fieldStr(fields, 1)),
		PassiveRanks: parseIntList(fieldStr(fields, 2)),
		Gear:         parseEquipment(fieldStr(fields, 3)),
		FrontBar:     parseIntList(fieldStr(fields, 4)),
		BackBar:      parseIntList(fieldStr(fields, 5)),
	}
	return PlayerInfo{Snapshot: snap}, true
}

// parseIntList decodes a bare or bracketed integer list (`1,2,3` or
// `[1,2,3]`). Unparsable elements default to 0.
func parseIntList(s string) []int64 {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			n = 0
		}
		out = append(out, n)
	}
	return out
}

// parseEquipment decodes a `[[FIELD,...],[FIELD,...]]` equipment list.
// Missing trailing fields per piece are tolerated; integers default to 0.
func parseEquipment(s string) []model.GearPiece {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, "],[")
	pieces := make([]model.GearPiece, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimPrefix(part, "[")
		part = strings.TrimSuffix(part, "]")
		if part == "" {
			continue
		}
		f := strings.Split(part, ",")
		pieces = append(pieces, model.GearPiece{
			Slot:           fieldStr(f, 0),
			ItemID:         fieldInt(f, 1),
			IsCP:           fieldBool(f, 2),
			Level:          fieldInt(f, 3),
			Trait:          fieldInt(f, 4),
			Quality:        fieldInt(f, 5),
			SetID:          fieldInt(f, 6),
			EnchantType:    fieldInt(f, 7),
			IsEnchantCP:    fieldBool(f, 8),
			EnchantLevel:   fieldInt(f, 9),
			EnchantQuality: fieldInt(f, 10),
		})
	}
	return pieces
}
