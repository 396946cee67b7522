package store

import (
	"encoding/json"
	"fmt"

	"github.com/BloodStainChild/ESOLogViewer/internal/model"
)

// Blobs are self-describing JSON. Decoding tolerates older blobs that are
// missing newer optional fields, which is all the forward compatibility
// the schema promises.

func encodeBlob(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: encode blob: %w", err)
	}
	return b, nil
}

func decodeSessionDetail(blob []byte) (*model.SessionDetail, error) {
	var d model.SessionDetail
	if err := json.Unmarshal(blob, &d); err != nil {
		return nil, fmt.Errorf("store: decode session detail: %w", err)
	}
	return &d, nil
}

func decodeFightSummary(blob []byte) (*model.FightSummary, error) {
	var s model.FightSummary
	if err := json.Unmarshal(blob, &s); err != nil {
		return nil, fmt.Errorf("store: decode fight summary: %w", err)
	}
	return &s, nil
}

func decodeFightDetail(blob []byte) (*model.FightDetail, error) {
	var d model.FightDetail
	if err := json.Unmarshal(blob, &d); err != nil {
		return nil, fmt.Errorf("store: decode fight detail: %w", err)
	}
	return &d, nil
}

func decodeSeries(blob []byte) ([]model.FightSeriesPoint, error) {
	var s []model.FightSeriesPoint
	if err := json.Unmarshal(blob, &s); err != nil {
		return nil, fmt.Errorf("store: decode series: %w", err)
	}
	return s, nil
}
