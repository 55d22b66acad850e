package badger

import (
	"encoding/json"
	"fmt"

	"github.com/esm-dev/modern-monaco-sub001/pkg/store/metadata"
)

// Serialization Strategy
// ======================
//
// FileStat values are stored as JSON. The struct is small and the field set
// may grow, so readability and schema evolution win over a binary layout.

// encodeStat serializes a FileStat to JSON bytes.
func encodeStat(stat *metadata.FileStat) ([]byte, error) {
	data, err := json.Marshal(stat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode file stat: %w", err)
	}
	return data, nil
}

// decodeStat deserializes JSON bytes into a FileStat.
func decodeStat(data []byte) (*metadata.FileStat, error) {
	var stat metadata.FileStat
	if err := json.Unmarshal(data, &stat); err != nil {
		return nil, fmt.Errorf("failed to decode file stat: %w", err)
	}
	return &stat, nil
}
