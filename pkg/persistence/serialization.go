package persistence

import (
	"encoding/json"
	"fmt"
)

// MarshalRootRecord serializes a RootRecord to JSON bytes.
// The root digest is hex encoded through hexutil.Bytes.
func MarshalRootRecord(r *RootRecord) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("cannot marshal nil RootRecord")
	}

	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal RootRecord to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalRootRecord deserializes a RootRecord from JSON bytes.
func UnmarshalRootRecord(data []byte) (*RootRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var r RootRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to RootRecord: %w", err)
	}

	return &r, nil
}

// MarshalProofRecord serializes a ProofRecord to JSON bytes.
func MarshalProofRecord(p *ProofRecord) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("cannot marshal nil ProofRecord")
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ProofRecord to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalProofRecord deserializes a ProofRecord from JSON bytes.
func UnmarshalProofRecord(data []byte) (*ProofRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var p ProofRecord
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to ProofRecord: %w", err)
	}

	return &p, nil
}
