// Package serialization provides utilities for serializing and deserializing
// stage payloads carried in job records, such as pore metrics and relaxation
// results.
package serialization

import (
	"encoding/json"

	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/exception"
	logger "github.com/karstlab/mofpipe/pkg/pipeline/support/util/logger"
)

const moduleName = "serialization"

// MarshalOutput serializes a stage output value into a JSON byte slice.
func MarshalOutput(v interface{}) (json.RawMessage, error) {
	if v == nil {
		logger.Debugf("Stage output is nil. Returning empty JSON object.")
		return json.RawMessage("{}"), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		logger.Errorf("Failed to serialize stage output: %v", err)
		return nil, exception.NewPipelineError(moduleName, "Failed to serialize stage output", err, false, false)
	}
	return data, nil
}

// UnmarshalOutput deserializes a JSON byte slice into the given destination.
// Empty or null payloads leave the destination untouched.
func UnmarshalOutput(data json.RawMessage, dst interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		logger.Debugf("Stage output payload is empty. Nothing to deserialize.")
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		logger.Errorf("Failed to deserialize stage output: %v", err)
		return exception.NewPipelineError(moduleName, "Failed to deserialize stage output", err, false, false)
	}
	return nil
}

// MarshalMetadata serializes a metadata map into a JSON byte slice.
func MarshalMetadata(md map[string]string) ([]byte, error) {
	if md == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(md)
	if err != nil {
		logger.Errorf("Failed to serialize metadata: %v", err)
		return nil, exception.NewPipelineError(moduleName, "Failed to serialize metadata", err, false, false)
	}
	return data, nil
}

// UnmarshalMetadata deserializes a JSON byte slice into a metadata map.
func UnmarshalMetadata(data []byte, md *map[string]string) error {
	if *md == nil {
		*md = make(map[string]string)
	} else {
		for k := range *md {
			delete(*md, k)
		}
	}

	if len(data) == 0 || string(data) == "null" || string(data) == "{}" {
		return nil
	}

	if err := json.Unmarshal(data, md); err != nil {
		logger.Errorf("Failed to deserialize metadata: %v", err)
		return exception.NewPipelineError(moduleName, "Failed to deserialize metadata", err, false, false)
	}
	return nil
}
