package models

import (
	"encoding/json"
	"fmt"
)

// Metadata is the check-specific payload attached to a finding.
//
// Each check family has its own typed variant; long-tail checks use
// GenericMetadata. On the wire a variant is encoded as
// {"kind": "<kind>", "data": {...}} so it can be decoded back into the
// same Go type.
type Metadata interface {
	MetadataKind() string
}

// Metadata kinds
const (
	MetadataContrast  = "contrast"
	MetadataFocus     = "focus"
	MetadataSizeLimit = "size_limit"
	MetadataGeneric   = "generic"
)

// ContrastMetadata records a computed colour contrast.
type ContrastMetadata struct {
	Ratio      float64 `json:"ratio"`
	Foreground string  `json:"fg"`
	Background string  `json:"bg"`
	FontSize   float64 `json:"font_size,omitempty"`
}

// MetadataKind implements Metadata.
func (ContrastMetadata) MetadataKind() string { return MetadataContrast }

// FocusMetadata records the inputs and verdict of the focus outline analysis.
type FocusMetadata struct {
	OutlineWidthPx  float64 `json:"outline_width_px"`
	OutlineOffsetPx float64 `json:"outline_offset_px"`
	OutlineColor    string  `json:"outline_color,omitempty"`
	Surface         string  `json:"surface,omitempty"` // "parent" or "self"
	SurfaceColor    string  `json:"surface_color,omitempty"`
	Ratio           float64 `json:"ratio,omitempty"`
	Reason          string  `json:"reason,omitempty"`
}

// MetadataKind implements Metadata.
func (FocusMetadata) MetadataKind() string { return MetadataFocus }

// SizeLimitMetadata carries the true shape of a result that was too large to store.
type SizeLimitMetadata struct {
	OriginalBytes int `json:"original_bytes"`
	LimitBytes    int `json:"limit_bytes"`
	Violations    int `json:"violations"`
	Warnings      int `json:"warnings"`
	Info          int `json:"info"`
	Discoveries   int `json:"discoveries"`
	Passes        int `json:"passes"`
}

// MetadataKind implements Metadata.
func (SizeLimitMetadata) MetadataKind() string { return MetadataSizeLimit }

// GenericMetadata is the fallback bag for checks without a typed variant.
type GenericMetadata map[string]interface{}

// MetadataKind implements Metadata.
func (GenericMetadata) MetadataKind() string { return MetadataGeneric }

type metadataEnvelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func encodeMetadata(m Metadata) (*metadataEnvelope, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal %s metadata: %w", m.MetadataKind(), err)
	}
	return &metadataEnvelope{Kind: m.MetadataKind(), Data: data}, nil
}

func decodeMetadata(env *metadataEnvelope) (Metadata, error) {
	if env == nil {
		return nil, nil
	}
	var target Metadata
	switch env.Kind {
	case MetadataContrast:
		var m ContrastMetadata
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, err
		}
		target = m
	case MetadataFocus:
		var m FocusMetadata
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, err
		}
		target = m
	case MetadataSizeLimit:
		var m SizeLimitMetadata
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, err
		}
		target = m
	default:
		// Unknown kinds are kept rather than dropped.
		m := GenericMetadata{}
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &m); err != nil {
				return nil, err
			}
		}
		target = m
	}
	return target, nil
}
