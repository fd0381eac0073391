package domain

import (
	"fmt"
)

const (
	MinTargetEdge     = 8
	MaxTargetEdge     = 2048
	DefaultTargetEdge = 512
)

// ConvertOptions is the per-invocation configuration for one conversion.
// It is supplied fresh on every run and never mutated.
type ConvertOptions struct {
	TargetEdge  int  `json:"target_edge"`
	FitToSquare bool `json:"fit_to_square"`
}

func (o ConvertOptions) Validate() error {
	if o.TargetEdge < MinTargetEdge || o.TargetEdge > MaxTargetEdge {
		return fmt.Errorf("target_edge must be between %d and %d, got %d", MinTargetEdge, MaxTargetEdge, o.TargetEdge)
	}
	return nil
}

// SourceMetadata describes the uploaded source image. It is reported back
// for display alongside the output and takes no part in the computation.
type SourceMetadata struct {
	Filename string `json:"filename"`
	MimeType string `json:"type"`
	ByteSize int    `json:"size"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// OutputDescriptor is the result of a single conversion: the PNG data URI
// plus output dimensions and the encoded size in kilobytes, rounded to one
// decimal.
type OutputDescriptor struct {
	DataURI string  `json:"data_uri"`
	Width   int     `json:"output_width"`
	Height  int     `json:"output_height"`
	SizeKB  float64 `json:"output_size_kb"`
}

type ConvertResult struct {
	Output OutputDescriptor `json:"output"`
	Source SourceMetadata   `json:"source"`
}
