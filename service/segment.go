package service

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Stage marks how far a segment has progressed through the editing
// pipeline. Stages are strictly ordered; text for a stage can only be added
// when the previous stage's text is present.
type Stage int

const (
	// StageSource has only source text.
	StageSource Stage = iota
	// StageMT adds the machine translation.
	StageMT
	// StageAPE adds the automatic post-edit.
	StageAPE
	// StageHPE adds the human post-edit.
	StageHPE
)

// String implements fmt.Stringer.
func (s Stage) String() string {
	switch s {
	case StageSource:
		return "source"
	case StageMT:
		return "mt"
	case StageAPE:
		return "ape"
	case StageHPE:
		return "hpe"
	}
	return "unknown"
}

// Segment is one sentence-level unit of a translation request. The populated
// text fields determine its stage; later-stage fields are empty until the
// corresponding WithX transition fills them.
type Segment struct {
	ID      string `json:"_id"`
	SrcText string `json:"srcText"`
	MTText  string `json:"mtText,omitempty"`
	APEText string `json:"apeText,omitempty"`
	HPEText string `json:"hpeText,omitempty"`
}

// NewSegment creates a source-stage segment with a fresh identifier.
func NewSegment(srcText string) Segment {
	return Segment{ID: uuid.NewString(), SrcText: srcText}
}

// Stage derives the segment's stage from its populated fields. Only
// non-empty text counts: a segment whose post-edit came back empty still
// reports StageMT.
func (s Segment) Stage() Stage {
	switch {
	case s.HPEText != "":
		return StageHPE
	case s.APEText != "":
		return StageAPE
	case s.MTText != "":
		return StageMT
	}
	return StageSource
}

// Validate checks that the populated fields form a contiguous stage prefix:
// no post-edit without a machine translation, no machine translation without
// source text.
func (s Segment) Validate() error {
	switch {
	case s.SrcText == "":
		return errors.Wrapf(ErrInvalidRequest, "segment %q has no source text", s.ID)
	case s.APEText != "" && s.MTText == "":
		return errors.Wrapf(ErrInvalidRequest, "segment %q has post-edit text but no machine translation", s.ID)
	case s.HPEText != "" && s.APEText == "":
		return errors.Wrapf(ErrInvalidRequest, "segment %q has human post-edit text but no automatic post-edit", s.ID)
	}
	return nil
}

// WithMT advances a source-stage segment to the MT stage.
func (s Segment) WithMT(mtText string) (Segment, error) {
	if s.Stage() != StageSource {
		return Segment{}, errors.Errorf("segment %q is at stage %s, cannot add machine translation", s.ID, s.Stage())
	}
	s.MTText = mtText
	return s, nil
}

// WithAPE advances an MT-stage segment to the APE stage. An empty apeText
// is accepted but returns the segment unchanged at the MT stage, since
// stages are derived from non-empty text; the transition stays open until a
// non-empty post-edit arrives.
func (s Segment) WithAPE(apeText string) (Segment, error) {
	if s.Stage() != StageMT {
		return Segment{}, errors.Errorf("segment %q is at stage %s, cannot add automatic post-edit", s.ID, s.Stage())
	}
	s.APEText = apeText
	return s, nil
}

// WithHPE advances an APE-stage segment to the HPE stage.
func (s Segment) WithHPE(hpeText string) (Segment, error) {
	if s.Stage() != StageAPE {
		return Segment{}, errors.Errorf("segment %q is at stage %s, cannot add human post-edit", s.ID, s.Stage())
	}
	s.HPEText = hpeText
	return s, nil
}
