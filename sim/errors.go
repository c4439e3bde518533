package sim

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a file was rejected. Every kind is fatal for the
// file being loaded. An ErrorKind is itself an error so callers can write
// errors.Is(err, sim.MisalignedTable).
type ErrorKind int

const (
	InvalidMagic ErrorKind = iota + 1
	UnsupportedClass
	UnsupportedEndianness
	UnsupportedIdentification
	UnsupportedObjectType
	UnsupportedMachine
	UnsupportedVersion
	UnsupportedAbiOrArch
	UnexpectedHeaderLayout
	UnsupportedExtendedHeaderCount
	MissingSectionHeaders
	MissingStringTable
	MisalignedTable
	UnknownProgramHeaderType
	InvalidSegmentSizes
	InconsistentNullSection
	MalformedStringTable
	Truncated
	SizeLimitExceeded
	ConflictingPlacement
)

var kindNames = [...]string{
	InvalidMagic:                   "InvalidMagic",
	UnsupportedClass:               "UnsupportedClass",
	UnsupportedEndianness:          "UnsupportedEndianness",
	UnsupportedIdentification:      "UnsupportedIdentification",
	UnsupportedObjectType:          "UnsupportedObjectType",
	UnsupportedMachine:             "UnsupportedMachine",
	UnsupportedVersion:             "UnsupportedVersion",
	UnsupportedAbiOrArch:           "UnsupportedAbiOrArch",
	UnexpectedHeaderLayout:         "UnexpectedHeaderLayout",
	UnsupportedExtendedHeaderCount: "UnsupportedExtendedHeaderCount",
	MissingSectionHeaders:          "MissingSectionHeaders",
	MissingStringTable:             "MissingStringTable",
	MisalignedTable:                "MisalignedTable",
	UnknownProgramHeaderType:       "UnknownProgramHeaderType",
	InvalidSegmentSizes:            "InvalidSegmentSizes",
	InconsistentNullSection:        "InconsistentNullSection",
	MalformedStringTable:           "MalformedStringTable",
	Truncated:                      "Truncated",
	SizeLimitExceeded:              "SizeLimitExceeded",
	ConflictingPlacement:           "ConflictingPlacement",
}

func (k ErrorKind) String() string {
	if k > 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

func (k ErrorKind) Error() string { return k.String() }

// A DecodeError reports a rejected file: what went wrong and the file offset
// the decoder was looking at.
type DecodeError struct {
	Kind   ErrorKind
	Offset int64
	Msg    string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s at offset 0x%x: %s", e.Kind, e.Offset, e.Msg)
}

func (e *DecodeError) Is(target error) bool {
	k, ok := target.(ErrorKind)
	return ok && k == e.Kind
}

func newError(kind ErrorKind, off int64, format string, args ...interface{}) error {
	return &DecodeError{Kind: kind, Offset: off, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the DecodeError wrapped in err, or 0 if there is
// none.
func KindOf(err error) ErrorKind {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}
