package classpy

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/cryptobyte"

	"github.com/starsquare/classpy/classfile"
	"github.com/starsquare/classpy/dexfile"
	"github.com/starsquare/classpy/errors"
	"github.com/starsquare/classpy/tree"
	"github.com/starsquare/classpy/wasmfile"
)

// Format identifies a container format.
type Format int

const (
	// FormatAuto selects the format from the input's magic number.
	FormatAuto Format = iota
	FormatClass
	FormatDex
	FormatWasm
)

var formatNames = [...]string{
	FormatAuto:  "auto",
	FormatClass: "class",
	FormatDex:   "dex",
	FormatWasm:  "wasm",
}

func (f Format) String() string {
	if f >= 0 && int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat maps a format name ("auto", "class", "dex", "wasm") to its
// Format.
func ParseFormat(name string) (Format, error) {
	for f, n := range formatNames {
		if strings.EqualFold(name, n) {
			return Format(f), nil
		}
	}
	return FormatAuto, errors.InvalidInput(errors.PhaseDetect,
		fmt.Sprintf("unknown format %q (want one of %s)", name, strings.Join(formatNames[:], ", ")))
}

// Leading bytes of each format, read big-endian.
const (
	classMagic = classfile.Magic
	dexMagic   = 0x6465780a // "dex\n"
	wasmMagic  = 0x0061736d // "\0asm"
)

// Detect identifies the container format from the first four bytes.
func Detect(data []byte) (Format, error) {
	s := cryptobyte.String(data)
	var magic uint32
	if !s.ReadUint32(&magic) {
		return FormatAuto, errors.New(errors.PhaseDetect, errors.KindOutOfData).
			Offset(0).
			Value(len(data)).
			Detail("need 4 bytes to detect the format, have %d", len(data)).
			Build()
	}
	switch magic {
	case classMagic:
		return FormatClass, nil
	case dexMagic:
		return FormatDex, nil
	case wasmMagic:
		return FormatWasm, nil
	}
	return FormatAuto, errors.New(errors.PhaseDetect, errors.KindUnsupported).
		Offset(0).
		Value(magic).
		Detail("unrecognized magic 0x%08x", magic).
		Build()
}

// Options configures a decode session.
type Options struct {
	// Logger overrides the package logger for this session.
	Logger *zap.Logger
	// Format forces a format instead of detecting it.
	Format Format
}

// DefaultOptions returns options that detect the format and log through the
// package logger.
func DefaultOptions() Options {
	return Options{Format: FormatAuto}
}

// Parse decodes data as a container file and returns the root of its
// component tree. The concrete root is *classfile.File, *dexfile.File or
// *wasmfile.File.
//
// On a read failure the returned root holds every component completed before
// the failure. On resolution failures the tree is complete and the affected
// nodes keep their raw descriptions. The root is nil only when the format
// cannot be determined.
func Parse(data []byte, opts Options) (tree.Component, error) {
	log := opts.Logger
	if log == nil {
		log = Logger()
	}

	format := opts.Format
	if format == FormatAuto {
		var err error
		if format, err = Detect(data); err != nil {
			log.Warn("format detection failed", zap.Int("size", len(data)), zap.Error(err))
			return nil, err
		}
	}

	var (
		root tree.Component
		err  error
	)
	switch format {
	case FormatClass:
		root, err = classfile.Parse(data)
	case FormatDex:
		root, err = dexfile.Parse(data)
	case FormatWasm:
		root, err = wasmfile.Parse(data)
	default:
		return nil, errors.InvalidInput(errors.PhaseDetect, "unknown format "+format.String())
	}

	if err != nil {
		log.Warn("decode failed",
			zap.Stringer("format", format),
			zap.String("phase", string(errors.PhaseOf(err))),
			zap.Int("offset", errors.OffsetOf(err)),
			zap.Error(err),
		)
	}
	log.Debug("decoded",
		zap.Stringer("format", format),
		zap.Int("size", len(data)),
		zap.Int("nodes", tree.Count(root)),
		zap.Bool("complete", tree.Complete(root)),
	)
	return root, err
}
