// Package classpy decodes binary container files into byte-range annotated
// component trees.
//
// Three container formats are supported: Java class files, Android DEX files
// and WebAssembly modules. Every decoded node records where its bytes start,
// how many bytes it covers, a human-readable description and its children,
// so a viewer can map any byte of the input back to the structure it belongs
// to without re-parsing.
//
// # Architecture Overview
//
//	classpy/             Format detection and the Parse entry point
//	├── reader/          Position-tracking cursor: fixed-width and LEB128 reads, scoped seeks
//	├── tree/            Component contract, lists, leaves, resolution pass, offset lookup
//	├── classfile/       Java class file decoder (big-endian)
//	├── dexfile/         Android DEX decoder (little-endian)
//	├── wasmfile/        WebAssembly module decoder
//	├── errors/          Structured errors with phase, kind, component path and offset
//	├── dump/            Text rendering and diffing of decoded trees
//	├── verify/          Cross-check of decoded WebAssembly modules against wazero
//	└── cmd/classpy/     Command-line dumper and interactive browser
//
// # Quick Start
//
//	root, err := classpy.Parse(data, classpy.DefaultOptions())
//	if err != nil {
//	    // root still holds everything decoded before the failure
//	    log.Print(err)
//	}
//	fmt.Print(dump.String(root))
//
// # Decode Sessions
//
// A session reads the whole tree in one pass over the buffer, then builds
// the format's index tables and runs a resolution pass that describes
// cross-references (constant pool indices, DEX id indices, WebAssembly
// function indices). A read failure ends the session and returns the
// partial tree. Resolution failures leave the affected nodes with their raw
// descriptions and are returned together once the pass completes.
//
// Sessions share no state. Decoding several files concurrently is safe as
// long as each call gets its own buffer.
//
// # Error Handling
//
// Errors are *errors.Error values carrying the processing phase, an error
// kind, the path of component names leading to the failure and the byte
// offset. Use errors.Is with a template error to match on phase and kind:
//
//	if errors.Is(err, &cperrors.Error{Phase: cperrors.PhaseRead, Kind: cperrors.KindOutOfData}) {
//	    // truncated input
//	}
package classpy
