// Package wasmfile decodes WebAssembly binary modules into a component tree.
//
// A module is the "\0asm" magic, a version and a run of sections. Each
// section is an id byte, a ULEB128 size and exactly that many bytes of
// content; content that stops short of the size, or runs past it, fails the
// read. The content's fields become children of the section node, and the
// typed view is available through Section.Body.
//
// Instructions are not decoded. Function bodies keep their local
// declarations and raw code bytes; constant expressions (global
// initializers, element and data offsets) are scanned to their end opcode
// and described as text.
//
// After the read, BuildIndex assembles the index spaces. The function index
// space lists imported functions first, then the functions of the function
// section. Function names come from the "name" custom section, then from
// exports, and default to func[i]. The resolution pass describes every index
// with the entry it names and reports out-of-range indices as broken
// references.
package wasmfile
