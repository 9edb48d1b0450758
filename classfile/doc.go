// Package classfile decodes Java class files into a component tree.
//
// The decoder follows the class file layout field by field in big-endian
// order: header, constant pool, access flags, class references, interfaces,
// fields, methods and attributes. Every field becomes a component whose byte
// range is its position in the input.
//
// Constant pool indices are read as raw numbers and resolved to readable text
// (#7 -> java/lang/Object) in the resolution pass. Attributes are the one
// place the linear read consults the constant pool, to choose an attribute's
// layout by name; the pool always precedes every attribute in the file.
//
// Basic usage:
//
//	f, err := classfile.Parse(data)
//	if err != nil {
//	    // f holds everything decoded before the failure
//	}
//	for _, m := range f.Methods.Items {
//	    fmt.Println(m.Desc())
//	}
package classfile
