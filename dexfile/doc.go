// Package dexfile decodes Android DEX files into a component tree.
//
// The header and the id tables (strings, types, protos, fields, methods,
// class definitions) are read in header order. Everything in the data
// section is reached through an offset stored in some other record: string
// data from string ids, type lists from protos and class definitions, class
// data and static values from class definitions, code items from encoded
// methods. Those structures are read out of band and attached under the
// record that holds the offset. A zero offset means the structure is absent
// and no child is created.
//
// Indices are resolved after the whole file is read. BuildIndex turns the id
// tables into text (type descriptors, Owner.name:descriptor for members) and
// the resolution pass describes each index with the entry it names. Class
// data stores field and method indices as increments; the running sum
// restarts for each of its four lists.
package dexfile
