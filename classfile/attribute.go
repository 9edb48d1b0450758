package classfile

import (
	"fmt"

	"github.com/starsquare/classpy/errors"
	"github.com/starsquare/classpy/reader"
	"github.com/starsquare/classpy/tree"
)

// Attribute is an attribute_info entry. Attributes with a known name are
// decoded field by field and must fill attribute_length exactly; any other
// attribute is kept as raw info bytes.
type Attribute struct {
	tree.Node
	cp *ConstantPool

	NameIndex       *Index
	AttributeLength *tree.UInt
	// Kind is the attribute name, or "" when name_index does not name a
	// Utf8 entry.
	Kind string
	// Info holds the body of an attribute that is not decoded.
	Info *tree.Raw
	// Code is the bytecode of a Code attribute.
	Code *tree.Raw
	// Attributes are the nested attributes of a Code attribute.
	Attributes *tree.List[*Attribute]
}

func addAttributes(parent tree.Component, r *reader.Reader, cp *ConstantPool) (*tree.UInt, *tree.List[*Attribute], error) {
	n, err := tree.Add(parent, r, tree.U2("attributes_count"))
	if err != nil {
		return nil, nil, err
	}
	l, err := tree.AddList(parent, r, "attributes", n.Int(), func() *Attribute {
		return &Attribute{cp: cp}
	})
	return n, l, err
}

func findAttribute(l *tree.List[*Attribute], name string) *Attribute {
	if l == nil {
		return nil
	}
	for _, a := range l.Items {
		if a.Kind == name {
			return a
		}
	}
	return nil
}

// Attribute returns the first class-level attribute with the given name.
func (f *File) Attribute(name string) *Attribute {
	return findAttribute(f.Attributes, name)
}

// Attribute returns the first nested attribute with the given name. Only
// Code attributes have nested attributes.
func (a *Attribute) Attribute(name string) *Attribute {
	return findAttribute(a.Attributes, name)
}

func (a *Attribute) ReadContent(r *reader.Reader) (err error) {
	if a.NameIndex, err = tree.Add(a, r, newIndex("attribute_name_index")); err != nil {
		return err
	}
	if a.AttributeLength, err = tree.Add(a, r, tree.U4("attribute_length")); err != nil {
		return err
	}
	a.Kind, _ = a.cp.Utf8(a.NameIndex.Value)

	body := attributeBody(a.Kind)
	if body == nil {
		if a.Info, err = tree.Add(a, r, tree.Bytes("info", a.AttributeLength.Int())); err != nil {
			return err
		}
		a.SetDesc(a.Kind)
		return nil
	}

	start := r.Position()
	err = r.Within(a.AttributeLength.Int(), func(r *reader.Reader) error {
		if err := body(a, r); err != nil {
			return err
		}
		if n := r.Position() - start; uint64(n) != a.AttributeLength.Value {
			return errors.InvalidData(errors.PhaseRead, start,
				fmt.Sprintf("%s body is %d bytes, attribute_length is %d", a.Kind, n, a.AttributeLength.Value))
		}
		return nil
	})
	if err != nil {
		return err
	}
	a.SetDesc(a.Kind)
	return nil
}

type bodyReader func(a *Attribute, r *reader.Reader) error

// attributeBody returns the decoder for a named attribute, or nil when the
// attribute is kept raw.
func attributeBody(kind string) bodyReader {
	switch kind {
	case "Code":
		return readCode
	case "ConstantValue":
		return fields(idx("constantvalue_index"))
	case "SourceFile":
		return fields(idx("sourcefile_index"))
	case "Signature":
		return fields(idx("signature_index"))
	case "NestHost":
		return fields(idx("host_class_index"))
	case "EnclosingMethod":
		return fields(idx("class_index"), idx("method_index"))
	case "Exceptions":
		return indexTable("number_of_exceptions", "exception_index_table")
	case "NestMembers", "PermittedSubclasses":
		return indexTable("number_of_classes", "classes")
	case "LineNumberTable":
		return table(u2("line_number_table_length"), "line_number_table",
			u2("start_pc"), u2("line_number"))
	case "LocalVariableTable":
		return table(u2("local_variable_table_length"), "local_variable_table",
			u2("start_pc"), u2("length"), idx("name_index"), idx("descriptor_index"), u2("index"))
	case "LocalVariableTypeTable":
		return table(u2("local_variable_type_table_length"), "local_variable_type_table",
			u2("start_pc"), u2("length"), idx("name_index"), idx("signature_index"), u2("index"))
	case "InnerClasses":
		return table(u2("number_of_classes"), "classes",
			idx("inner_class_info_index"), idx("outer_class_info_index"), idx("inner_name_index"),
			flags("inner_class_access_flags", InnerClassFlags))
	case "MethodParameters":
		return table(u1("parameters_count"), "parameters",
			idx("name_index"), flags("access_flags", ParameterFlags))
	case "BootstrapMethods":
		return table(u2("num_bootstrap_methods"), "bootstrap_methods", readBootstrapMethod)
	case "Deprecated", "Synthetic":
		return fields()
	}
	return nil
}

// fieldFunc builds one component of a fixed record.
type fieldFunc func() tree.Component

func u1(name string) fieldFunc {
	return func() tree.Component { return tree.U1(name) }
}

func u2(name string) fieldFunc {
	return func() tree.Component { return tree.U2(name) }
}

func idx(name string) fieldFunc {
	return func() tree.Component { return newIndex(name) }
}

func flags(name string, kind FlagKind) fieldFunc {
	return func() tree.Component { return newFlags(name, kind) }
}

func addFields(parent tree.Component, r *reader.Reader, fs []fieldFunc) error {
	for _, f := range fs {
		if _, err := tree.Add(parent, r, f()); err != nil {
			return err
		}
	}
	return nil
}

// fields reads a fixed sequence of fields directly into the attribute.
func fields(fs ...fieldFunc) bodyReader {
	return func(a *Attribute, r *reader.Reader) error {
		return addFields(a, r, fs)
	}
}

// table reads a count followed by that many records of the given fields.
func table(count fieldFunc, name string, fs ...fieldFunc) bodyReader {
	return func(a *Attribute, r *reader.Reader) error {
		n, err := tree.Add(a, r, count().(*tree.UInt))
		if err != nil {
			return err
		}
		_, err = tree.AddList(a, r, name, n.Int(), func() *tree.Group {
			return tree.NewGroup("", func(g *tree.Group, r *reader.Reader) error {
				return addFields(g, r, fs)
			})
		})
		return err
	}
}

// indexTable reads a u2 count followed by that many constant pool indices.
func indexTable(countName, name string) bodyReader {
	return func(a *Attribute, r *reader.Reader) error {
		n, err := tree.Add(a, r, tree.U2(countName))
		if err != nil {
			return err
		}
		_, err = tree.AddList(a, r, name, n.Int(), func() *Index { return newIndex("") })
		return err
	}
}

func readBootstrapMethod() tree.Component {
	return tree.NewGroup("", func(g *tree.Group, r *reader.Reader) error {
		if _, err := tree.Add(g, r, newIndex("bootstrap_method_ref")); err != nil {
			return err
		}
		n, err := tree.Add(g, r, tree.U2("num_bootstrap_arguments"))
		if err != nil {
			return err
		}
		_, err = tree.AddList(g, r, "bootstrap_arguments", n.Int(), func() *Index { return newIndex("") })
		return err
	})
}

func readCode(a *Attribute, r *reader.Reader) error {
	if err := addFields(a, r, []fieldFunc{u2("max_stack"), u2("max_locals")}); err != nil {
		return err
	}
	n, err := tree.Add(a, r, tree.U4("code_length"))
	if err != nil {
		return err
	}
	if a.Code, err = tree.Add(a, r, tree.Bytes("code", n.Int())); err != nil {
		return err
	}
	a.Code.Describe("%d bytes", n.Value)
	if err := table(u2("exception_table_length"), "exception_table",
		u2("start_pc"), u2("end_pc"), u2("handler_pc"), idx("catch_type"))(a, r); err != nil {
		return err
	}
	_, a.Attributes, err = addAttributes(a, r, a.cp)
	return err
}
