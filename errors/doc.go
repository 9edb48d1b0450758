// Package errors provides structured error types for the classpy decoders.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the component path that was being read, the byte offset
// of the failure when one is known, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseRead, errors.KindInvalidData).
//		Path("constant_pool", "#12").
//		Offset(0x40).
//		Detail("unknown constant tag %d", tag).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.OutOfData(pos, 4, 1)
//	err := errors.BrokenReference("method_ids", 42, 10)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
