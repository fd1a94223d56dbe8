package compiler

import (
	"bytes"
	"fmt"
)

// vmWriter renders VM commands one per line into an in-memory buffer, so
// a compilation that fails partway leaves nothing behind on disk.
type vmWriter struct {
	out bytes.Buffer
}

func (w *vmWriter) Bytes() []byte {
	return w.out.Bytes()
}

func (w *vmWriter) writePush(segment string, index int) {
	fmt.Fprintf(&w.out, "push %s %d\n", segment, index)
}

func (w *vmWriter) writePop(segment string, index int) {
	fmt.Fprintf(&w.out, "pop %s %d\n", segment, index)
}

func (w *vmWriter) writeArithmetic(cmd string) {
	w.out.WriteString(cmd)
	w.out.WriteByte('\n')
}

func (w *vmWriter) writeLabel(label string) {
	fmt.Fprintf(&w.out, "label %s\n", label)
}

func (w *vmWriter) writeGoto(label string) {
	fmt.Fprintf(&w.out, "goto %s\n", label)
}

func (w *vmWriter) writeIf(label string) {
	fmt.Fprintf(&w.out, "if-goto %s\n", label)
}

func (w *vmWriter) writeCall(name string, argCount int) {
	fmt.Fprintf(&w.out, "call %s %d\n", name, argCount)
}

func (w *vmWriter) writeFunction(name string, localCount int) {
	fmt.Fprintf(&w.out, "function %s %d\n", name, localCount)
}

func (w *vmWriter) writeReturn() {
	w.out.WriteString("return\n")
}
