// Package vmtranslator lowers the stack VM intermediate representation to
// hack assembly. Every VM command expands to a fixed instruction sequence
// against a stack whose pointer lives at RAM[0]; function commands
// additionally synthesize the 5-word frame calling convention.
package vmtranslator

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/exp/slices"

	"hacktoolchain/util"
)

// segment distinguishes how a push/pop target address is computed.
type segment int

const (
	segConstant segment = iota
	segPointerBased
	segTemp
	segPointer
	segStatic
)

type segmentDesc struct {
	kind segment
	base string // pointer-based segments: the symbol holding the base address
	max  int    // fixed-size segments: the largest valid index
}

var segments = map[string]segmentDesc{
	"constant": {kind: segConstant, max: 1<<15 - 1},
	"local":    {kind: segPointerBased, base: "LCL"},
	"argument": {kind: segPointerBased, base: "ARG"},
	"this":     {kind: segPointerBased, base: "THIS"},
	"that":     {kind: segPointerBased, base: "THAT"},
	"temp":     {kind: segTemp, max: 7},
	"pointer":  {kind: segPointer, max: 1},
	"static":   {kind: segStatic, max: 239},
}

var comparisonJumps = map[string]string{
	"eq": "JEQ",
	"gt": "JGT",
	"lt": "JLT",
}

// Translator accumulates the assembly for one output file. Static symbols
// are scoped by the current input file's stem, program-flow labels by the
// current function, so both must be kept up to date while feeding commands.
type Translator struct {
	out      bytes.Buffer
	fileStem string
	lineNo   int

	currentFunction string
	cmpLabelID      int // one global counter, two labels per comparison site
	returnID        int // per-function return-address counter
}

func New() *Translator {
	return &Translator{}
}

// Output returns the assembly accumulated so far.
func (t *Translator) Output() []byte {
	return t.out.Bytes()
}

// WriteBootstrap emits the startup sequence of a linked program: SP is set
// to 256 and control transfers to Sys.init, which never returns.
func (t *Translator) WriteBootstrap() {
	t.comment("bootstrap")
	t.emit("@256", "D=A", "@SP", "M=D")
	t.translateCall("Sys.init", 0)
}

// Translate feeds one .vm file's commands into the output. stem is the
// input file's name without extension; it keeps per-file static segments
// disjoint after the assembler links them by symbol.
func (t *Translator) Translate(stem string, src io.Reader) error {
	t.fileStem = stem
	t.lineNo = 0
	reader := bufio.NewReader(src)
	for {
		raw, err := reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return err
		}
		if len(raw) == 0 && err == io.EOF {
			return nil
		}
		t.lineNo++
		if cmdErr := t.translateLine(raw); cmdErr != nil {
			return cmdErr
		}
		if err == io.EOF {
			return nil
		}
	}
}

func (t *Translator) translateLine(raw []byte) error {
	line := string(raw)
	if idx := strings.Index(line, "//"); idx != -1 {
		line = line[:idx]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	t.comment(strings.Join(fields, " "))
	switch cmd := fields[0]; cmd {
	case "push", "pop":
		return t.translatePushPop(cmd, fields[1:])
	case "add", "sub", "and", "or":
		return t.translateBinary(cmd, fields[1:])
	case "neg", "not":
		return t.translateUnary(cmd, fields[1:])
	case "eq", "gt", "lt":
		return t.translateComparison(cmd, fields[1:])
	case "label", "goto", "if-goto":
		return t.translateFlow(cmd, fields[1:])
	case "function":
		return t.translateFunctionDecl(fields[1:])
	case "call":
		return t.translateCallCommand(fields[1:])
	case "return":
		if len(fields) != 1 {
			return t.syntaxErr("return takes no arguments")
		}
		t.translateReturn()
		return nil
	default:
		return t.syntaxErr("unknown command %q", cmd)
	}
}

func (t *Translator) translatePushPop(cmd string, args []string) error {
	if len(args) != 2 {
		return t.syntaxErr("%s wants a segment and an index", cmd)
	}
	desc, ok := segments[args[0]]
	if !ok {
		return t.syntaxErr("unknown segment %q", args[0])
	}
	index, err := strconv.Atoi(args[1])
	if err != nil || index < 0 {
		return t.syntaxErr("bad index %q", args[1])
	}
	if desc.max > 0 && index > desc.max {
		return t.syntaxErr("index %d out of range for segment %s", index, args[0])
	}
	if cmd == "push" {
		t.translatePush(desc, index)
		return nil
	}
	if desc.kind == segConstant {
		return t.syntaxErr("cannot pop to the constant segment")
	}
	t.translatePop(desc, index)
	return nil
}

func (t *Translator) translatePush(desc segmentDesc, index int) {
	switch desc.kind {
	case segConstant:
		t.emitf("@%d", index)
		t.emit("D=A")
	case segPointerBased:
		t.emitf("@%d", index)
		t.emit("D=A")
		t.emitf("@%s", desc.base)
		t.emit("A=M+D", "D=M")
	case segTemp:
		t.emitf("@R%d", 5+index)
		t.emit("D=M")
	case segPointer:
		t.emitf("@%s", pointerSymbol(index))
		t.emit("D=M")
	case segStatic:
		t.emitf("@%s.%d", t.fileStem, index)
		t.emit("D=M")
	}
	t.pushD()
}

func (t *Translator) translatePop(desc segmentDesc, index int) {
	// Pointer-based segments need the target address computed before the
	// value is popped; R13 parks it in between.
	if desc.kind == segPointerBased {
		t.emitf("@%d", index)
		t.emit("D=A")
		t.emitf("@%s", desc.base)
		t.emit("D=M+D", "@R13", "M=D")
		t.popToD()
		t.emit("@R13", "A=M", "M=D")
		return
	}
	t.popToD()
	switch desc.kind {
	case segTemp:
		t.emitf("@R%d", 5+index)
	case segPointer:
		t.emitf("@%s", pointerSymbol(index))
	case segStatic:
		t.emitf("@%s.%d", t.fileStem, index)
	}
	t.emit("M=D")
}

func pointerSymbol(index int) string {
	if index == 0 {
		return "THIS"
	}
	return "THAT"
}

func (t *Translator) translateBinary(cmd string, args []string) error {
	if len(args) != 0 {
		return t.syntaxErr("%s takes no arguments", cmd)
	}
	ops := map[string]string{
		"add": "M=M+D",
		"sub": "M=M-D",
		"and": "M=M&D",
		"or":  "M=M|D",
	}
	t.emit("@SP", "AM=M-1", "D=M", "A=A-1", ops[cmd])
	return nil
}

func (t *Translator) translateUnary(cmd string, args []string) error {
	if len(args) != 0 {
		return t.syntaxErr("%s takes no arguments", cmd)
	}
	op := "M=-M"
	if cmd == "not" {
		op = "M=!M"
	}
	t.emit("@SP", "A=M-1", op)
	return nil
}

// translateComparison subtracts the two topmost values and branches on the
// sign of the result, leaving -1 (true) or 0 (false) on the stack.
func (t *Translator) translateComparison(cmd string, args []string) error {
	if len(args) != 0 {
		return t.syntaxErr("%s takes no arguments", cmd)
	}
	trueLabel := fmt.Sprintf("CMP_TRUE.%d", t.cmpLabelID)
	endLabel := fmt.Sprintf("CMP_END.%d", t.cmpLabelID)
	t.cmpLabelID++
	t.emit("@SP", "AM=M-1", "D=M", "A=A-1", "D=M-D")
	t.emitf("@%s", trueLabel)
	t.emitf("D;%s", comparisonJumps[cmd])
	t.emit("@SP", "A=M-1", "M=0")
	t.emitf("@%s", endLabel)
	t.emit("0;JMP")
	t.emitf("(%s)", trueLabel)
	t.emit("@SP", "A=M-1", "M=-1")
	t.emitf("(%s)", endLabel)
	return nil
}

func (t *Translator) translateFlow(cmd string, args []string) error {
	if len(args) != 1 {
		return t.syntaxErr("%s wants a label", cmd)
	}
	if !isValidName(args[0]) {
		return t.syntaxErr("bad label %q", args[0])
	}
	label := t.scopedLabel(args[0])
	switch cmd {
	case "label":
		t.emitf("(%s)", label)
	case "goto":
		t.emitf("@%s", label)
		t.emit("0;JMP")
	case "if-goto":
		t.popToD()
		t.emitf("@%s", label)
		t.emit("D;JNE")
	}
	return nil
}

// scopedLabel qualifies a program-flow label with the enclosing function so
// the same source label can recur across functions.
func (t *Translator) scopedLabel(label string) string {
	if t.currentFunction == "" {
		return label
	}
	return t.currentFunction + "$" + label
}

func (t *Translator) translateFunctionDecl(args []string) error {
	name, locals, err := t.nameAndCount(args, "function")
	if err != nil {
		return err
	}
	t.currentFunction = name
	t.returnID = 0
	t.emitf("(%s)", name)
	// The local count is known here, so the zero initialization is
	// straight-line rather than a runtime loop.
	for i := 0; i < locals; i++ {
		t.emit("@SP", "A=M", "M=0", "@SP", "M=M+1")
	}
	return nil
}

func (t *Translator) translateCallCommand(args []string) error {
	name, argCount, err := t.nameAndCount(args, "call")
	if err != nil {
		return err
	}
	t.translateCall(name, argCount)
	return nil
}

func (t *Translator) nameAndCount(args []string, cmd string) (string, int, error) {
	if len(args) != 2 {
		return "", 0, t.syntaxErr("%s wants a function name and a count", cmd)
	}
	if !isValidName(args[0]) {
		return "", 0, t.syntaxErr("bad function name %q", args[0])
	}
	count, err := strconv.Atoi(args[1])
	if err != nil || count < 0 {
		return "", 0, t.syntaxErr("bad count %q", args[1])
	}
	return args[0], count, nil
}

// translateCall pushes the 5-word frame (return address, LCL, ARG, THIS,
// THAT), repoints ARG and LCL for the callee and jumps. The return-address
// label is declared right after the jump.
func (t *Translator) translateCall(name string, argCount int) {
	ret := fmt.Sprintf("%s$ret.%d", t.currentFunction, t.returnID)
	t.returnID++
	t.emitf("@%s", ret)
	t.emit("D=A")
	t.pushD()
	for _, saved := range []string{"LCL", "ARG", "THIS", "THAT"} {
		t.emitf("@%s", saved)
		t.emit("D=M")
		t.pushD()
	}
	t.emitf("@%d", argCount+5)
	t.emit("D=A", "@SP", "D=M-D", "@ARG", "M=D")
	t.emit("@SP", "D=M", "@LCL", "M=D")
	t.emitf("@%s", name)
	t.emit("0;JMP")
	t.emitf("(%s)", ret)
}

// translateReturn unwinds the frame pushed by translateCall: R13 walks the
// frame, R14 holds the return address. The return address is read before
// the return value overwrites RAM[ARG], since with zero arguments the two
// slots can coincide.
func (t *Translator) translateReturn() {
	t.emit("@LCL", "D=M", "@R13", "M=D")
	t.emit("@5", "A=D-A", "D=M", "@R14", "M=D")
	t.popToD()
	t.emit("@ARG", "A=M", "M=D")
	t.emit("@ARG", "D=M+1", "@SP", "M=D")
	for _, restored := range []string{"THAT", "THIS", "ARG", "LCL"} {
		t.emit("@R13", "AM=M-1", "D=M")
		t.emitf("@%s", restored)
		t.emit("M=D")
	}
	t.emit("@R14", "A=M", "0;JMP")
}

// pushD appends *SP=D; SP++.
func (t *Translator) pushD() {
	t.emit("@SP", "A=M", "M=D", "@SP", "M=M+1")
}

// popToD appends SP--; D=*SP.
func (t *Translator) popToD() {
	t.emit("@SP", "AM=M-1", "D=M")
}

func (t *Translator) emit(instructions ...string) {
	for _, ins := range instructions {
		t.out.WriteString(ins)
		t.out.WriteByte('\n')
	}
}

func (t *Translator) emitf(format string, args ...interface{}) {
	fmt.Fprintf(&t.out, format, args...)
	t.out.WriteByte('\n')
}

// comment records the original VM command above its expansion. The
// assembler strips it, so the .hack output is unaffected.
func (t *Translator) comment(text string) {
	t.out.WriteString("// ")
	t.out.WriteString(text)
	t.out.WriteByte('\n')
}

func isValidName(name string) bool {
	if len(name) == 0 || !util.IsSymbolStart(name[0]) {
		return false
	}
	for i := 1; i < len(name); i++ {
		if !util.IsSymbolPart(name[i]) {
			return false
		}
	}
	return true
}

func (t *Translator) syntaxErr(format string, args ...interface{}) error {
	return fmt.Errorf("vm translator: syntax error at line %d: %s", t.lineNo, fmt.Sprintf(format, args...))
}

// TranslateFile translates a single foo.vm into a sibling foo.asm. No
// bootstrap is emitted, so the output can be concatenated or inspected as a
// bare fragment.
func TranslateFile(path string) error {
	if filepath.Ext(path) != ".vm" {
		return fmt.Errorf("vm translator: %s is not a .vm file", path)
	}
	t := New()
	if err := translateInto(t, path); err != nil {
		return err
	}
	out := strings.TrimSuffix(path, ".vm") + ".asm"
	return os.WriteFile(out, t.Output(), 0666)
}

// TranslateDir translates every .vm file under dir into one DIR/DIR.asm,
// bootstrap first. Inputs are processed in name order so the output is
// deterministic.
func TranslateDir(dir string) error {
	matches, err := doublestar.Glob(os.DirFS(dir), "*.vm")
	if err != nil {
		return fmt.Errorf("vm translator: %w", err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("vm translator: no .vm files in %s", dir)
	}
	slices.Sort(matches)
	t := New()
	t.WriteBootstrap()
	for _, name := range matches {
		if err := translateInto(t, filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	out := filepath.Join(dir, filepath.Base(dir)+".asm")
	return os.WriteFile(out, t.Output(), 0666)
}

func translateInto(t *Translator, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("vm translator: %w", err)
	}
	defer f.Close()
	stem := strings.TrimSuffix(filepath.Base(path), ".vm")
	if err := t.Translate(stem, f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
