package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileClass(t *testing.T, src string) []string {
	t.Helper()
	code, err := Compile(strings.NewReader(src))
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(code), "\n"), "\n")
}

func compileClassErr(t *testing.T, src string) error {
	t.Helper()
	_, err := Compile(strings.NewReader(src))
	require.Error(t, err)
	return err
}

func TestGenerateFunction(t *testing.T) {
	assert.Equal(t, []string{
		"function Main.main 1",
		"push constant 1",
		"push constant 2",
		"add",
		"pop local 0",
		"push constant 0",
		"return",
	}, compileClass(t, `
class Main {
	function void main() {
		var int x;
		let x = 1 + 2;
		return;
	}
}
`))
}

// A constructor allocates one word per field and keeps the object's base
// address as this.
func TestGenerateConstructor(t *testing.T) {
	out := compileClass(t, `
class Point {
	field int x, y;
	static int count;

	constructor Point new(int ax) {
		let x = ax;
		return this;
	}
}
`)
	assert.Equal(t, []string{
		"function Point.new 0",
		"push constant 2",
		"call Memory.alloc 1",
		"pop pointer 0",
		"push argument 0",
		"pop this 0",
		"push pointer 0",
		"return",
	}, out)
}

// A method receives this as the hidden argument 0, shifting the declared
// parameters up by one.
func TestGenerateMethod(t *testing.T) {
	out := compileClass(t, `
class Point {
	field int x;

	method int plus(int dx) {
		return x + dx;
	}
}
`)
	assert.Equal(t, []string{
		"function Point.plus 0",
		"push argument 0",
		"pop pointer 0",
		"push this 0",
		"push argument 1",
		"add",
		"return",
	}, out)
}

func TestGenerateKeywordConstants(t *testing.T) {
	out := compileClass(t, `
class Main {
	function boolean main() {
		var boolean a;
		var Main b;
		let a = true;
		let a = false;
		let b = null;
		return a;
	}
}
`)
	assert.Equal(t, []string{
		"function Main.main 2",
		"push constant 0",
		"not",
		"pop local 0",
		"push constant 0",
		"pop local 0",
		"push constant 0",
		"pop local 1",
		"push local 0",
		"return",
	}, out)
}

// Expressions fold strictly left to right, so 2 + 3 * 4 multiplies the
// sum.
func TestGenerateExpressionOrder(t *testing.T) {
	out := compileClass(t, `
class Main {
	function int main() {
		return 2 + 3 * 4;
	}
}
`)
	assert.Equal(t, []string{
		"function Main.main 0",
		"push constant 2",
		"push constant 3",
		"add",
		"push constant 4",
		"call Math.multiply 2",
		"return",
	}, out)
}

func TestGenerateOperators(t *testing.T) {
	out := compileClass(t, `
class Main {
	function int main(int a, int b) {
		return -(a / b) < ~(a - b) | (a > b) & (a = b);
	}
}
`)
	assert.Equal(t, []string{
		"function Main.main 0",
		"push argument 0",
		"push argument 1",
		"call Math.divide 2",
		"neg",
		"push argument 0",
		"push argument 1",
		"sub",
		"not",
		"lt",
		"push argument 0",
		"push argument 1",
		"gt",
		"or",
		"push argument 0",
		"push argument 1",
		"eq",
		"and",
		"return",
	}, out)
}

func TestGenerateStringConstant(t *testing.T) {
	out := compileClass(t, `
class Main {
	function void main() {
		do Output.printString("Hi!");
		return;
	}
}
`)
	assert.Equal(t, []string{
		"function Main.main 0",
		"push constant 3",
		"call String.new 1",
		"push constant 72",
		"call String.appendChar 2",
		"push constant 105",
		"call String.appendChar 2",
		"push constant 33",
		"call String.appendChar 2",
		"call Output.printString 1",
		"pop temp 0",
		"push constant 0",
		"return",
	}, out)
}

func TestGenerateWhile(t *testing.T) {
	out := compileClass(t, `
class Main {
	function void main() {
		var int i;
		while (i < 10) {
			let i = i + 1;
		}
		return;
	}
}
`)
	assert.Equal(t, []string{
		"function Main.main 1",
		"label WHILE_EXP0",
		"push local 0",
		"push constant 10",
		"lt",
		"not",
		"if-goto WHILE_END0",
		"push local 0",
		"push constant 1",
		"add",
		"pop local 0",
		"goto WHILE_EXP0",
		"label WHILE_END0",
		"push constant 0",
		"return",
	}, out)
}

func TestGenerateIfElse(t *testing.T) {
	out := compileClass(t, `
class Main {
	function int main(int x) {
		if (x < 0) {
			return 0;
		} else {
			return x;
		}
	}
}
`)
	assert.Equal(t, []string{
		"function Main.main 0",
		"push argument 0",
		"push constant 0",
		"lt",
		"if-goto IF_TRUE0",
		"goto IF_FALSE0",
		"label IF_TRUE0",
		"push constant 0",
		"return",
		"goto IF_END0",
		"label IF_FALSE0",
		"push argument 0",
		"return",
		"label IF_END0",
	}, out)
}

// An if without an else falls through at IF_FALSE and emits no IF_END.
func TestGenerateIfWithoutElse(t *testing.T) {
	out := compileClass(t, `
class Main {
	function int main(int x) {
		if (x < 0) {
			let x = 0;
		}
		return x;
	}
}
`)
	assert.Equal(t, []string{
		"function Main.main 0",
		"push argument 0",
		"push constant 0",
		"lt",
		"if-goto IF_TRUE0",
		"goto IF_FALSE0",
		"label IF_TRUE0",
		"push constant 0",
		"pop argument 0",
		"label IF_FALSE0",
		"push argument 0",
		"return",
	}, out)
}

// Label counters restart in every subroutine, so a subroutine's output
// never depends on its position in the class.
func TestGenerateLabelCountersResetPerSubroutine(t *testing.T) {
	out := compileClass(t, `
class Main {
	function void a() {
		while (true) { }
		return;
	}
	function void b() {
		while (true) { }
		if (true) { }
		return;
	}
}
`)
	text := strings.Join(out, "\n")
	assert.Equal(t, 2, strings.Count(text, "label WHILE_EXP0"))
	assert.Contains(t, text, "label IF_TRUE0")
	assert.NotContains(t, text, "WHILE_EXP1")
}

func TestGenerateCallDispatch(t *testing.T) {
	out := compileClass(t, `
class Game {
	field Board board;
	static Game instance;

	method void tick() {
		do step();
		do board.draw(1, 2);
		do Screen.clearScreen();
		do instance.tick();
		return;
	}

	method void step() {
		return;
	}
}
`)
	assert.Equal(t, []string{
		"function Game.tick 0",
		"push argument 0",
		"pop pointer 0",
		// do step() calls the current class's method on this.
		"push pointer 0",
		"call Game.step 1",
		"pop temp 0",
		// do board.draw(1, 2) pushes the receiver before the arguments.
		"push this 0",
		"push constant 1",
		"push constant 2",
		"call Board.draw 3",
		"pop temp 0",
		// Screen does not resolve to a variable, so it is a class name.
		"call Screen.clearScreen 0",
		"pop temp 0",
		// A static variable is a receiver like any other.
		"push static 0",
		"call Game.tick 1",
		"pop temp 0",
		"push constant 0",
		"return",
		"function Game.step 0",
		"push argument 0",
		"pop pointer 0",
		"push constant 0",
		"return",
	}, out)
}

func TestGenerateArrayAccess(t *testing.T) {
	out := compileClass(t, `
class Main {
	function void main() {
		var Array a;
		var int i, x;
		let x = a[i];
		let a[i + 1] = x;
		return;
	}
}
`)
	assert.Equal(t, []string{
		"function Main.main 3",
		// read: address = i + a, then that 0
		"push local 1",
		"push local 0",
		"add",
		"pop pointer 1",
		"push that 0",
		"pop local 2",
		// write: address first, value parked in temp 0
		"push local 1",
		"push constant 1",
		"add",
		"push local 0",
		"add",
		"push local 2",
		"pop temp 0",
		"pop pointer 1",
		"push temp 0",
		"pop that 0",
		"push constant 0",
		"return",
	}, out)
}

func TestGenerateSemanticErrors(t *testing.T) {
	undefined := compileClassErr(t, `
class Main {
	function void main() {
		let x = 1;
		return;
	}
}
`)
	assert.Contains(t, undefined.Error(), "undefined variable")
	assert.Contains(t, undefined.Error(), "line 4")

	redeclared := compileClassErr(t, `
class Main {
	function void main(int x) {
		var int x;
		return;
	}
}
`)
	assert.Contains(t, redeclared.Error(), "redeclares")

	duplicate := compileClassErr(t, `
class Main {
	function void main() { return; }
	function void main() { return; }
}
`)
	assert.Contains(t, duplicate.Error(), "duplicate subroutine")

	unresolvedTerm := compileClassErr(t, `
class Main {
	function int main() {
		return Screen;
	}
}
`)
	assert.Contains(t, unresolvedTerm.Error(), "undefined variable")
}

// The same source always compiles to the same VM text.
func TestGenerateDeterministic(t *testing.T) {
	src := `
class Counter {
	field int value;

	constructor Counter new() {
		let value = 0;
		return this;
	}

	method void bump() {
		let value = value + 1;
		if (value > 100) {
			let value = 0;
		}
		return;
	}
}
`
	first, err := Compile(strings.NewReader(src))
	require.NoError(t, err)
	second, err := Compile(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
