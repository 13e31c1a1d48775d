package memory

import "strings"

// defaultConfidence is the starting confidence of built-in records.
const defaultConfidence = 0.8

// Defaults returns the built-in correction rules, optimization rules and
// code templates. They are seeded with frequency 0, so seeding an existing
// store changes nothing.
func Defaults() []Record {
	var out []Record
	for _, r := range defaultCorrections {
		r.Kind = KindCorrection
		r.Confidence = defaultConfidence
		out = append(out, r)
	}
	for _, r := range defaultOptimizations {
		r.Kind = KindOptimization
		r.Confidence = defaultConfidence
		out = append(out, r)
	}
	for _, r := range defaultTemplates {
		r.Kind = KindTemplate
		r.Confidence = defaultConfidence
		r.Code = strings.TrimLeft(r.Code, "\n")
		out = append(out, r)
	}
	return out
}

// Correction rules run in multiline mode over source whose string literals
// are masked. Each rule must be idempotent.
var defaultCorrections = []Record{
	{
		Name:        "parentheses_in_function_def",
		Pattern:     `^([ \t]*)simula[ \t]+(\w+)[ \t]*\([ \t]*([^)\n]*?)[ \t]*\)`,
		Replacement: `$1simula $2 $3`,
		Explanation: "In GZ, function declarations don't use parentheses",
	},
	{
		Name:        "commas_in_function_def",
		Pattern:     `(?<=^[ \t]*simula\b[^\n]*?)[ \t]*,[ \t]*`,
		Replacement: ` `,
		Explanation: "In GZ, function parameters are separated by spaces",
	},
	{
		Name:        "colon_after_block_header",
		Pattern:     `^([ \t]*(?:simula|kung|kundi|habang|para)\b[^\n]*?)(?:[ \t]*:)+[ \t]*$`,
		Replacement: `$1`,
		Explanation: "In GZ, block headers don't end with a colon",
	},
	{
		Name:        "parentheses_in_function_call",
		Pattern:     `^([ \t]*)sulat[ \t]*\(([^()\n]*)\)[ \t]*$`,
		Replacement: `$1sulat $2`,
		Explanation: "In GZ, function calls don't use parentheses",
	},
	{
		Name:        "parentheses_in_conditional",
		Pattern:     `^([ \t]*)(kung|habang|kundi kung)[ \t]*\(([^()\n]*)\)[ \t]*$`,
		Replacement: `$1$2 $3`,
		Explanation: "In GZ, conditionals don't use parentheses",
	},
	{
		Name:        "c_style_for_loop",
		Pattern:     `^([ \t]*)para[ \t]*\([ \t]*(\w+)[ \t]*=[ \t]*([^;\n]+?)[ \t]*;[ \t]*\2[ \t]*<=[ \t]*([^;\n]+?)[ \t]*;[ \t]*\2[ \t]*(?:\+\+|\+=[ \t]*1)[ \t]*\)[ \t]*$`,
		Replacement: `$1para $2 $3 $4`,
		Explanation: "In GZ, for loops use 'para variable start end' syntax",
	},
	{
		Name:        "c_style_for_loop_exclusive",
		Pattern:     `^([ \t]*)para[ \t]*\([ \t]*(\w+)[ \t]*=[ \t]*([^;\n]+?)[ \t]*;[ \t]*\2[ \t]*<[ \t]*([^;\n=]+?)[ \t]*;[ \t]*\2[ \t]*(?:\+\+|\+=[ \t]*1)[ \t]*\)[ \t]*$`,
		Replacement: `$1para $2 $3 $4 - 1`,
		Explanation: "In GZ, for loops use 'para variable start end' syntax with an inclusive end",
	},
	{
		Name:        "semicolons",
		Pattern:     `(?:[ \t]*;)+[ \t]*$`,
		Replacement: ``,
		Explanation: "In GZ, statements don't end with semicolons",
	},
	{
		Name:        "brace_after_block_header",
		Pattern:     `^([ \t]*(?:simula|kung|kundi|habang|para)\b[^\n{]*?)[ \t]*\{[ \t]*$`,
		Replacement: `$1`,
		Explanation: "In GZ, blocks are defined by indentation, not braces",
	},
	{
		Name:        "brace_before_else",
		Pattern:     `^([ \t]*)\}[ \t]*kundi\b`,
		Replacement: `$1kundi`,
		Explanation: "In GZ, blocks are defined by indentation, not braces",
	},
	{
		Name:        "closing_brace",
		Pattern:     `^[ \t]*\}[ \t]*(?:\n|$)`,
		Replacement: ``,
		Explanation: "In GZ, blocks are defined by indentation, not braces",
	},
	{
		Name:        "trailing_whitespace",
		Pattern:     `[ \t]+$`,
		Replacement: ``,
		Explanation: "Trailing whitespace is removed",
	},
}

// Optimization rules run line by line. A rewrite is kept only when the
// rewritten line parses to an equivalent program.
var defaultOptimizations = []Record{
	{
		Name:        "compound_assignment",
		Pattern:     `^([ \t]*)([A-Za-z_]\w*)[ \t]*=[ \t]*\2[ \t]*\+[ \t]*(.+?)[ \t]*$`,
		Replacement: `$1$2 += $3`,
		Explanation: "Use compound assignment for increment",
		Level:       1,
	},
	{
		Name:        "compound_subtraction",
		Pattern:     `^([ \t]*)([A-Za-z_]\w*)[ \t]*=[ \t]*\2[ \t]*-[ \t]*(.+?)[ \t]*$`,
		Replacement: `$1$2 -= $3`,
		Explanation: "Use compound assignment for decrement",
		Level:       1,
	},
	{
		Name:        "boolean_simplification",
		Pattern:     `^([ \t]*)(kung|habang|kundi kung)[ \t]+(.+?)[ \t]*==[ \t]*tama[ \t]*$`,
		Replacement: `$1$2 $3`,
		Explanation: "Simplify boolean comparison",
		Level:       1,
	},
	{
		Name:        "compound_multiplication",
		Pattern:     `^([ \t]*)([A-Za-z_]\w*)[ \t]*=[ \t]*\2[ \t]*\*[ \t]*(.+?)[ \t]*$`,
		Replacement: `$1$2 *= $3`,
		Explanation: "Use compound assignment for scaling",
		Level:       2,
	},
	{
		Name:        "compound_division",
		Pattern:     `^([ \t]*)([A-Za-z_]\w*)[ \t]*=[ \t]*\2[ \t]*/[ \t]*(.+?)[ \t]*$`,
		Replacement: `$1$2 /= $3`,
		Explanation: "Use compound assignment for division",
		Level:       2,
	},
	{
		Name:        "loop_range",
		Pattern:     `^([ \t]*)para[ \t]+(\w+)[ \t]*=[ \t]*(-?\w+)[ \t]+hanggang[ \t]+(-?\w+)[ \t]*$`,
		Replacement: `$1para $2 $3 $4`,
		Explanation: "Use simplified loop syntax",
		Level:       2,
	},
}

var defaultTemplates = []Record{
	{
		Name:        "hello_world",
		Description: "Print Hello, World! from main",
		Code: `
simula main
    sulat "Hello, World!"
    balik 0
`,
	},
	{
		Name:        "factorial",
		Description: "Recursive factorial function printing the factorials of 1 to 5",
		Code: `
simula factorial n
    kung n <= 1
        balik 1
    balik n * factorial(n-1)

simula main
    para i 1 5
        sulat i, "! =", factorial(i)
    balik 0
`,
	},
	{
		Name:        "average",
		Description: "Calculate the average of three numbers",
		Code: `
simula calculate_average a b c
    sum = a + b + c
    average = sum / 3
    balik average

simula main
    num1 = 10
    num2 = 20
    num3 = 30

    avg = calculate_average(num1, num2, num3)

    sulat "The average of", num1, ",", num2, "and", num3, "is", avg
    balik 0
`,
	},
}
