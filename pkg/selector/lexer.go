package selector

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// SelectorLexer tokenizes device selectors such as "1:5" or
// "serial=066EFF555051897267233656, 2:7".
var SelectorLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[\s]+`},

	// must come before Word
	{Name: "KwSerial", Pattern: `(?i)\bserial\b`},

	{Name: "Colon", Pattern: `:`},
	{Name: "Assign", Pattern: `=`},
	{Name: "Comma", Pattern: `,`},

	// bus and address numbers, serial hex text
	{Name: "Word", Pattern: `[0-9A-Za-z]+`},
})
