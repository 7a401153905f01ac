package selector

// Selector is a comma separated list of match terms.
type Selector struct {
	Terms []*Term `( @@ ( Comma @@ )* )?`
}

// Term is one match condition.
type Term struct {
	Position *Position `  @@`
	Serial   *Serial   `| @@`
}

// Position selects a device by USB bus and address, e.g. 001:005.
type Position struct {
	Bus     string `@Word Colon`
	Address string `@Word`
}

// Serial selects a device by its serial number in hex text.
type Serial struct {
	Hex string `KwSerial Assign @Word`
}
