package metadata

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed page_schema.cue
var schemaSource string

var (
	schemaOnce sync.Once
	schemaVal  cue.Value
	schemaErr  error
)

func pageSchema() (cue.Value, error) {
	schemaOnce.Do(func() {
		ctx := cuecontext.New()
		v := ctx.CompileString(schemaSource, cue.Filename("page_schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compiling page schema: %w", err)
			return
		}
		schemaVal = v.LookupPath(cue.ParsePath("#Page"))
		if err := schemaVal.Err(); err != nil {
			schemaErr = fmt.Errorf("looking up #Page: %w", err)
		}
	})
	return schemaVal, schemaErr
}

// Validate checks a raw page document against the embedded CUE schema.
// Structural problems (unknown step kinds, bad selected flags, wrong types)
// fail here, before decode, instead of surfacing later as nil lookups
// mid-action.
func Validate(data []byte) error {
	schema, err := pageSchema()
	if err != nil {
		return err
	}
	doc := schema.Context().CompileBytes(data, cue.Filename("page.json"))
	if err := doc.Err(); err != nil {
		return fmt.Errorf("parsing page document: %w", err)
	}
	unified := schema.Unify(doc)
	if err := unified.Validate(cue.Final(), cue.Concrete(true)); err != nil {
		return fmt.Errorf("page document invalid: %w", err)
	}
	return nil
}
