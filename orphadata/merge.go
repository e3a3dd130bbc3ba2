package orphadata

import (
	"strings"

	"github.com/c360studio/orphasnap/codeset"
)

// Separator joins multi-valued fields of a merged record.
const Separator = "; "

// Header is the column order of merged records.
var Header = []string{"OrphaCode", "Definition", "Phenotypes", "Prevalence", "OMIM"}

// Record is one merged output row.
type Record struct {
	Code       string
	Definition string
	Phenotypes string
	Prevalence string
	OMIM       string
}

// Values returns the fields in Header order.
func (r Record) Values() []string {
	return []string{r.Code, r.Definition, r.Phenotypes, r.Prevalence, r.OMIM}
}

// Merge joins the extracted maps into one record per code, in code set
// order. A code missing from a map yields an empty field; absence is never
// an error. A nil extraction merges as if every map were empty.
func Merge(codes *codeset.Set, x *Extraction) []Record {
	if x == nil {
		x = NewExtraction("")
	}
	records := make([]Record, 0, codes.Len())
	for _, code := range codes.Codes() {
		records = append(records, Record{
			Code:       code,
			Definition: x.Definitions.Get(code),
			Phenotypes: strings.Join(x.Phenotypes.Get(code), Separator),
			Prevalence: strings.Join(x.Prevalence.Get(code), Separator),
			OMIM:       strings.Join(x.OMIM.Get(code), Separator),
		})
	}
	return records
}
