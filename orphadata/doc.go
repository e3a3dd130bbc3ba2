// Package orphadata extracts per-disorder feeds from Orphadata XML exports
// and merges them into one row per OrphaCode.
//
// # Feeds
//
// Four feeds are read, keyed by the OrphaCode of each <Disorder>:
//
//   - definitions: the English "Definition" text section (product1)
//   - phenotypes: HPO associations of one frequency class (product4)
//   - prevalence: mean value, class and cited PMIDs (product9_prev)
//   - omim: external references whose source is OMIM (product1)
//
// # Scanning
//
// Scan streams a document and builds an in-memory tree for one top-level
// disorder at a time. Disorders whose code is not in the code set are
// skipped before any collector sees them. Documents declaring a non-UTF-8
// encoding (Orphadata ships ISO-8859-1) are transcoded on the fly.
//
// Queries over a disorder use compiled paths:
//
//	p := orphadata.MustCompilePath("HPOFrequency/Name[@lang='en']")
//	name, ok := p.FindText(assoc)
//
// # Merging
//
// Merge is a pure function of a code set and an Extraction. Every code yields
// exactly one Record; codes missing from a feed get empty fields, and list
// feeds are joined with "; ".
package orphadata
