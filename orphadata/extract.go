package orphadata

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultTargetFrequency is the HPO frequency class kept by default.
const DefaultTargetFrequency = "Very frequent (99-80%)"

// Feed names one of the per-disorder data feeds.
type Feed string

// Feeds joined into a merged record.
const (
	FeedDefinitions Feed = "definitions"
	FeedPhenotypes  Feed = "phenotypes"
	FeedPrevalence  Feed = "prevalence"
	FeedOMIM        Feed = "omim"
)

// Feeds lists every feed in merge column order.
var Feeds = []Feed{FeedDefinitions, FeedPhenotypes, FeedPrevalence, FeedOMIM}

var (
	summaryInfoPath    = MustCompilePath("SummaryInformationList/SummaryInformation")
	textSectionPath    = MustCompilePath("TextSectionList/TextSection")
	sectionTypePath    = MustCompilePath("TextSectionType/Name[@lang='en']")
	contentsPath       = MustCompilePath("Contents")
	associationPath    = MustCompilePath("HPODisorderAssociationList/HPODisorderAssociation")
	frequencyPath      = MustCompilePath("HPOFrequency/Name[@lang='en']")
	hpoTermPath        = MustCompilePath("HPO/HPOTerm")
	hpoIDPath          = MustCompilePath("HPO/HPOId")
	prevalencePath     = MustCompilePath("PrevalenceList/Prevalence")
	meanValuePath      = MustCompilePath("ValMoy")
	prevalenceClass    = MustCompilePath("PrevalenceClass/Name[@lang='en']")
	prevalenceSource   = MustCompilePath("Source")
	externalRefPath    = MustCompilePath("ExternalReferenceList/ExternalReference")
	externalSourcePath = MustCompilePath("Source")
	externalRefIDPath  = MustCompilePath("Reference")
)

// pmidPattern matches citations such as "12345678[PMID]".
var pmidPattern = regexp.MustCompile(`(\d+)\[PMID\]`)

// DefinitionMap maps a code to its English definition.
type DefinitionMap map[string]string

// Get returns the definition for code, or "" when absent.
func (m DefinitionMap) Get(code string) string {
	return m[code]
}

// ListMap maps a code to an ordered list of descriptors.
type ListMap map[string][]string

// Get returns the descriptors for code, or an empty list when absent.
func (m ListMap) Get(code string) []string {
	if v, ok := m[code]; ok {
		return v
	}
	return []string{}
}

// Definition returns the first non-empty English "Definition" text of a
// disorder. English summary blocks are scanned in document order; within a
// block the first Definition section with contents ends that block.
func Definition(disorder Element) string {
	for _, info := range summaryInfoPath.FindAll(disorder) {
		if lang, _ := info.Attr("lang"); lang != "en" {
			continue
		}
		definition := ""
		for _, section := range textSectionPath.FindAll(info) {
			name, ok := sectionTypePath.FindText(section)
			if !ok || name != "Definition" {
				continue
			}
			if contents := contentsPath.Text(section); contents != "" {
				definition = strings.TrimSpace(contents)
				break
			}
		}
		if definition != "" {
			return definition
		}
	}
	return ""
}

// Phenotypes returns "term (HPO id)" descriptors of the associations whose
// English frequency name equals frequency. Associations missing a term or id
// are skipped.
func Phenotypes(disorder Element, frequency string) []string {
	var out []string
	for _, assoc := range associationPath.FindAll(disorder) {
		if name, ok := frequencyPath.FindText(assoc); !ok || name != frequency {
			continue
		}
		term := hpoTermPath.Text(assoc)
		id := hpoIDPath.Text(assoc)
		if term == "" || id == "" {
			continue
		}
		out = append(out, fmt.Sprintf("%s (%s)", term, id))
	}
	return out
}

// Prevalences returns one descriptor per prevalence entry: the mean value,
// then " (<class>)" when a class is named, then " (PMID:<ids>)" when the
// source cites PubMed identifiers.
func Prevalences(disorder Element) []string {
	var out []string
	for _, prev := range prevalencePath.FindAll(disorder) {
		var b strings.Builder
		b.WriteString(meanValuePath.Text(prev))
		if class := prevalenceClass.Text(prev); class != "" {
			b.WriteString(" (" + class + ")")
		}
		if pmids := PMIDs(prevalenceSource.Text(prev)); len(pmids) > 0 {
			b.WriteString(" (PMID:" + strings.Join(pmids, ",") + ")")
		}
		out = append(out, b.String())
	}
	return out
}

// PMIDs extracts the identifiers of every "<digits>[PMID]" citation in text.
func PMIDs(text string) []string {
	matches := pmidPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m[1]
	}
	return ids
}

// OMIMReferences returns the references of external references sourced from OMIM.
func OMIMReferences(disorder Element) []string {
	var out []string
	for _, ref := range externalRefPath.FindAll(disorder) {
		if source, _ := externalSourcePath.FindText(ref); source != "OMIM" {
			continue
		}
		if id := externalRefIDPath.Text(ref); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// Extraction holds the four per-code maps of one run.
type Extraction struct {
	Definitions DefinitionMap
	Phenotypes  ListMap
	Prevalence  ListMap
	OMIM        ListMap

	// TargetFrequency filters phenotypes; empty means DefaultTargetFrequency.
	TargetFrequency string
}

// NewExtraction creates empty maps for the given phenotype frequency.
func NewExtraction(targetFrequency string) *Extraction {
	if targetFrequency == "" {
		targetFrequency = DefaultTargetFrequency
	}
	return &Extraction{
		Definitions:     DefinitionMap{},
		Phenotypes:      ListMap{},
		Prevalence:      ListMap{},
		OMIM:            ListMap{},
		TargetFrequency: targetFrequency,
	}
}

// Collector returns the collector that fills the map of feed.
func (x *Extraction) Collector(feed Feed) (Collector, error) {
	switch feed {
	case FeedDefinitions:
		return CollectorFunc(func(code string, d Element) {
			x.Definitions[code] = Definition(d)
		}), nil
	case FeedPhenotypes:
		return appendTo(x.Phenotypes, func(d Element) []string {
			return Phenotypes(d, x.TargetFrequency)
		}), nil
	case FeedPrevalence:
		return appendTo(x.Prevalence, Prevalences), nil
	case FeedOMIM:
		return appendTo(x.OMIM, OMIMReferences), nil
	default:
		return nil, fmt.Errorf("unknown feed %q", feed)
	}
}

// appendTo creates a key only once a disorder contributes a value.
func appendTo(m ListMap, extract func(Element) []string) Collector {
	return CollectorFunc(func(code string, d Element) {
		if items := extract(d); len(items) > 0 {
			m[code] = append(m[code], items...)
		}
	})
}
