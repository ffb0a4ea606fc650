package annotate

import (
	"bufio"
	"context"
	"io"
	"reflect"
	"strings"

	"github.com/biocohort/cnv/cnv"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// IndividualStats is one row of the per-individual aggregate table: the
// deletion and duplication summaries of a single individual side by side.
// Lengths sum the bases of the records carrying the named flag combination;
// gene columns are LabelSep-joined sorted unions, empty when no record
// contributed.
type IndividualStats struct {
	ID string `tsv:"ID"`

	DelCount                  int64   `tsv:"DEL_COUNT"`
	DelAvgQual                float64 `tsv:"DEL_AVG_QUAL"`
	DelAvgCopyNumber          float64 `tsv:"DEL_AVG_COPY_NUMBER"`
	DelLongCount              int64   `tsv:"DEL_LONG_COUNT"`
	DelLongLen                int64   `tsv:"DEL_LONG_LEN"`
	DelRareCount              int64   `tsv:"DEL_RARE_COUNT"`
	DelRareLen                int64   `tsv:"DEL_RARE_LEN"`
	DelLongRareCount          int64   `tsv:"DEL_LONG_RARE_COUNT"`
	DelLongRareLen            int64   `tsv:"DEL_LONG_RARE_LEN"`
	DelBrainRareCount         int64   `tsv:"DEL_BRAIN_RARE_COUNT"`
	DelBrainRareLen           int64   `tsv:"DEL_BRAIN_RARE_LEN"`
	DelOnlyBrainRareCount     int64   `tsv:"DEL_ONLY_BRAIN_RARE_COUNT"`
	DelOnlyBrainRareLen       int64   `tsv:"DEL_ONLY_BRAIN_RARE_LEN"`
	DelLongBrainRareCount     int64   `tsv:"DEL_LONG_BRAIN_RARE_COUNT"`
	DelLongBrainRareLen       int64   `tsv:"DEL_LONG_BRAIN_RARE_LEN"`
	DelLongOnlyBrainRareCount int64   `tsv:"DEL_LONG_ONLY_BRAIN_RARE_COUNT"`
	DelLongOnlyBrainRareLen   int64   `tsv:"DEL_LONG_ONLY_BRAIN_RARE_LEN"`
	DelGenes                  string  `tsv:"DEL_GENES"`
	DelBrainGenes             string  `tsv:"DEL_BRAIN_GENES"`
	DelOnlyBrainGenes         string  `tsv:"DEL_ONLY_BRAIN_GENES"`
	DelDosageGenes            string  `tsv:"DEL_DOSAGE_GENES"`

	DupCount                  int64   `tsv:"DUP_COUNT"`
	DupAvgQual                float64 `tsv:"DUP_AVG_QUAL"`
	DupAvgCopyNumber          float64 `tsv:"DUP_AVG_COPY_NUMBER"`
	DupLongCount              int64   `tsv:"DUP_LONG_COUNT"`
	DupLongLen                int64   `tsv:"DUP_LONG_LEN"`
	DupRareCount              int64   `tsv:"DUP_RARE_COUNT"`
	DupRareLen                int64   `tsv:"DUP_RARE_LEN"`
	DupLongRareCount          int64   `tsv:"DUP_LONG_RARE_COUNT"`
	DupLongRareLen            int64   `tsv:"DUP_LONG_RARE_LEN"`
	DupBrainRareCount         int64   `tsv:"DUP_BRAIN_RARE_COUNT"`
	DupBrainRareLen           int64   `tsv:"DUP_BRAIN_RARE_LEN"`
	DupOnlyBrainRareCount     int64   `tsv:"DUP_ONLY_BRAIN_RARE_COUNT"`
	DupOnlyBrainRareLen       int64   `tsv:"DUP_ONLY_BRAIN_RARE_LEN"`
	DupLongBrainRareCount     int64   `tsv:"DUP_LONG_BRAIN_RARE_COUNT"`
	DupLongBrainRareLen       int64   `tsv:"DUP_LONG_BRAIN_RARE_LEN"`
	DupLongOnlyBrainRareCount int64   `tsv:"DUP_LONG_ONLY_BRAIN_RARE_COUNT"`
	DupLongOnlyBrainRareLen   int64   `tsv:"DUP_LONG_ONLY_BRAIN_RARE_LEN"`
	DupGenes                  string  `tsv:"DUP_GENES"`
	DupBrainGenes             string  `tsv:"DUP_BRAIN_GENES"`
	DupOnlyBrainGenes         string  `tsv:"DUP_ONLY_BRAIN_GENES"`
	DupDosageGenes            string  `tsv:"DUP_DOSAGE_GENES"`
}

// StatsColumns lists the aggregate TSV columns in schema order.
var StatsColumns = statsColumns()

func statsColumns() []string {
	t := reflect.TypeOf(IndividualStats{})
	out := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("tsv")
		if tag == "" {
			log.Panicf("annotate: field %s lacks a tsv tag", t.Field(i).Name)
		}
		out = append(out, tag)
	}
	return out
}

const (
	comboLong = iota
	comboRare
	comboLongRare
	comboBrainRare
	comboOnlyBrainRare
	comboLongBrainRare
	comboLongOnlyBrainRare
	numCombos
)

// typeAccum accumulates one individual's records of a single variant type.
type typeAccum struct {
	count   int64
	qualSum float64
	cnSum   int64
	cnCount int64 // records reporting a copy number
	counts  [numCombos]int64
	lens    [numCombos]int64

	genes, brain, onlyBrain, dosage map[string]bool
}

func (a *typeAccum) add(r *cnv.Record) {
	a.count++
	a.qualSum += r.Qual
	if r.CopyNumber >= 0 {
		a.cnSum += r.CopyNumber
		a.cnCount++
	}
	brain := SplitLabels(r.BrainGenes)
	hasBrain := len(brain) > 0
	on := [numCombos]bool{
		comboLong:              r.IsLong,
		comboRare:              r.IsRare,
		comboLongRare:          r.IsLong && r.IsRare,
		comboBrainRare:         r.IsRare && hasBrain,
		comboOnlyBrainRare:     r.IsRare && r.OnlyBrain,
		comboLongBrainRare:     r.IsLong && r.IsRare && hasBrain,
		comboLongOnlyBrainRare: r.IsLong && r.IsRare && r.OnlyBrain,
	}
	for c, set := range on {
		if set {
			a.counts[c]++
			a.lens[c] += r.Len()
		}
	}
	addAll(&a.genes, SplitLabels(r.Genes))
	addAll(&a.brain, brain)
	if r.OnlyBrain {
		addAll(&a.onlyBrain, brain)
	}
	addAll(&a.dosage, SplitLabels(r.DosageGenes))
}

func addAll(set *map[string]bool, labels []string) {
	if len(labels) == 0 {
		return
	}
	if *set == nil {
		*set = map[string]bool{}
	}
	for _, l := range labels {
		(*set)[l] = true
	}
}

func (a *typeAccum) avgQual() float64 {
	if a.count == 0 {
		return 0
	}
	return a.qualSum / float64(a.count)
}

func (a *typeAccum) avgCopyNumber() float64 {
	if a.cnCount == 0 {
		return 0
	}
	return float64(a.cnSum) / float64(a.cnCount)
}

// geneCol renders a gene union as an aggregate column.  Unlike per-record
// annotation columns, an empty union stays empty.
func geneCol(set map[string]bool) string {
	return strings.Join(sortedUnion(set), cnv.LabelSep)
}

func (a *typeAccum) fillDel(s *IndividualStats) {
	s.DelCount = a.count
	s.DelAvgQual = a.avgQual()
	s.DelAvgCopyNumber = a.avgCopyNumber()
	s.DelLongCount = a.counts[comboLong]
	s.DelLongLen = a.lens[comboLong]
	s.DelRareCount = a.counts[comboRare]
	s.DelRareLen = a.lens[comboRare]
	s.DelLongRareCount = a.counts[comboLongRare]
	s.DelLongRareLen = a.lens[comboLongRare]
	s.DelBrainRareCount = a.counts[comboBrainRare]
	s.DelBrainRareLen = a.lens[comboBrainRare]
	s.DelOnlyBrainRareCount = a.counts[comboOnlyBrainRare]
	s.DelOnlyBrainRareLen = a.lens[comboOnlyBrainRare]
	s.DelLongBrainRareCount = a.counts[comboLongBrainRare]
	s.DelLongBrainRareLen = a.lens[comboLongBrainRare]
	s.DelLongOnlyBrainRareCount = a.counts[comboLongOnlyBrainRare]
	s.DelLongOnlyBrainRareLen = a.lens[comboLongOnlyBrainRare]
	s.DelGenes = geneCol(a.genes)
	s.DelBrainGenes = geneCol(a.brain)
	s.DelOnlyBrainGenes = geneCol(a.onlyBrain)
	s.DelDosageGenes = geneCol(a.dosage)
}

func (a *typeAccum) fillDup(s *IndividualStats) {
	s.DupCount = a.count
	s.DupAvgQual = a.avgQual()
	s.DupAvgCopyNumber = a.avgCopyNumber()
	s.DupLongCount = a.counts[comboLong]
	s.DupLongLen = a.lens[comboLong]
	s.DupRareCount = a.counts[comboRare]
	s.DupRareLen = a.lens[comboRare]
	s.DupLongRareCount = a.counts[comboLongRare]
	s.DupLongRareLen = a.lens[comboLongRare]
	s.DupBrainRareCount = a.counts[comboBrainRare]
	s.DupBrainRareLen = a.lens[comboBrainRare]
	s.DupOnlyBrainRareCount = a.counts[comboOnlyBrainRare]
	s.DupOnlyBrainRareLen = a.lens[comboOnlyBrainRare]
	s.DupLongBrainRareCount = a.counts[comboLongBrainRare]
	s.DupLongBrainRareLen = a.lens[comboLongBrainRare]
	s.DupLongOnlyBrainRareCount = a.counts[comboLongOnlyBrainRare]
	s.DupLongOnlyBrainRareLen = a.lens[comboLongOnlyBrainRare]
	s.DupGenes = geneCol(a.genes)
	s.DupBrainGenes = geneCol(a.brain)
	s.DupOnlyBrainGenes = geneCol(a.onlyBrain)
	s.DupDosageGenes = geneCol(a.dosage)
}

// Aggregate groups records by individual and variant type and summarizes
// them, one output row per roster individual in roster order.  Individuals
// without records keep zero counts and empty gene columns; records whose ID
// is outside the roster are dropped.  Roster IDs are expected unique, which
// ReadClinical enforces for rosters taken from the clinical table.
func Aggregate(recs []cnv.Record, roster []string) []IndividualStats {
	type indAccum struct{ del, dup typeAccum }
	known := make(map[string]*indAccum, len(roster))
	for _, id := range roster {
		if known[id] == nil {
			known[id] = &indAccum{}
		}
	}
	nOutside := 0
	for i := range recs {
		acc := known[recs[i].ID]
		if acc == nil {
			nOutside++
			continue
		}
		switch recs[i].Type {
		case cnv.DEL:
			acc.del.add(&recs[i])
		case cnv.DUP:
			acc.dup.add(&recs[i])
		}
	}
	out := make([]IndividualStats, 0, len(roster))
	for _, id := range roster {
		s := IndividualStats{ID: id}
		known[id].del.fillDel(&s)
		known[id].dup.fillDup(&s)
		out = append(out, s)
	}
	log.Printf("Stats: aggregated %d records into %d individuals (%d outside the roster)",
		len(recs)-nOutside, len(out), nOutside)
	return out
}

// ReadStats parses an aggregate artifact from r.  path is used in
// diagnostics only.  The header row must match StatsColumns exactly.
func ReadStats(r io.Reader, path string) ([]IndividualStats, error) {
	br := bufio.NewReader(r)
	header, err := br.ReadString('\n')
	if err == io.EOF && header == "" {
		return nil, &cnv.SchemaMismatchError{Path: path, Want: StatsColumns, Missing: StatsColumns}
	}
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, path)
	}
	header = strings.TrimRight(header, "\r\n")
	if err := cnv.CheckHeader(path, strings.Split(header, "\t"), StatsColumns); err != nil {
		return nil, err
	}

	tr := tsv.NewReader(br)
	var stats []IndividualStats
	for {
		var s IndividualStats
		if err := tr.Read(&s); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrapf(err, "%s: row %d", path, len(stats)+2)
		}
		stats = append(stats, s)
	}
	return stats, nil
}

// ReadStatsPath opens path and parses it with ReadStats.
func ReadStatsPath(ctx context.Context, path string) (stats []IndividualStats, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	return ReadStats(in.Reader(ctx), path)
}

// WriteStats writes the aggregate artifact: a header row from the struct
// tags followed by one row per individual.
func WriteStats(w io.Writer, stats []IndividualStats) error {
	if len(stats) == 0 {
		_, err := io.WriteString(w, strings.Join(StatsColumns, "\t")+"\n")
		return err
	}
	tw := tsv.NewRowWriter(w)
	for i := range stats {
		if err := tw.Write(&stats[i]); err != nil {
			return err
		}
	}
	return tw.Flush()
}
