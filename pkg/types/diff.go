package types

// ChangeKind classifies one page in a change-detection report.
type ChangeKind string

const (
	// Shared.
	ChangeUnchanged ChangeKind = "unchanged"

	// Local check.
	ChangeModified     ChangeKind = "modified"
	ChangeMissing      ChangeKind = "missing"
	ChangeNewLocalFile ChangeKind = "new_local_file"

	// Remote check.
	ChangeChanged ChangeKind = "changed"
	ChangeNew     ChangeKind = "new"
	ChangeRemoved ChangeKind = "removed"
)

// Change is the classification of a single page, keyed by file path.
type Change struct {
	FilePath string
	URL      string
	Kind     ChangeKind
	Reason   string
}

// Diff maps file-path keys to their classification.
type Diff map[string]Change

// Counts tallies classifications by kind.
func (d Diff) Counts() map[ChangeKind]int {
	counts := make(map[ChangeKind]int, len(d))
	for _, c := range d {
		counts[c.Kind]++
	}
	return counts
}

// Dirty reports whether the diff contains anything other than unchanged pages.
func (d Diff) Dirty() bool {
	for _, c := range d {
		if c.Kind != ChangeUnchanged {
			return true
		}
	}
	return false
}

// Verdict summarises a crawl run.
type Verdict string

const (
	VerdictSuccess Verdict = "success"
	VerdictPartial Verdict = "partial"
	VerdictFailure Verdict = "failure"
)

// RunSummary aggregates the outcome of a crawl over a result set.
type RunSummary struct {
	Verdict Verdict
	Crawled int
	Failed  int
}

// Summarize computes the run verdict from a scheduler result set.
func Summarize(results []PageResult) RunSummary {
	sum := RunSummary{Verdict: VerdictSuccess}
	for _, r := range results {
		if r.OK() {
			sum.Crawled++
		} else {
			sum.Failed++
		}
	}
	if sum.Failed > 0 {
		sum.Verdict = VerdictPartial
	}
	if sum.Crawled == 0 && sum.Failed > 0 {
		sum.Verdict = VerdictFailure
	}
	return sum
}
