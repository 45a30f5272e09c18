package constants

// RunStatus is the terminal status of a processing run.
type RunStatus string

const (
	RunStatusSucceeded RunStatus = "SUCCEEDED" // every stage clean
	RunStatusPartial   RunStatus = "PARTIAL"   // output emitted, some pages/labels/rows degraded
	RunStatusFailed    RunStatus = "FAILED"    // fatal, no template emitted
)

// PageStatus is the per-page extraction outcome surfaced in the run report.
type PageStatus string

const (
	PageStatusExtracted PageStatus = "EXTRACTED" // record produced
	PageStatusNoData    PageStatus = "NO_DATA"   // model definitively found nothing extractable
	PageStatusFailed    PageStatus = "FAILED"    // retries exhausted or canceled
	PageStatusSkipped   PageStatus = "SKIPPED"   // unclassified, never sent to the model
)
