package constants

// Stage names a pipeline stage. Stable values, stored in the run ledger.
type Stage string

const (
	StageFetchLinks     Stage = "FETCH_LINKS"
	StageFetchDocuments Stage = "FETCH_DOCUMENTS"
	StageExtractText    Stage = "EXTRACT_TEXT"
	StageExtractFields  Stage = "EXTRACT_FIELDS"
	StageAggregate      Stage = "AGGREGATE"
)

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusHalted    RunStatus = "HALTED" // no links, nothing to do
	RunStatusFailed    RunStatus = "FAILED"
)
