package constants

// Pipeline plumbing.

const (
	ChanSize                     = 20000
	StatsCaptureFrequencySeconds = 5
	EnvVarPrefix                 = "MP" // prefix for environment variable overrides
)

// Canonical formats used by the staging and mart layers.
// DateKeyFormat renders a calendar day as the integer style key used on the fact table.
const (
	DateFormat            = "2006-01-02"
	DateKeyFormat         = "20060102"
	TimeFormatSecondsTZ   = "20060102T150405-0700" // compatible with file names and warehouse loads
	TimeFormatYearSeconds = "20060102T150405"      // used for human readable file names
)

// Provenance fields added to every row by the raw landing layer.
// SchemaVersion stamps the landing contract version; bump it when a source
// schema change alters the landed field set.
const (
	FieldExtractedAt   = "_extracted_at"
	FieldBatchedAt     = "_batched_at"
	FieldSchemaVersion = "_schema_version"
	SchemaVersion      = "1"
)

// Source-type discriminators for contact rows. The discriminator is required
// on every normalized contact row and is never null.
const (
	ContactSourceFile = "csv_file"
	ContactSourceApi  = "api"
)

// Review status values as replicated from the OLTP source. Transitions are
// externally driven; this pipeline only reads them.
const (
	ReviewStatusPending   = "pending"
	ReviewStatusCompleted = "completed"
	ReviewStatusOverdue   = "overdue"
)

// Case status values as replicated from the OLTP source.
const (
	CaseStatusOpen          = "open"
	CaseStatusClosed        = "closed"
	CaseStatusPendingReview = "pending_review"
)

// Provider types recognised by the staging layer.
const (
	ProviderTypeNP = "NP"
	ProviderTypePA = "PA"
)

// Workload classification buckets and their thresholds.
// The rules are ordered and first match wins:
//
//	overdue > WorkloadOverdueCritical -> critical
//	overdue > WorkloadOverdueWarning  -> warning
//	pending > WorkloadPendingHigh     -> high
//	otherwise                         -> normal
//
// Thresholds are fixed policy, not configuration.
const (
	WorkloadStatusCritical = "critical"
	WorkloadStatusWarning  = "warning"
	WorkloadStatusHigh     = "high"
	WorkloadStatusNormal   = "normal"

	WorkloadOverdueCritical = 5
	WorkloadOverdueWarning  = 2
	WorkloadPendingHigh     = 10
)

// ReviewFrequencyDaysDefault applies when a licensing state row arrives
// without a review frequency.
const ReviewFrequencyDaysDefault = 30
