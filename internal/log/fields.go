// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldTraceID   = "trace_id"
	FieldSessionID = "session_id"
	FieldUser      = "user"
	FieldChannel   = "channel"

	// Workflow fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldStage     = "stage"
	FieldReason    = "reason"

	// Service / job fields
	FieldService     = "service"
	FieldAction      = "action"
	FieldJenkinsJob  = "jenkins_job"
	FieldBuildNumber = "build_number"
	FieldQueueURL    = "queue_url"
	FieldStatus      = "status"
)
