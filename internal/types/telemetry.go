package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricDispatchAttempt = "DispatchAttempt"
	MetricDispatchLatency = "DispatchLatency"
	MetricQueueLag        = "QueueLag"
	MetricClaimsReleased  = "ClaimsReleased"

	// Dimension Keys
	DimChannel = "Channel"
	DimResult  = "Result"

	// Default namespace, overridable with METRIC_NAMESPACE.
	MetricNamespace = "ToFood/Notifications"
)
