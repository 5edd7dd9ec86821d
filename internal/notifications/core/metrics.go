package core

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/ToFood/tofood-zip/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

var _ Metrics = (*CloudWatchMetrics)(nil)

// CloudWatchMetrics implements Metrics by emitting to AWS CloudWatch.
//
// Metrics emitted:
//   - DispatchAttempt: Dims {Channel, Result} on every dispatch outcome
//   - DispatchLatency: Dims {Channel}, broker send duration
//   - QueueLag: no dims, time between enqueue and processing start
//   - ClaimsReleased: no dims, rows handed back by the reaper
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// NewCloudWatchMetrics creates a CloudWatchMetrics publishing to namespace,
// or to types.MetricNamespace when namespace is empty.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	return &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

func (m *CloudWatchMetrics) RecordDispatch(ctx context.Context, channel types.ChannelType, outcome Outcome) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricDispatchAttempt),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimChannel), Value: aws.String(channel.String())},
			{Name: aws.String(types.DimResult), Value: aws.String(string(outcome))},
		},
	})
}

// RecordLatency is recorded in milliseconds.
func (m *CloudWatchMetrics) RecordLatency(ctx context.Context, channel types.ChannelType, duration time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricDispatchLatency),
		Value:      aws.Float64(float64(duration.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimChannel), Value: aws.String(channel.String())},
		},
	})
}

func (m *CloudWatchMetrics) RecordQueueLag(ctx context.Context, lag time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricQueueLag),
		Value:      aws.Float64(float64(lag.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
	})
}

func (m *CloudWatchMetrics) RecordClaimsReleased(ctx context.Context, count int) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricClaimsReleased),
		Value:      aws.Float64(float64(count)),
		Unit:       cwtypes.StandardUnitCount,
	})
}

func (m *CloudWatchMetrics) put(ctx context.Context, datum cwtypes.MetricDatum) {
	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	})
	if err != nil {
		m.logger.Error("failed to record metric",
			"metric", aws.ToString(datum.MetricName),
			"error", err.Error(),
		)
	}
}

// NoopMetrics discards everything. Used in local mode and by default.
type NoopMetrics struct{}

func (NoopMetrics) RecordDispatch(context.Context, types.ChannelType, Outcome)      {}
func (NoopMetrics) RecordLatency(context.Context, types.ChannelType, time.Duration) {}
func (NoopMetrics) RecordQueueLag(context.Context, time.Duration)                   {}
func (NoopMetrics) RecordClaimsReleased(context.Context, int)                       {}
