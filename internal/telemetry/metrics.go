// Package telemetry publishes operational metrics to AWS CloudWatch.
// Emission is fire-and-forget: a metrics failure is logged and never
// propagated into the request path.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"tokenpoint/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Collector emits counters and latency metrics under the platform namespace.
type Collector struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCollector creates a Collector publishing to the platform namespace.
func NewCollector(client CloudWatchClient, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		client:    client,
		namespace: types.MetricNamespace,
		logger:    logger,
	}
}

// Count emits a count-of-one metric with the given dimensions.
func (c *Collector) Count(ctx context.Context, name string, dims map[string]string) {
	c.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: toDimensions(dims),
	})
}

// Duration emits a latency metric in milliseconds.
func (c *Collector) Duration(ctx context.Context, name string, d time.Duration, dims map[string]string) {
	c.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(float64(d.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: toDimensions(dims),
	})
}

func (c *Collector) put(ctx context.Context, datum cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(c.namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	}
	if _, err := c.client.PutMetricData(ctx, input); err != nil {
		c.logger.Error("failed to publish metric",
			slog.String("metric", aws.ToString(datum.MetricName)),
			slog.String("error", err.Error()),
		)
	}
}

func toDimensions(dims map[string]string) []cwtypes.Dimension {
	if len(dims) == 0 {
		return nil
	}
	out := make([]cwtypes.Dimension, 0, len(dims))
	for k, v := range dims {
		out = append(out, cwtypes.Dimension{
			Name:  aws.String(k),
			Value: aws.String(v),
		})
	}
	return out
}
