package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelOptions configures NewOTelHook, mirroring
// rocketbitz-libfabric-go/client.OTelMetricsOptions.
type OTelOptions struct {
	MeterProvider          metric.MeterProvider
	Meter                  metric.Meter
	InstrumentationName    string
	InstrumentationVersion string
}

var _ Hook = (*OTelHook)(nil)

// OTelHook implements Hook using OpenTelemetry counter instruments.
type OTelHook struct {
	submitOK    metric.Int64Counter
	submitError metric.Int64Counter
	mprRetry    metric.Int64Counter
	tagFallback metric.Int64Counter
}

// NewOTelHook constructs a Hook that emits OpenTelemetry counter
// measurements.
func NewOTelHook(opts OTelOptions) (*OTelHook, error) {
	meter := opts.Meter
	if meter == nil {
		provider := opts.MeterProvider
		if provider == nil {
			provider = otel.GetMeterProvider()
		}
		name := opts.InstrumentationName
		if name == "" {
			name = "github.com/codeconstruct/nvme-mi"
		}
		meter = provider.Meter(name, metric.WithInstrumentationVersion(opts.InstrumentationVersion))
	}

	submitOK, err := meter.Int64Counter("nvme_mi.submit.ok")
	if err != nil {
		return nil, err
	}
	submitError, err := meter.Int64Counter("nvme_mi.submit.errors")
	if err != nil {
		return nil, err
	}
	mprRetry, err := meter.Int64Counter("nvme_mi.mpr.retries")
	if err != nil {
		return nil, err
	}
	tagFallback, err := meter.Int64Counter("nvme_mi.tag_alloc.fallback")
	if err != nil {
		return nil, err
	}

	return &OTelHook{
		submitOK:    submitOK,
		submitError: submitError,
		mprRetry:    mprRetry,
		tagFallback: tagFallback,
	}, nil
}

func (o *OTelHook) SubmitOK() {
	o.submitOK.Add(context.Background(), 1)
}

func (o *OTelHook) SubmitError(kind string) {
	o.submitError.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (o *OTelHook) MPRRetry() {
	o.mprRetry.Add(context.Background(), 1)
}

func (o *OTelHook) TagAllocFallback() {
	o.tagFallback.Add(context.Background(), 1)
}
