package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"fxstory/config"
	"fxstory/logger"
)

type fakeCloudWatch struct {
	metricInputs    []*cloudwatch.PutMetricDataInput
	dashboardInputs []*cloudwatch.PutDashboardInput
	err             error
}

func (f *fakeCloudWatch) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.metricInputs = append(f.metricInputs, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func (f *fakeCloudWatch) PutDashboard(_ context.Context, in *cloudwatch.PutDashboardInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutDashboardOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.dashboardInputs = append(f.dashboardInputs, in)
	return &cloudwatch.PutDashboardOutput{}, nil
}

func TestPublishRunSendsOneBatch(t *testing.T) {
	fake := &fakeCloudWatch{}
	p := newPublisher(fake, "FXStoryTest", "eu-west-1", logger.Discard())

	run := Run{
		RowsLoaded:   5500,
		RowsCleaned:  5300,
		RowsInWindow: 5200,
		EraCounts:    map[string]int{"LULA": 2000, "FHC": 500},
		Artifacts:    3,
		Duration:     1500 * time.Millisecond,
	}
	if err := p.PublishRun(context.Background(), run); err != nil {
		t.Fatalf("PublishRun: %v", err)
	}
	if len(fake.metricInputs) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(fake.metricInputs))
	}
	in := fake.metricInputs[0]
	if aws.ToString(in.Namespace) != "FXStoryTest" {
		t.Fatalf("unexpected namespace: %s", aws.ToString(in.Namespace))
	}
	// five run metrics plus one per era, eras sorted by name
	if len(in.MetricData) != 7 {
		t.Fatalf("expected 7 datums, got %d", len(in.MetricData))
	}
	first := in.MetricData[0]
	if aws.ToString(first.MetricName) != "rows_loaded" || aws.ToFloat64(first.Value) != 5500 {
		t.Fatalf("unexpected first datum: %s=%v", aws.ToString(first.MetricName), aws.ToFloat64(first.Value))
	}
	if got := aws.ToFloat64(in.MetricData[4].Value); got != 1500 {
		t.Fatalf("unexpected duration: %v", got)
	}
	fhc := in.MetricData[5]
	if len(fhc.Dimensions) != 2 || aws.ToString(fhc.Dimensions[1].Value) != "FHC" {
		t.Fatalf("unexpected era dimensions: %+v", fhc.Dimensions)
	}
	if aws.ToFloat64(fhc.Value) != 500 {
		t.Fatalf("unexpected era value: %v", aws.ToFloat64(fhc.Value))
	}
}

func TestPublishRunWrapsErrors(t *testing.T) {
	p := newPublisher(&fakeCloudWatch{err: errors.New("throttled")}, "FXStory", "", logger.Discard())
	err := p.PublishRun(context.Background(), Run{})
	if err == nil || !strings.Contains(err.Error(), "throttled") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestDisabledPublisherIsNoop(t *testing.T) {
	cfg := config.Default()
	p := NewPublisher(context.Background(), cfg, logger.Discard())
	if p.Enabled() {
		t.Fatalf("publisher should be disabled by default")
	}
	if err := p.PublishRun(context.Background(), Run{RowsLoaded: 1}); err != nil {
		t.Fatalf("disabled publish returned %v", err)
	}
	if err := p.PutDashboard(context.Background(), "FXStory"); err != nil {
		t.Fatalf("disabled dashboard returned %v", err)
	}
}

func TestPutDashboardRewritesTemplate(t *testing.T) {
	fake := &fakeCloudWatch{}
	p := newPublisher(fake, "FXStoryTest", "sa-east-1", logger.Discard())
	if err := p.PutDashboard(context.Background(), "fx"); err != nil {
		t.Fatalf("PutDashboard: %v", err)
	}
	if len(fake.dashboardInputs) != 1 {
		t.Fatalf("expected one dashboard call")
	}
	body := aws.ToString(fake.dashboardInputs[0].DashboardBody)
	if !json.Valid([]byte(body)) {
		t.Fatalf("dashboard body is not valid JSON")
	}
	if strings.Contains(body, `"FXStory"`) || !strings.Contains(body, `"FXStoryTest"`) {
		t.Fatalf("namespace not substituted")
	}
	if !strings.Contains(body, `"sa-east-1"`) {
		t.Fatalf("region not substituted")
	}
}
