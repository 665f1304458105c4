// Package metrics publishes run summaries to CloudWatch.
package metrics

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	appconfig "fxstory/config"
	"fxstory/logger"
)

//go:embed CWdash.json
var dashboardTemplate string

const (
	defaultNamespace = "FXStory"
	templateRegion   = "eu-central-1"
)

// cloudWatchAPI is the part of the CloudWatch client the publisher uses.
type cloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
	PutDashboard(ctx context.Context, params *cloudwatch.PutDashboardInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutDashboardOutput, error)
}

// Run is the summary published after each pipeline run.
type Run struct {
	RunID        string
	RowsLoaded   int
	RowsCleaned  int
	RowsInWindow int
	EraCounts    map[string]int
	Artifacts    int
	Duration     time.Duration
}

// Publisher sends run metrics to CloudWatch. A Publisher without a client
// only logs.
type Publisher struct {
	client    cloudWatchAPI
	namespace string
	region    string
	log       *logger.Log
}

// NewPublisher builds a Publisher from cfg.Metrics.CloudWatch. When metrics
// are disabled, or the AWS configuration cannot be loaded, the returned
// publisher is a no-op.
func NewPublisher(ctx context.Context, cfg *appconfig.Config, log *logger.Log) *Publisher {
	cw := cfg.Metrics.CloudWatch
	p := &Publisher{namespace: cw.Namespace, region: cw.Region, log: log}
	if p.namespace == "" {
		p.namespace = defaultNamespace
	}
	if !cw.Enabled {
		return p
	}

	clog := log.WithComponent("cloudwatch")
	opts := []func(*config.LoadOptions) error{}
	if cw.Region != "" {
		opts = append(opts, config.WithRegion(cw.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		clog.WithError(err).Warn("failed to load AWS configuration; CloudWatch metrics disabled")
		return p
	}
	if awsCfg.Region != "" {
		p.region = awsCfg.Region
	}
	p.client = cloudwatch.NewFromConfig(awsCfg)

	clog.WithFields(logger.Fields{
		"region":    p.region,
		"namespace": p.namespace,
	}).Info("initialized CloudWatch client")
	return p
}

func newPublisher(client cloudWatchAPI, namespace, region string, log *logger.Log) *Publisher {
	return &Publisher{client: client, namespace: namespace, region: region, log: log}
}

// Enabled reports whether metrics leave the process.
func (p *Publisher) Enabled() bool {
	return p != nil && p.client != nil
}

// PublishRun sends the run summary in a single PutMetricData call.
func (p *Publisher) PublishRun(ctx context.Context, run Run) error {
	if !p.Enabled() {
		return nil
	}
	data := runData(run)
	if _, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(p.namespace),
		MetricData: data,
	}); err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}

	names := make([]string, 0, len(data))
	for _, d := range data {
		names = append(names, aws.ToString(d.MetricName))
	}
	p.log.WithComponent("cloudwatch").WithFields(logger.Fields{
		"metrics": strings.Join(names, ","),
	}).Debug("published metrics to CloudWatch")
	return nil
}

// PutDashboard applies the embedded dashboard under name, rewritten for the
// publisher's namespace and region.
func (p *Publisher) PutDashboard(ctx context.Context, name string) error {
	if !p.Enabled() {
		return nil
	}
	body := dashboardBody(p.namespace, p.region)
	if !json.Valid([]byte(body)) {
		return fmt.Errorf("dashboard template is not valid JSON after substitution")
	}
	_, err := p.client.PutDashboard(ctx, &cloudwatch.PutDashboardInput{
		DashboardName: aws.String(name),
		DashboardBody: aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("put dashboard: %w", err)
	}
	p.log.WithComponent("cloudwatch").Debug("updated CloudWatch dashboard from template")
	return nil
}

func dashboardBody(namespace, region string) string {
	body := dashboardTemplate
	if namespace != "" {
		body = strings.ReplaceAll(body, fmt.Sprintf("%q", defaultNamespace), fmt.Sprintf("%q", namespace))
	}
	if region != "" {
		body = strings.ReplaceAll(body, fmt.Sprintf("%q", templateRegion), fmt.Sprintf("%q", region))
	}
	return body
}

func runData(run Run) []cwtypes.MetricDatum {
	dims := []cwtypes.Dimension{{Name: aws.String("component"), Value: aws.String("pipeline")}}
	count := func(name string, v int) cwtypes.MetricDatum {
		return cwtypes.MetricDatum{
			MetricName: aws.String(name),
			Dimensions: dims,
			Unit:       cwtypes.StandardUnitCount,
			Value:      aws.Float64(float64(v)),
		}
	}

	data := []cwtypes.MetricDatum{
		count("rows_loaded", run.RowsLoaded),
		count("rows_cleaned", run.RowsCleaned),
		count("rows_in_window", run.RowsInWindow),
		count("artifacts", run.Artifacts),
		{
			MetricName: aws.String("run_duration"),
			Dimensions: dims,
			Unit:       cwtypes.StandardUnitMilliseconds,
			Value:      aws.Float64(float64(run.Duration.Milliseconds())),
		},
	}

	eras := make([]string, 0, len(run.EraCounts))
	for era := range run.EraCounts {
		eras = append(eras, era)
	}
	sort.Strings(eras)
	for _, era := range eras {
		d := count("era_rows", run.EraCounts[era])
		d.Dimensions = append([]cwtypes.Dimension{}, dims...)
		d.Dimensions = append(d.Dimensions, cwtypes.Dimension{Name: aws.String("era"), Value: aws.String(era)})
		data = append(data, d)
	}
	return data
}
