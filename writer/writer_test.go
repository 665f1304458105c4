package writer

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	preader "github.com/xitongsys/parquet-go/reader"

	appconfig "fxstory/config"
	"fxstory/internal/testutil"
	"fxstory/models"
)

func sampleSeries() models.Series {
	var s models.Series
	for i := 0; i < 5; i++ {
		rec := models.Record{
			Time:        testutil.Date(2001, time.May, 1+i),
			QuoteRate:   2.1 + float64(i)*0.01,
			CrossSource: 0.9,
		}
		rec.CrossRate = rec.QuoteRate / rec.CrossSource
		if i >= 2 {
			rec.CrossRollingMean = models.Some(rec.CrossRate)
			rec.QuoteRollingMean = models.Some(rec.QuoteRate)
		}
		s = append(s, rec)
	}
	return s
}

func TestParquetExportRoundTrip(t *testing.T) {
	log, _ := testutil.CaptureLogger(t)
	cfg := appconfig.Default()
	cfg.Output.Dir = t.TempDir()
	cfg.Export.Parquet.Enabled = true

	exp := NewParquetExporter(cfg, models.DefaultEras(), log)
	path := exp.Path()
	assert.Equal(t, filepath.Join(cfg.Output.Dir, "exchange_rates.parquet"), path)

	size, err := exp.Export(path, sampleSeries())
	require.NoError(t, err)
	assert.Greater(t, size, int64(0))

	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()
	pr, err := preader.NewParquetReader(fr, new(rateRecord), 1)
	require.NoError(t, err)
	defer pr.ReadStop()

	require.Equal(t, int64(5), pr.GetNumRows())
	rows := make([]rateRecord, 5)
	require.NoError(t, pr.Read(&rows))

	assert.Equal(t, "2001-05-01", rows[0].Date)
	assert.Equal(t, "FHC", rows[0].Era)
	assert.Nil(t, rows[0].DollarRollingMean)
	assert.Nil(t, rows[1].EuroRollingMean)
	require.NotNil(t, rows[2].DollarRollingMean)
	assert.InDelta(t, rows[2].DollarRate, *rows[2].DollarRollingMean, 1e-12)
}

func TestParquetExportTagsErasInsideWindowOnly(t *testing.T) {
	log, _ := testutil.CaptureLogger(t)
	cfg := appconfig.Default()
	cfg.Output.Dir = t.TempDir()

	var s models.Series
	for _, d := range []time.Time{
		testutil.Date(1999, time.June, 1),
		testutil.Date(2000, time.June, 1),
		testutil.Date(2020, time.June, 1),
		testutil.Date(2021, time.June, 1),
	} {
		s = append(s, models.Record{Time: d, QuoteRate: 5.5, CrossSource: 1.1, CrossRate: 5})
	}

	exp := NewParquetExporter(cfg, models.DefaultEras(), log)
	path := exp.Path()
	_, err := exp.Export(path, s)
	require.NoError(t, err)

	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()
	pr, err := preader.NewParquetReader(fr, new(rateRecord), 1)
	require.NoError(t, err)
	defer pr.ReadStop()

	rows := make([]rateRecord, len(s))
	require.NoError(t, pr.Read(&rows))
	var eras []string
	for _, r := range rows {
		eras = append(eras, r.Era)
	}
	assert.Equal(t, []string{"", "FHC", "BOLSO", ""}, eras)
}

func TestParquetExportRejectsUnknownCompression(t *testing.T) {
	log, _ := testutil.CaptureLogger(t)
	cfg := appconfig.Default()
	cfg.Export.Parquet.Compression = "lz4"

	_, err := NewParquetExporter(cfg, nil, log).Export(filepath.Join(t.TempDir(), "x.parquet"), nil)
	assert.Error(t, err)
}

func TestObjectKey(t *testing.T) {
	day := time.Date(2021, time.March, 4, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "fxstory/2021-03-04/run-1/dollar_real_storytelling.png",
		ObjectKey("fxstory", day, "run-1", "out/dollar_real_storytelling.png"))
	assert.Equal(t, "2021-03-04/run-1/manifest.json",
		ObjectKey("/", day, "run-1", "manifest.json"))
	assert.Equal(t, "a/b/2021-03-04/run-1/x.parquet",
		ObjectKey("/a/b/", day, "run-1", "x.parquet"))
}

type fakeS3 struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3UploaderUpload(t *testing.T) {
	log, buf := testutil.CaptureLogger(t)
	fake := &fakeS3{}
	u := NewS3UploaderWithClient(fake, "fx-artifacts", "fxstory", log)

	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, writeFile(path, `{"ok":true}`))

	key := u.Key(testutil.Date(2021, time.January, 2), "abc", path)
	require.NoError(t, u.Upload(context.Background(), key, path))

	require.Len(t, fake.inputs, 1)
	assert.Equal(t, "fx-artifacts", aws.ToString(fake.inputs[0].Bucket))
	assert.Equal(t, "fxstory/2021-01-02/abc/manifest.json", aws.ToString(fake.inputs[0].Key))
	assert.Equal(t, int64(11), aws.ToInt64(fake.inputs[0].ContentLength))
	assert.Equal(t, `{"ok":true}`, string(fake.bodies[0]))
	assert.Contains(t, buf.String(), "artifact uploaded")
}

func TestS3UploaderPropagatesErrors(t *testing.T) {
	log, _ := testutil.CaptureLogger(t)
	fake := &fakeS3{err: errors.New("access denied")}
	u := NewS3UploaderWithClient(fake, "fx-artifacts", "", log)

	path := filepath.Join(t.TempDir(), "a.png")
	require.NoError(t, writeFile(path, "png"))

	err := u.Upload(context.Background(), "k", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")

	err = u.Upload(context.Background(), "k", filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func TestNewS3UploaderRequiresBucket(t *testing.T) {
	log, _ := testutil.CaptureLogger(t)
	cfg := appconfig.Default()
	cfg.Storage.S3.Enabled = true

	u, err := NewS3Uploader(context.Background(), cfg, log)
	require.Error(t, err)
	assert.Nil(t, u)
}
