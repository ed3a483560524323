package viz

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiant-data/gaussnerf/internal/checkpoint"
)

func TestWriteTrainingReport(t *testing.T) {
	t.Parallel()
	series := map[string][]checkpoint.MetricPoint{
		"rgb_loss": {{Step: 0, Value: 1}, {Step: 1, Value: 0.5}, {Step: 2, Value: 0.25}},
		"psnr":     {{Step: 0, Value: 10}, {Step: 1, Value: 14}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTrainingReport(&buf, "run-1", series))

	out := buf.String()
	assert.Contains(t, out, "<html")
	assert.Contains(t, out, "rgb_loss")
	assert.Contains(t, out, "psnr")
	assert.Contains(t, out, "run-1")
	assert.Less(t, strings.Index(out, "psnr"), strings.Index(out, "rgb_loss"),
		"charts are ordered by metric name")
}

func TestWriteTrainingReportEmpty(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	err := WriteTrainingReport(&buf, "run-1", nil)
	assert.Error(t, err)
	assert.Zero(t, buf.Len())
}
