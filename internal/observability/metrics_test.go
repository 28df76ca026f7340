package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordDBQuery(t *testing.T) {
	RecordDBQuery("postgres", "insert_prediction_record", 0.01, nil)
	assert.Equal(t, 0.0, testutil.ToFloat64(
		DefaultMetrics.DBQueryErrors.WithLabelValues("postgres", "insert_prediction_record")))

	RecordDBQuery("clickhouse", "insert_trial_samples", 0.05, errors.New("connection reset"))
	RecordDBQuery("clickhouse", "insert_trial_samples", 0.05, errors.New("connection reset"))
	assert.Equal(t, 2.0, testutil.ToFloat64(
		DefaultMetrics.DBQueryErrors.WithLabelValues("clickhouse", "insert_trial_samples")))
}

func TestRecordCycleSetsLastSuccessful(t *testing.T) {
	RecordCycle("error", 1.5)
	assert.Equal(t, 0.0, testutil.ToFloat64(DefaultMetrics.LastSuccessfulCycle))

	RecordCycle("success", 1.5)
	assert.Greater(t, testutil.ToFloat64(DefaultMetrics.LastSuccessfulCycle), 0.0)
}
