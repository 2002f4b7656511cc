package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/editorkit/testbridge/types"
)

const (
	MetricsNamespace = "testbridge"
)

var (
	Debug                bool = true
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "runs_total",
		Help:      "Count of test runs",
	}, []string{
		"profile",
		"strategy",
		"result",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of the last test run",
	}, []string{
		"run_id",
	})

	testResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "test_results_total",
		Help:      "Count of per-position results by outcome",
	}, []string{
		"run_id",
		"result",
	})

	matchMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "match_misses_total",
		Help:      "Count of report entries with no matching tree position",
	}, []string{
		"classname",
	})

	reportParseFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "report_parse_failures_total",
		Help:      "Count of malformed report files that were dropped",
	})

	readinessOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "readiness_outcomes_total",
		Help:      "Count of readiness detection outcomes",
	}, []string{
		"strategy",
		"outcome",
	})

	readinessDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "readiness_duration_seconds",
		Help:      "Time until readiness was observed",
	}, []string{
		"strategy",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordRun records the outcome of one coordinated test run.
func RecordRun(runID, profile, strategy string, status types.TestStatus, duration time.Duration) {
	if Debug {
		log.Debug("metric inc",
			"m", "runs_total",
			"run_id", runID,
			"profile", profile,
			"strategy", strategy,
			"result", status)
	}
	runsTotal.WithLabelValues(profile, strategy, string(status)).Inc()
	runDuration.WithLabelValues(runID).Set(duration.Seconds())
}

// RecordTestResult counts one position result for the given run.
func RecordTestResult(runID string, status types.TestStatus) {
	testResultsTotal.WithLabelValues(runID, string(status)).Inc()
}

// RecordMatchMiss counts a report entry that matched no tree position.
func RecordMatchMiss(className, testName string) {
	if Debug {
		log.Debug("metric inc",
			"m", "match_misses_total",
			"classname", className,
			"name", testName)
	}
	matchMissesTotal.WithLabelValues(className).Inc()
}

// RecordReportParseFailure counts a malformed report file.
func RecordReportParseFailure() {
	reportParseFailuresTotal.Inc()
}

// RecordReadiness records how a readiness wait ended and how long it took.
func RecordReadiness(strategy, outcome string, duration time.Duration) {
	readinessOutcomesTotal.WithLabelValues(strategy, outcome).Inc()
	if outcome == "ready" {
		readinessDuration.WithLabelValues(strategy).Set(duration.Seconds())
	}
}
