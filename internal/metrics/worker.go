package metrics

import "time"

// JobStarted records a job entering execution
func JobStarted(jobType string) {
	JobsInFlight.WithLabelValues(jobType).Inc()
}

// JobFinished records a job leaving execution, whatever the outcome
func JobFinished(jobType string) {
	JobsInFlight.WithLabelValues(jobType).Dec()
}

// JobCompleted records a successful job completion
func JobCompleted(jobType string, duration time.Duration) {
	JobsTotal.WithLabelValues(jobType, "completed").Inc()
	JobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

// JobFailed records a job failure
func JobFailed(jobType string) {
	JobsTotal.WithLabelValues(jobType, "failed").Inc()
}

// JobRetried records a job retry attempt
func JobRetried(jobType string) {
	JobRetriesTotal.WithLabelValues(jobType).Inc()
}

// ReadingGenerated records a provider call and its token spend
func ReadingGenerated(status string, inputTokens, outputTokens, costCents int) {
	AIAPICalls.WithLabelValues(status).Inc()
	if status != "success" {
		return
	}
	AITokensTotal.WithLabelValues("input").Add(float64(inputTokens))
	AITokensTotal.WithLabelValues("output").Add(float64(outputTokens))
	AICostCentsTotal.Add(float64(costCents))
}
