package tasks

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksAssigned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pps_tasks_assigned_total",
		Help: "Tasks assigned, by area",
	}, []string{"area"})

	tasksFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pps_tasks_finished_total",
		Help: "Active tasks cleared, by area and whether the score was credited",
	}, []string{"area", "credited"})

	pointsCredited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pps_task_points_credited_total",
		Help: "Score points credited by task completion, by area",
	}, []string{"area"})

	archiveFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pps_task_archive_failures_total",
		Help: "Credited tasks whose archive row could not be written",
	})
)
