package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	authorizationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plexsource",
		Subsystem: "plex",
		Name:      "authorizations_total",
		Help:      "Plex PIN authorizations by outcome.",
	}, []string{"outcome"})

	pollAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plexsource",
		Subsystem: "plex",
		Name:      "pin_polls_total",
		Help:      "Plex PIN status polls by result.",
	}, []string{"result"})

	discoveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plexsource",
		Subsystem: "plex",
		Name:      "discoveries_total",
		Help:      "Plex resource discoveries by outcome.",
	}, []string{"outcome"})
)
