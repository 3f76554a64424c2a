// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package babe

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	blocksBuilt = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "arbor",
		Subsystem: "babe",
		Name:      "blocks_built_total",
		Help:      "total number of blocks built and sealed by this node",
	})

	slotsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "arbor",
		Subsystem: "babe",
		Name:      "slots_skipped_total",
		Help:      "total number of authoring slots skipped due to build failures",
	})

	headersVerified = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "arbor",
		Subsystem: "babe",
		Name:      "headers_verified_total",
		Help:      "total number of headers successfully verified",
	})

	equivocationsDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "arbor",
		Subsystem: "babe",
		Name:      "equivocations_detected_total",
		Help:      "total number of equivocation proofs detected during verification",
	})
)
