package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Auction outcomes recorded per product search.
const (
	outcomeSkippedEmpty = "skipped_empty"
	outcomeSkippedNoKey = "skipped_no_key"
	outcomeUnavailable  = "unavailable"
	outcomeNoWinners    = "no_winners"
	outcomeAugmented    = "augmented"
)

var (
	auctionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_sponsored_auctions_total",
			Help: "Product searches by sponsored augmentation outcome",
		},
		[]string{"outcome"},
	)

	auctionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "search_sponsored_auction_duration_seconds",
			Help:    "Duration of auction requests in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)
)
