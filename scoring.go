package main

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"fundusvault-rest/predictor"
)

// Scorer produces a quality score for one preview image. It is a capability
// that always yields a value: implementations must map every failure mode to
// the default score rather than propagate it.
type Scorer interface {
	Score(ctx context.Context, fileName string, previewPNG []byte) float64
}

// predictScorer scores through the external prediction service. Transport
// errors, timeouts, non-success statuses, malformed JSON, and responses
// without a score all collapse to 0.0: scoring is enrichment, not a gate.
type predictScorer struct {
	client *predictor.Client
	log    *zap.SugaredLogger
}

func NewPredictScorer(client *predictor.Client, log *zap.SugaredLogger) Scorer {
	return &predictScorer{client: client, log: log}
}

func (s *predictScorer) Score(ctx context.Context, fileName string, previewPNG []byte) float64 {
	if len(previewPNG) == 0 {
		return 0
	}

	score, err := s.client.Predict(ctx, fileName, previewPNG)
	if err != nil {
		if errors.Is(err, predictor.ErrNoScore) {
			s.log.Warnw("scoring API returned no score, using default",
				"file", fileName)
		} else {
			s.log.Warnw("scoring API call failed, using default score",
				"file", fileName, "error", err)
		}
		return 0
	}

	s.log.Infow("received score", "file", fileName, "score", score)
	return score
}
