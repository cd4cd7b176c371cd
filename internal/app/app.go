// Package app wires the policy-driven components shared by the server and
// the command line tool.
package app

import (
	"go.uber.org/zap"

	"github.com/david/tender-matcher/internal/advisory"
	"github.com/david/tender-matcher/internal/extract"
	"github.com/david/tender-matcher/internal/matching"
	"github.com/david/tender-matcher/internal/policy"
)

type Components struct {
	Policy    *policy.Policy
	Extractor *extract.Extractor
	Pipeline  *extract.Pipeline
	Engine    *matching.Engine
	Advisor   *advisory.Advisor
}

// Build loads the policy at policyPath, or the embedded default when the
// path is empty, and constructs the extraction and matching components.
func Build(policyPath string, log *zap.Logger) (*Components, error) {
	if log == nil {
		log = zap.NewNop()
	}
	p, err := policy.Load(policyPath)
	if err != nil {
		return nil, err
	}
	extractor, err := extract.NewExtractor(p, log.Named("extract"))
	if err != nil {
		return nil, err
	}
	engine, err := matching.NewEngine(p)
	if err != nil {
		return nil, err
	}
	classifier := extract.NewClassifier(p.Classifier, log.Named("classifier"))

	return &Components{
		Policy:    p,
		Extractor: extractor,
		Pipeline:  extract.NewPipeline(extractor, classifier, log.Named("pipeline")),
		Engine:    engine,
		Advisor:   advisory.NewAdvisor(p.Advisory, engine),
	}, nil
}
