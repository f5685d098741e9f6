// Package classify decides what a sync pass does with a single record.
package classify

import "github.com/harrisonrobin/estima/pkg/model"

// Action is the outcome of classifying one record.
type Action int

const (
	SkipUnchanged Action = iota
	Estimate
	Clear
)

func (a Action) String() string {
	switch a {
	case Estimate:
		return "estimate"
	case Clear:
		return "clear"
	}
	return "skip"
}

const (
	ReasonExcluded        = "long-running record"
	ReasonAlreadyCleared  = "long-running record already cleared"
	ReasonFirstEstimation = "first estimation"
	ReasonInputsChanged   = "inputs changed"
	ReasonManualRequest   = "manual re-estimation requested"
	ReasonUpToDate        = "up to date"
)

// Input is everything the classifier is allowed to look at.
type Input struct {
	Excluded    bool
	Estimate    model.Estimate
	Fingerprint string
	Stored      string
}

// Decision is the classifier's verdict.
type Decision struct {
	Action    Action
	IsInitial bool
	Reason    string
}

type rule struct {
	match    func(Input) bool
	decision Decision
}

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{
		match:    func(in Input) bool { return in.Excluded && in.Estimate.Current.Set },
		decision: Decision{Action: Clear, Reason: ReasonExcluded},
	},
	{
		match:    func(in Input) bool { return in.Excluded },
		decision: Decision{Action: SkipUnchanged, Reason: ReasonAlreadyCleared},
	},
	{
		match:    func(in Input) bool { return !in.Estimate.Initial.Usable() },
		decision: Decision{Action: Estimate, IsInitial: true, Reason: ReasonFirstEstimation},
	},
	{
		match:    func(in Input) bool { return in.Fingerprint != in.Stored },
		decision: Decision{Action: Estimate, Reason: ReasonInputsChanged},
	},
	{
		match:    func(in Input) bool { return !in.Estimate.Current.Usable() },
		decision: Decision{Action: Estimate, Reason: ReasonManualRequest},
	},
}

// Classify applies the decision table to in. It is pure.
func Classify(in Input) Decision {
	for _, r := range rules {
		if r.match(in) {
			return r.decision
		}
	}
	return Decision{Action: SkipUnchanged, Reason: ReasonUpToDate}
}
