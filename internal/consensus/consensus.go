// Package consensus merges the history, vision and market signals into one
// bounded recommendation. Evaluate is a pure function: identical inputs
// produce byte-identical reasoning and confidence.
package consensus

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/salvageiq/auctionmind/internal/model"
	"github.com/salvageiq/auctionmind/pkg/research"
	"github.com/salvageiq/auctionmind/pkg/vision"
)

// Weighting and decision constants. These are explicit defaults, not
// hard-won business rules; tune via config review before changing behavior.
const (
	// BuyThreshold is the minimum combined confidence for a BUY verdict.
	BuyThreshold = 60.0

	// WeightVision is the share of the vision confidence signal.
	WeightVision = 0.50
	// WeightHistory is the share of the historical price consistency signal.
	WeightHistory = 0.30
	// WeightResearch is the share of the market insight presence signal.
	WeightResearch = 0.20
)

// ExcludedDamageAreas lists vision damage tags that veto a BUY verdict
// regardless of confidence: structural, flood and fire categories.
var ExcludedDamageAreas = map[string]bool{
	"frame":      true,
	"structural": true,
	"rollover":   true,
	"flood":      true,
	"water":      true,
	"fire":       true,
	"burn":       true,
}

// Inputs carries the three source signals plus enough state to tell a
// degraded history source from one that simply had no rows.
type Inputs struct {
	Stats           *model.PriceStats
	HistoryDegraded bool
	Vision          vision.Assessment
	Market          research.Insight
}

// Evaluate merges the signals into a ConsensusResult.
func Evaluate(in Inputs) model.ConsensusResult {
	historyScore, historyOK := historyConsistency(in.Stats)

	var weightSum, scoreSum float64
	if in.Vision.Usable() {
		weightSum += WeightVision
		scoreSum += WeightVision * in.Vision.Confidence
	}
	if historyOK {
		weightSum += WeightHistory
		scoreSum += WeightHistory * historyScore
	}
	if in.Market.Usable() {
		weightSum += WeightResearch
		scoreSum += WeightResearch * 100
	}

	confidence := 0.0
	if weightSum > 0 {
		confidence = scoreSum / weightSum
	}
	confidence = clamp(confidence, 0, 100)

	vetoTag := excludedTag(in.Vision)
	recommendation := model.RecommendCaution
	if confidence >= BuyThreshold && vetoTag == "" {
		recommendation = model.RecommendBuy
	}

	sources := sourceReports(in, historyOK)

	return model.ConsensusResult{
		Recommendation: recommendation,
		Confidence:     confidence,
		Reasoning:      buildReasoning(in, historyScore, historyOK, confidence, recommendation, vetoTag),
		Sources:        sources,
	}
}

// historyConsistency scores price stability as 100 minus the coefficient of
// variation in percent, clamped to [0,100]. A single sale scores 100.
func historyConsistency(stats *model.PriceStats) (float64, bool) {
	if stats == nil || stats.Count == 0 || stats.Average <= 0 {
		return 0, false
	}
	cv := stats.StdDev / stats.Average
	return clamp(100-cv*100, 0, 100), true
}

func excludedTag(a vision.Assessment) string {
	if !a.Usable() {
		return ""
	}
	for _, tag := range a.DamageAreas {
		if ExcludedDamageAreas[strings.ToLower(tag)] {
			return strings.ToLower(tag)
		}
	}
	return ""
}

func sourceReports(in Inputs, historyOK bool) []model.SourceReport {
	reports := make([]model.SourceReport, 0, 3)

	switch {
	case in.HistoryDegraded:
		reports = append(reports, model.SourceReport{Name: "history", State: model.SourceDegraded, Detail: "sales history unavailable"})
	case !historyOK:
		reports = append(reports, model.SourceReport{Name: "history", State: model.SourceEmpty, Detail: "no prior sales on record"})
	default:
		reports = append(reports, model.SourceReport{
			Name:   "history",
			State:  model.SourceContributed,
			Detail: fmt.Sprintf("%d prior sales", in.Stats.Count),
		})
	}

	switch in.Vision.State {
	case vision.StateNoImages:
		reports = append(reports, model.SourceReport{Name: "vision", State: model.SourceSkipped, Detail: "no images on lot"})
	case vision.StateUnavailable:
		reports = append(reports, model.SourceReport{Name: "vision", State: model.SourceDegraded, Detail: in.Vision.Reason})
	default:
		reports = append(reports, model.SourceReport{Name: "vision", State: model.SourceContributed})
	}

	if in.Market.Usable() {
		reports = append(reports, model.SourceReport{Name: "research", State: model.SourceContributed})
	} else {
		detail := in.Market.Reason
		if detail == "" {
			detail = "no usable research signal"
		}
		reports = append(reports, model.SourceReport{Name: "research", State: model.SourceDegraded, Detail: detail})
	}

	return reports
}

func buildReasoning(in Inputs, historyScore float64, historyOK bool, confidence float64, rec model.Recommendation, vetoTag string) string {
	p := message.NewPrinter(language.AmericanEnglish)
	var b strings.Builder

	if !historyOK && !in.Vision.Usable() && !in.Market.Usable() {
		b.WriteString("Insufficient data: no usable signals from sales history, image assessment, or market research. ")
		b.WriteString("Recommendation CAUTION with confidence 0.")
		return b.String()
	}

	switch {
	case historyOK:
		p.Fprintf(&b, "History: %d prior sales averaging $%.0f (range $%.0f to $%.0f), price consistency %.0f/100.",
			in.Stats.Count, in.Stats.Average, in.Stats.Min, in.Stats.Max, historyScore)
	case in.HistoryDegraded:
		b.WriteString("History: sales history unavailable.")
	default:
		b.WriteString("History: no prior sales on record.")
	}

	b.WriteString(" ")
	switch in.Vision.State {
	case vision.StateAvailable:
		p.Fprintf(&b, "Vision: %s Assessed confidence %.0f/100", in.Vision.Summary, in.Vision.Confidence)
		if in.Vision.RepairCostHigh > 0 {
			p.Fprintf(&b, ", estimated repairs $%.0f to $%.0f", in.Vision.RepairCostLow, in.Vision.RepairCostHigh)
		}
		b.WriteString(".")
	case vision.StateNoImages:
		b.WriteString("Vision: skipped, lot has no images.")
	default:
		b.WriteString("Vision: assessment unavailable.")
	}

	b.WriteString(" ")
	if in.Market.Usable() {
		if in.Market.Trend != research.TrendUnknown {
			p.Fprintf(&b, "Market: %s trend reported.", string(in.Market.Trend))
		} else {
			b.WriteString("Market: insight available.")
		}
	} else {
		b.WriteString("Market: research unavailable.")
	}

	b.WriteString(" ")
	if rec == model.RecommendBuy {
		p.Fprintf(&b, "Recommendation BUY: combined confidence %.0f meets the %.0f threshold.", confidence, BuyThreshold)
	} else if vetoTag != "" {
		p.Fprintf(&b, "Recommendation CAUTION: %s damage reported, which rules out BUY regardless of confidence %.0f.", vetoTag, confidence)
	} else {
		p.Fprintf(&b, "Recommendation CAUTION: combined confidence %.0f is below the %.0f threshold.", confidence, BuyThreshold)
	}

	return b.String()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
