package app

import (
	"math"
	"sort"

	"summit-trivia-service/internal/domain"
)

// speedBonusShare is both the fraction of correct answerers eligible for a
// speed bonus and the bonus pool as a fraction of the base score.
const speedBonusShare = 0.20

// scoreAnswers fills the scoring fields on every answer to one question and
// returns the elevation gain per player. It is deterministic: correctness
// splits the pool, answer time ranks it.
//
// base is sized so that answering summitThreshold of all enabled questions
// correctly reaches the summit; the fastest fifth of correct answerers split
// a bonus pool worth a fifth of the base, weighted by rank.
func scoreAnswers(question domain.Question, answers []*domain.Answer, totalQuestions int, summitThreshold float64) map[string]int {
	gains := make(map[string]int, len(answers))
	if len(answers) == 0 || totalQuestions <= 0 {
		return gains
	}

	base := float64(domain.Summit) / (float64(totalQuestions) * summitThreshold)
	baseScore := int(math.Round(base))

	var correct []*domain.Answer
	for _, a := range answers {
		// Poll mode (no correct option) counts every answer as correct.
		if question.CorrectOptionIndex == nil || a.OptionIndex == *question.CorrectOptionIndex {
			correct = append(correct, a)
			continue
		}
		zeroInt, zeroBonus, zeroGain := 0, 0.0, 0
		a.BaseScore, a.SpeedBonus, a.ElevationGain = &zeroInt, &zeroBonus, &zeroGain
		gains[a.PlayerID] = 0
	}

	sort.SliceStable(correct, func(i, j int) bool {
		return correct[i].AnsweredAt < correct[j].AnsweredAt
	})

	bonusCutoff := int(math.Ceil(float64(len(correct)) * speedBonusShare))
	bonusPool := float64(baseScore) * speedBonusShare

	for i, a := range correct {
		rank := i + 1
		bonus := 0.0
		if rank <= bonusCutoff {
			bonus = float64(bonusCutoff-rank+1) / float64(bonusCutoff) * bonusPool
		}
		gain := int(math.Round(float64(baseScore) + bonus))
		bs, sb, g := baseScore, bonus, gain
		a.BaseScore, a.SpeedBonus, a.ElevationGain = &bs, &sb, &g
		gains[a.PlayerID] = gain
	}
	return gains
}

// assignSummitPlaces gives every newly summited player a dense-ranked place
// among all summited players ordered by elevation descending: ties share a
// place, the next distinct lower elevation gets place+1. Places already
// assigned are never recomputed.
func assignSummitPlaces(players map[string]*domain.Player, crossed []*domain.Player) {
	if len(crossed) == 0 {
		return
	}

	summited := make(map[int]struct{})
	for _, p := range players {
		if p.SummitPlace != nil {
			summited[p.Elevation] = struct{}{}
		}
	}

	sort.Slice(crossed, func(i, j int) bool {
		return crossed[i].Elevation > crossed[j].Elevation
	})
	for _, p := range crossed {
		place := 1
		for elev := range summited {
			if elev > p.Elevation {
				place++
			}
		}
		pl, se := place, p.Elevation
		p.SummitPlace = &pl
		p.SummitElevation = &se
		summited[p.Elevation] = struct{}{}
	}
}
