// Package standings ranks a group's participants from its completed matches.
// The calculation is pure and recomputable: standings rows are a projection,
// the completed matches remain the source of truth.
package standings

import (
	"sort"

	"github.com/nbakenov/tournament-core/models"
)

// PointRules configures the points awarded per result.
type PointRules struct {
	Win  int
	Draw int
	Loss int
}

// DefaultPointRules is the usual 3/1/0 scheme.
var DefaultPointRules = PointRules{Win: 3, Draw: 1, Loss: 0}

// Calculate builds ranked standings for the group members over the given
// matches. Only settled (completed/forfeited) matches belonging to the group
// count. Ranking ties break on points desc, wins desc, round differential
// desc, matches played asc, and finally original seed asc - the seed
// tie-break makes the order total, so advancement is reproducible even among
// perfectly level participants.
func Calculate(group *models.Group, members []models.GroupMember, matches []*models.Match, rules PointRules) []models.GroupStanding {
	index := make(map[int]*models.GroupStanding, len(members))
	ordered := make([]*models.GroupStanding, 0, len(members))
	for _, m := range members {
		row := &models.GroupStanding{
			GroupID:       group.ID,
			ParticipantID: m.ParticipantID,
			Seed:          m.Seed,
		}
		index[m.ParticipantID] = row
		ordered = append(ordered, row)
	}

	for _, match := range matches {
		if match.GroupID == nil || *match.GroupID != group.ID {
			continue
		}
		if !match.State.Settled() {
			continue
		}
		if match.Slot1ParticipantID == nil || match.Slot2ParticipantID == nil {
			continue
		}
		row1 := index[*match.Slot1ParticipantID]
		row2 := index[*match.Slot2ParticipantID]
		if row1 == nil || row2 == nil {
			continue
		}

		row1.MatchesPlayed++
		row2.MatchesPlayed++

		s1, s2 := 0, 0
		if match.Score1 != nil {
			s1 = *match.Score1
		}
		if match.Score2 != nil {
			s2 = *match.Score2
		}
		row1.RoundDifferential += s1 - s2
		row2.RoundDifferential += s2 - s1

		switch {
		case match.WinnerID != nil && *match.WinnerID == row1.ParticipantID:
			row1.Wins++
			row1.Points += rules.Win
			row2.Losses++
			row2.Points += rules.Loss
		case match.WinnerID != nil && *match.WinnerID == row2.ParticipantID:
			row2.Wins++
			row2.Points += rules.Win
			row1.Losses++
			row1.Points += rules.Loss
		default:
			row1.Draws++
			row2.Draws++
			row1.Points += rules.Draw
			row2.Points += rules.Draw
		}
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.RoundDifferential != b.RoundDifferential {
			return a.RoundDifferential > b.RoundDifferential
		}
		if a.MatchesPlayed != b.MatchesPlayed {
			return a.MatchesPlayed < b.MatchesPlayed
		}
		return a.Seed < b.Seed
	})

	out := make([]models.GroupStanding, len(ordered))
	for i, row := range ordered {
		row.Rank = i + 1
		out[i] = *row
	}
	return out
}
