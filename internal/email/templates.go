package email

import (
	"fmt"
	"strings"
	"time"
)

type Message struct {
	Subject string
	Body    string
}

type ReportReminderDetails struct {
	CoachName string
	TeamName  string
	Opponent  string
	KickoffAt time.Time
	// Participants still missing at least one rating.
	MissingRatings int
	GameURL        string
}

func FormatKickoff(t time.Time) string {
	return t.Format("Monday, Jan 2, 2006 3:04 PM MST")
}

func BuildReportReminderEmail(details ReportReminderDetails) Message {
	teamName := strings.TrimSpace(details.TeamName)
	if teamName == "" {
		teamName = "your team"
	}
	opponent := strings.TrimSpace(details.Opponent)
	if opponent == "" {
		opponent = "TBD"
	}
	greeting := "Hi,"
	if name := strings.TrimSpace(details.CoachName); name != "" {
		greeting = fmt.Sprintf("Hi %s,", name)
	}

	lines := []string{
		greeting,
		"",
		fmt.Sprintf("The match report for %s vs %s has not been submitted yet.", teamName, opponent),
		"",
		fmt.Sprintf("Kickoff: %s", FormatKickoff(details.KickoffAt)),
	}
	switch {
	case details.MissingRatings == 1:
		lines = append(lines, "1 player is still missing ratings.")
	case details.MissingRatings > 1:
		lines = append(lines, fmt.Sprintf("%d players are still missing ratings.", details.MissingRatings))
	default:
		lines = append(lines, "All player ratings are in. Submit the report to close the game.")
	}
	if url := strings.TrimSpace(details.GameURL); url != "" {
		lines = append(lines, "", fmt.Sprintf("Finish the report: %s", url))
	}

	return Message{
		Subject: fmt.Sprintf("Match report due: %s vs %s", teamName, opponent),
		Body:    strings.Join(lines, "\n"),
	}
}
