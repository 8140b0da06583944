package ui

import (
	"fmt"
	"strings"

	"github.com/huddlemesh/huddle/internal/health"
	"github.com/huddlemesh/huddle/internal/room"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RosterView renders the participant table for a snapshot.
func RosterView(snap room.Snapshot) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Color.Header = text.Colors{text.FgHiCyan, text.Bold}
	t.AppendHeader(table.Row{"", "Participant", "Quality", "Flags"})

	t.AppendRow(table.Row{
		mainMarker(snap, snap.Self.ID),
		fmt.Sprintf("%s (you)", snap.Self.DisplayName),
		"-",
		selfFlags(snap),
	})
	for _, p := range snap.Participants {
		t.AppendRow(table.Row{
			mainMarker(snap, p.ID),
			p.DisplayName,
			qualityCell(p.Quality),
			participantFlags(p),
		})
	}

	return t.Render()
}

// WaitingRoomView renders the host's pending-request queue, or "" when
// empty.
func WaitingRoomView(snap room.Snapshot) string {
	if len(snap.PendingRequests) == 0 {
		return ""
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Waiting to join"})
	for i, req := range snap.PendingRequests {
		t.AppendRow(table.Row{i + 1, req.Name})
	}
	return t.Render()
}

// ChatView renders the tail of the transcript.
func ChatView(snap room.Snapshot, max int) string {
	if len(snap.Chat) == 0 {
		return MutedStyle.Render("No messages yet")
	}

	msgs := snap.Chat
	if len(msgs) > max {
		msgs = msgs[len(msgs)-max:]
	}

	var b strings.Builder
	for _, msg := range msgs {
		fmt.Fprintf(&b, "%s %s: %s\n",
			MutedStyle.Render(msg.At.Format("15:04")),
			BoldStyle.Render(msg.DisplayName),
			msg.Text,
		)
	}
	return strings.TrimRight(b.String(), "\n")
}

func mainMarker(snap room.Snapshot, id string) string {
	switch {
	case snap.PinnedID == id:
		return IconPin
	case snap.MainStream == id:
		return "▶"
	default:
		return " "
	}
}

func selfFlags(snap room.Snapshot) string {
	var flags []string
	if !snap.AudioEnabled {
		flags = append(flags, IconMuted)
	}
	if snap.ScreenSharing {
		flags = append(flags, IconScreen)
	}
	if snap.Self.RaisedHand {
		flags = append(flags, IconHand)
	}
	if snap.Self.Speaking {
		flags = append(flags, IconSpeaking)
	}
	return strings.Join(flags, " ")
}

func participantFlags(p room.ParticipantView) string {
	var flags []string
	if p.RaisedHand {
		flags = append(flags, IconHand)
	}
	if p.HasVideo {
		flags = append(flags, IconCamera)
	}
	return strings.Join(flags, " ")
}

func qualityCell(q health.Quality) string {
	switch q {
	case health.QualityExcellent:
		return SuccessStyle.Render("excellent")
	case health.QualityGood:
		return "good"
	case health.QualityPoor:
		return ErrorStyle.Render("poor")
	default:
		return MutedStyle.Render("…")
	}
}

// RoomBanner renders the post-create room box with the shareable link.
func RoomBanner(roomID, roomLink string) string {
	content := fmt.Sprintf("%s Room ready!\n\n%s Room ID:    %s\n%s Room Link:  %s",
		IconSuccess,
		IconCopy, BoldStyle.Foreground(Primary).Render(roomID),
		IconLink, MutedStyle.Render(roomLink),
	)
	return SuccessBoxStyle.Render(content)
}
